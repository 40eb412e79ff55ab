package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound は ID が存在しない、または ID の形式が不正な場合に返されます。
	ErrNotFound = errors.New("contract not found")
	// ErrInvalidID は ID をバックエンドの形式として解釈できない場合に返されます。ErrNotFound として扱われます。
	ErrInvalidID = fmt.Errorf("invalid contract id format: %w", ErrNotFound)
	// ErrInvalidInput はアップロード内容が不正な場合に返されます。
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotReady はジョブが未完了であることを表します。エラーではなく想定内の状態です。
	ErrNotReady = errors.New("contract processing is not yet complete")
	// ErrStorageUnavailable はジョブストアに到達できない場合に返されます。
	ErrStorageUnavailable = errors.New("job store unavailable")
	// ErrInvalidTransition は状態や進捗を後退させる更新、完了済みジョブへの更新で返されます。
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrQueueFull はワーカーが飽和しておりジョブを受け付けられない場合に返されます。
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrDispatcherStopped は停止済みのディスパッチャーに投入した場合に返されます。
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

// NotReadyError は未完了ジョブの現在状態を保持します。errors.Is(err, ErrNotReady) が true になります。
type NotReadyError struct {
	Status   Status
	Progress int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s (status=%s progress=%d)", ErrNotReady, e.Status, e.Progress)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
