// Package jobs は契約書抽出ジョブの状態管理と非同期実行を提供します。
package jobs

import (
	"context"
	"slices"
	"time"

	"github.com/yourusername/contract-forge/internal/extract"
)

// Store はジョブレコードの永続化を担います。
// 同じジョブへの書き込みは直列化され、異なるジョブへの書き込みは互いに待ち合わせません。
type Store interface {
	// Create は pending 状態の新しいジョブを作成し、その ID を返します。
	Create(ctx context.Context, filename string) (string, error)
	// UpdateProgress は状態と進捗のみを更新します。
	UpdateProgress(ctx context.Context, id string, status Status, progress int) error
	// Complete は completed・進捗 100・抽出結果・スコアを 1 回の書き込みで保存します。
	// data が nil の場合は ErrInvalidInput を返し、何も書き込みません。
	Complete(ctx context.Context, id string, data *extract.ExtractedData, score int) error
	// Get はジョブ全体を取得します。
	Get(ctx context.Context, id string) (*Record, error)
	// GetStatus は状態と進捗だけを取得します。
	GetStatus(ctx context.Context, id string) (*StatusView, error)
	// ListStale は updated_at が before より古い未完了ジョブを返します。
	ListStale(ctx context.Context, before time.Time, limit int) ([]*Record, error)
	// Close は接続を閉じます。
	Close(ctx context.Context) error
}

// allowedFrom は next へ遷移できる直前の状態を返します。
// completed へは processing を経由した場合のみ遷移できます。
func allowedFrom(next Status) []Status {
	switch next {
	case StatusPending:
		return []Status{StatusPending}
	case StatusProcessing:
		return []Status{StatusPending, StatusProcessing}
	case StatusCompleted:
		return []Status{StatusProcessing}
	}
	return nil
}

// canTransition は現在のレコードに対して (next, progress) の書き込みが許されるかを返します。
func canTransition(cur *Record, next Status, progress int) bool {
	if cur == nil || !slices.Contains(allowedFrom(next), cur.Status) {
		return false
	}
	return cur.Progress <= progress
}

// normalizeUpdate は UpdateProgress の引数を検証し、進捗を 0〜100 に丸めます。
func normalizeUpdate(status Status, progress int) (int, error) {
	switch status {
	case StatusPending:
		// pending の間は進捗 0 固定
		if progress != 0 {
			return 0, ErrInvalidTransition
		}
		return 0, nil
	case StatusProcessing:
		return extract.ClampPercent(progress), nil
	default:
		// completed は Complete 経由でのみ書き込む
		return 0, ErrInvalidTransition
	}
}

func statusView(r *Record) *StatusView {
	return &StatusView{ID: r.ID, Status: r.Status, Progress: r.Progress}
}
