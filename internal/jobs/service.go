package jobs

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Service はアップロードの受付と、状態・結果の参照を提供します。
// 参照系はストアの現在値をそのまま返し、ワーカーを待ちません。
type Service struct {
	store      Store
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewService は Service を作成します。
func NewService(store Store, dispatcher Dispatcher, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, dispatcher: dispatcher, logger: logger}, nil
}

// ValidateFilename はアップロードされたファイル名が PDF かどうかを検証します。
func ValidateFilename(filename string) error {
	if strings.TrimSpace(filename) == "" || !strings.HasSuffix(filename, ".pdf") {
		return ErrInvalidInput
	}
	return nil
}

// Submit は pending のジョブを作成してディスパッチャーに渡し、ジョブ ID を返します。
// ディスパッチに失敗した場合、作成済みのジョブは pending のまま残り、エラーを返します。
func (s *Service) Submit(ctx context.Context, filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	id, err := s.store.Create(ctx, filename)
	if err != nil {
		s.logger.Error("failed to create contract", zap.String("filename", filename), zap.Error(err))
		return "", err
	}
	if err := s.dispatcher.Dispatch(ctx, Task{JobID: id, Filename: filename}); err != nil {
		s.logger.Warn("failed to dispatch contract", zap.String("contract_id", id), zap.Error(err))
		return "", err
	}
	s.logger.Info("contract accepted", zap.String("contract_id", id), zap.String("filename", filename))
	return id, nil
}

// GetStatus は状態と進捗だけを返します。抽出結果は含みません。
func (s *Service) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	return s.store.GetStatus(ctx, id)
}

// GetResult は完了済みジョブの全体を返します。
// 未完了の場合は現在の状態と進捗を持つ *NotReadyError を返します。
func (s *Service) GetResult(ctx context.Context, id string) (*Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Completed() {
		return nil, &NotReadyError{Status: record.Status, Progress: record.Progress}
	}
	return record, nil
}
