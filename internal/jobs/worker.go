package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/contract-forge/internal/extract"
)

// errEmptyResult は抽出器がエラーも結果も返さなかった場合のエラーです。
var errEmptyResult = errors.New("extractor returned no result")

// Runner は 1 件のタスクを最後まで処理します。
type Runner interface {
	Run(ctx context.Context, task Task) error
}

// Worker は 1 件のジョブを pending から completed まで進めます。
// 実行中はそのジョブの状態・進捗・結果を書き込める唯一の主体です。
type Worker struct {
	store     Store
	extractor extract.Extractor
	scoring   extract.ScoringMode
	logger    *zap.Logger
}

// NewWorker は Worker を作成します。
func NewWorker(store Store, extractor extract.Extractor, scoring extract.ScoringMode, logger *zap.Logger) (*Worker, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if extractor == nil {
		return nil, errors.New("extractor is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:     store,
		extractor: extractor,
		scoring:   scoring,
		logger:    logger,
	}, nil
}

// Run は processing への遷移、抽出、完了の書き込みを順に行います。
// 書き込みに失敗した場合や ctx がキャンセルされた場合は、最後に書き込めた状態のまま終了し、
// completed は決して書き込みません。再試行はしません。
func (w *Worker) Run(ctx context.Context, task Task) error {
	log := w.logger.With(zap.String("contract_id", task.JobID))
	log.Info("starting extraction", zap.String("filename", task.Filename))

	if err := w.store.UpdateProgress(ctx, task.JobID, StatusProcessing, 0); err != nil {
		log.Error("failed to mark contract as processing", zap.Error(err))
		return fmt.Errorf("start %s: %w", task.JobID, err)
	}

	last := 0
	reporter := func(percent int) error {
		if percent <= last {
			return nil
		}
		if err := w.store.UpdateProgress(ctx, task.JobID, StatusProcessing, percent); err != nil {
			return err
		}
		last = percent
		log.Debug("progress updated", zap.Int("progress", percent))
		return nil
	}

	data, err := w.extractor.Run(ctx, extract.Document{ID: task.JobID, Filename: task.Filename}, reporter)
	if err != nil {
		w.logHalt(log, "extraction halted", last, err)
		return fmt.Errorf("extract %s: %w", task.JobID, err)
	}
	if err := ctx.Err(); err != nil {
		w.logHalt(log, "extraction halted before completion", last, err)
		return err
	}
	if data == nil {
		w.logHalt(log, "extraction halted", last, errEmptyResult)
		return fmt.Errorf("extract %s: %w", task.JobID, errEmptyResult)
	}

	score := extract.Score(data, w.scoring)
	if err := w.store.Complete(ctx, task.JobID, data, score); err != nil {
		w.logHalt(log, "failed to store extraction result", last, err)
		return fmt.Errorf("complete %s: %w", task.JobID, err)
	}

	log.Info("extraction completed", zap.Int("confidence_score", score))
	return nil
}

func (w *Worker) logHalt(log *zap.Logger, msg string, progress int, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn(msg, zap.Int("progress", progress), zap.Error(err))
		return
	}
	log.Error(msg, zap.Int("progress", progress), zap.Error(err))
}
