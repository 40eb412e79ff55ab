package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const staleScanLimit = 500

// Watcher は進捗が一定時間更新されていない未完了ジョブを検出してログに残します。
// ジョブの状態は変更しません。
type Watcher struct {
	store    Store
	after    time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewWatcher は Watcher を作成します。interval が 0 以下の場合 Run は何もしません。
func NewWatcher(store Store, after, interval time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		store:    store,
		after:    after,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Scan は 1 回分の検出を行い、見つかったジョブを返します。
func (w *Watcher) Scan(ctx context.Context) ([]*Record, error) {
	before := w.now().Add(-w.after)
	stale, err := w.store.ListStale(ctx, before, staleScanLimit)
	if err != nil {
		return nil, err
	}
	for _, r := range stale {
		w.logger.Warn("found stale contract",
			zap.String("contract_id", r.ID),
			zap.String("status", string(r.Status)),
			zap.Int("progress", r.Progress),
			zap.Time("updated_at", r.UpdatedAt))
	}
	return stale, nil
}

// Run は interval ごとに Scan を実行し、ctx が終了するまでブロックします。
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// 取りこぼしは次の周期で拾えるため、失敗しても止めない
			if _, err := w.Scan(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("stale contract scan failed", zap.Error(err))
			}
		}
	}
}
