package jobs

import "context"

// Dispatcher は受け付けたジョブをワーカーに引き渡します。
// 同時実行数と待ち行列はどちらも有界で、飽和時は ErrQueueFull を返します。
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}
