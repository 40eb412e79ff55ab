package jobs

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool はプロセス内で動く有界のワーカープールです。
type Pool struct {
	runner      Runner
	concurrency int
	queue       chan Task
	logger      *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool は concurrency 個のワーカーと queueSize 件の待ち行列を持つ Pool を作成します。
func NewPool(runner Runner, concurrency, queueSize int, logger *zap.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		runner:      runner,
		concurrency: concurrency,
		queue:       make(chan Task, queueSize),
		logger:      logger,
	}
}

// Dispatch はタスクを待ち行列に積みます。満杯の場合は待たずに ErrQueueFull を返します。
func (p *Pool) Dispatch(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrDispatcherStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run はワーカーを起動し、ctx が終了するまでブロックします。
// 終了時は実行中のタスクの戻りを待ちます。待ち行列に残ったジョブは pending のままです。
func (p *Pool) Run(ctx context.Context) error {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	p.logger.Info("worker pool started", zap.Int("concurrency", p.concurrency), zap.Int("queue_size", cap(p.queue)))

	<-ctx.Done()

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped", zap.Int("abandoned", len(p.queue)))
	return nil
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			if err := p.runner.Run(ctx, task); err != nil {
				p.logger.Debug("task finished with error",
					zap.Int("worker", id),
					zap.String("contract_id", task.JobID),
					zap.Error(err))
			}
		}
	}
}
