package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/contract-forge/internal/config"
	"github.com/yourusername/contract-forge/internal/extract"
	"github.com/yourusername/contract-forge/internal/jobs"
)

// Runtime はジョブの受付と実行に必要な部品一式です。
type Runtime struct {
	Store   jobs.Store
	Service *jobs.Service
	Watcher *jobs.Watcher

	pool    *jobs.Pool
	manager *jobs.Manager
	workers bool
	logger  *zap.Logger
}

// Options はこのプロセスで何を動かすかを指定します。
type Options struct {
	// Workers が true の場合、このプロセスで抽出ワーカーを実行する
	Workers bool
}

// NewWorker は設定に従って抽出器とスコアリングを組み合わせた Worker を作成します。
func NewWorker(cfg *config.Config, store jobs.Store, logger *zap.Logger) (*jobs.Worker, error) {
	scoring, err := extract.ParseScoringMode(cfg.ScoringMode)
	if err != nil {
		return nil, err
	}
	extractor := extract.NewPlaceholder(cfg.ExtractSteps, cfg.ExtractStepInterval)
	return jobs.NewWorker(store, extractor, scoring, logger.Named("worker"))
}

// New はストアに接続し、DISPATCH_MODE に応じたディスパッチャーとサービスを組み立てます。
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt, err := newRuntime(cfg, store, logger, opts)
	if err != nil {
		_ = store.Close(context.Background())
		return nil, err
	}
	return rt, nil
}

func newRuntime(cfg *config.Config, store jobs.Store, logger *zap.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{
		Store:   store,
		Watcher: jobs.NewWatcher(store, cfg.StaleAfter, cfg.StaleScanInterval, logger.Named("stale")),
		workers: opts.Workers,
		logger:  logger,
	}

	var runner jobs.Runner
	if opts.Workers || cfg.DispatchMode == config.DispatchPool {
		worker, err := NewWorker(cfg, store, logger)
		if err != nil {
			return nil, err
		}
		runner = worker
	}

	var dispatcher jobs.Dispatcher
	switch cfg.DispatchMode {
	case config.DispatchPool:
		rt.pool = jobs.NewPool(runner, cfg.WorkerConcurrency, cfg.WorkerQueueSize, logger.Named("pool"))
		// プール方式ではワーカーが無いと受け付けたジョブが進まない
		rt.workers = true
		dispatcher = rt.pool
	case config.DispatchQueue:
		if !opts.Workers {
			runner = nil
		}
		manager, err := jobs.NewManager(jobs.ManagerOptions{
			RedisURL:    cfg.RedisURL,
			Concurrency: cfg.WorkerConcurrency,
			MaxQueued:   cfg.WorkerQueueSize,
		}, runner, logger.Named("queue"))
		if err != nil {
			return nil, err
		}
		rt.manager = manager
		dispatcher = manager
	default:
		return nil, fmt.Errorf("unknown DISPATCH_MODE: %q", cfg.DispatchMode)
	}

	svc, err := jobs.NewService(store, dispatcher, logger.Named("service"))
	if err != nil {
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// Start はワーカーと滞留監視を g の上で起動します。ctx が終了すると停止します。
func (r *Runtime) Start(ctx context.Context, g *errgroup.Group) {
	if r.workers {
		switch {
		case r.pool != nil:
			g.Go(func() error { return r.pool.Run(ctx) })
		case r.manager != nil:
			g.Go(func() error { return r.manager.Run(ctx) })
		}
	}
	g.Go(func() error { return r.Watcher.Run(ctx) })
}

// Close はキュークライアントとストアの接続を閉じます。
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.manager != nil {
		errs = append(errs, r.manager.Close())
	}
	errs = append(errs, r.Store.Close(ctx))
	return errors.Join(errs...)
}
