package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	taskTypeExtract = "contract:extract"
	queueContracts  = "contracts"
)

// Manager は Asynq (Redis) のキューを使ってジョブを別プロセスのワーカーにも配れる Dispatcher です。
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	inspector *asynq.Inspector
	mux       *asynq.ServeMux
	runner    Runner
	maxQueued int
	logger    *zap.Logger
}

// ManagerOptions は Manager の設定です。
type ManagerOptions struct {
	RedisURL    string
	Concurrency int
	MaxQueued   int // pending のタスクがこの数以上なら投入を拒否する
}

// NewManager は Manager を初期化します。runner が nil の場合はワーカーを起動できません（投入専用）。
func NewManager(opts ManagerOptions, runner Runner, logger *zap.Logger) (*Manager, error) {
	if opts.RedisURL == "" {
		return nil, errors.New("redis url is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	redisOpt, err := asynq.ParseRedisURI(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	manager := &Manager{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		runner:    runner,
		maxQueued: opts.MaxQueued,
		logger:    logger,
	}
	if runner != nil {
		manager.server = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queueContracts: 1,
			},
			Logger: logger.Sugar(),
		})
		manager.mux = asynq.NewServeMux()
		manager.mux.HandleFunc(taskTypeExtract, manager.handleExtractTask)
	}
	return manager, nil
}

// Dispatch はタスクをキューに投入します。失敗したタスクは再実行しません。
func (m *Manager) Dispatch(ctx context.Context, task Task) error {
	if task.JobID == "" {
		return fmt.Errorf("task.JobID is required")
	}
	if m.maxQueued > 0 {
		// キューがまだ作られていない場合は情報取得に失敗するが、空とみなしてよい
		if info, err := m.inspector.GetQueueInfo(queueContracts); err == nil && info.Pending >= m.maxQueued {
			return ErrQueueFull
		}
	}

	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	t := asynq.NewTask(taskTypeExtract, body, asynq.Queue(queueContracts), asynq.MaxRetry(0))
	info, err := m.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.JobID, err)
	}
	m.logger.Debug("task enqueued", zap.String("contract_id", task.JobID), zap.String("task_id", info.ID))
	return nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() error {
	if m.server == nil {
		return errors.New("manager has no runner")
	}
	return m.server.Start(m.mux)
}

// Run はワーカーを起動し、ctx が終了したらサーバーを停止します。
func (m *Manager) Run(ctx context.Context) error {
	if err := m.StartWorkers(); err != nil {
		return err
	}
	m.logger.Info("asynq workers started", zap.String("queue", queueContracts))
	<-ctx.Done()
	m.server.Shutdown()
	return nil
}

// Close はクライアントとインスペクターを閉じます。
func (m *Manager) Close() error {
	return errors.Join(m.client.Close(), m.inspector.Close())
}

func (m *Manager) handleExtractTask(ctx context.Context, t *asynq.Task) error {
	var task Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if task.JobID == "" {
		return fmt.Errorf("missing contract_id in payload: %w", asynq.SkipRetry)
	}
	if err := m.runner.Run(ctx, task); err != nil {
		// ワーカー側で記録済み。ジョブは最後に書き込めた状態で止まる
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return nil
}
