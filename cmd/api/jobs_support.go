package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourusername/contract-forge/internal/app"
	"github.com/yourusername/contract-forge/internal/config"
)

// setupJobs はジョブストアとディスパッチャーを初期化します。
// queue モードで EMBEDDED_WORKERS=false の場合、API プロセスは投入のみを行い、
// 抽出は contractctl worker が担当します。
func setupJobs(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app.Runtime, error) {
	workers := cfg.DispatchMode == config.DispatchPool || cfg.EmbeddedWorkers
	if !workers {
		logger.Info("extraction workers are not started in this process; run contractctl worker")
	}
	return app.New(ctx, cfg, logger, app.Options{Workers: workers})
}
