// Package app は設定からストア・ワーカー・ディスパッチャーを組み立てます。
// API サーバーと CLI の両方から使われます。
package app

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger は LOG_LEVEL と GIN_MODE に応じた zap ロガーを作成します。
// release モードでは JSON、それ以外では開発者向けのコンソール出力になります。
func NewLogger(level, ginMode string) (*zap.Logger, error) {
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	if ginMode == "release" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = atomic
	return cfg.Build()
}
