// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/contract-forge/internal/app"
	"github.com/yourusername/contract-forge/internal/config"
	"github.com/yourusername/contract-forge/internal/contracts"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.LogLevel, cfg.GinMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setupJobs(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Warn("failed to close job runtime", zap.Error(err))
		}
	}()

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)
	router := newRouter(cfg, rt, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	rt.Start(gctx, g)

	g.Go(func() error {
		logger.Info("starting api server",
			zap.String("addr", srv.Addr),
			zap.String("mode", cfg.GinMode),
			zap.String("store", cfg.StoreBackend),
			zap.String("dispatch", cfg.DispatchMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down api server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newRouter はミドルウェアとルーティングを設定したルーターを返します。
func newRouter(cfg *config.Config, rt *app.Runtime, logger *zap.Logger) *gin.Engine {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	origins := cfg.AllowedOrigins()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	contracts.RegisterRoutes(router, rt.Service, contracts.HandlerOptions{
		MaxFileSize: cfg.MaxFileSize,
		StrictPDF:   cfg.UploadStrictPDF,
		Logger:      logger.Named("http"),
	})
	return router
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "contract-forge-api",
		"version": "0.1.0",
	})
}
