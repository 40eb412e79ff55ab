// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ジョブストアのバックエンド種別
const (
	StoreMongo    = "mongo"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// ディスパッチ方式
const (
	DispatchPool  = "pool"  // プロセス内の有界ワーカープール
	DispatchQueue = "queue" // Asynq (Redis) キュー
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port     string // APIサーバーのポート番号
	GinMode  string // Ginの実行モード (debug, release, test)
	LogLevel string // zap のログレベル (debug, info, warn, error)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// アップロード制限
	MaxFileSize     int64 // 単一ファイルの最大サイズ（バイト）
	UploadStrictPDF bool  // true の場合は拡張子に加えて中身もPDFか検証する

	// ジョブストア設定
	StoreBackend     string // mongo, redis, postgres, memory
	MongoURI         string
	MongoDatabase    string
	RedisURL         string // Redis ストアと Asynq キューで共用
	PostgresURL      string
	RecordTTLMinutes int // Redis レコードの有効期限（0 は無期限）

	// ディスパッチ設定
	DispatchMode      string // pool, queue
	WorkerConcurrency int    // 同時に実行する抽出ワーカー数
	WorkerQueueSize   int    // 待機できるジョブ数の上限
	EmbeddedWorkers   bool   // queue モードで API プロセス内でもワーカーを起動するか

	// 抽出設定
	ExtractSteps        int
	ExtractStepInterval time.Duration
	ScoringMode         string // presence, legacy

	// 滞留ジョブ監視
	StaleAfter        time.Duration
	StaleScanInterval time.Duration // 0 の場合は監視しない
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:     getEnv("PORT", "5000"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		MaxFileSize:     getEnvAsInt64("MAX_FILE_SIZE", 52428800), // 50MB
		UploadStrictPDF: getEnvAsBool("UPLOAD_STRICT_PDF", false),

		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreMongo)),
		MongoURI:         getEnv("MONGO_URI", "mongodb://mongo:27017/"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "contracts_db"),
		RedisURL:         getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		RecordTTLMinutes: getEnvAsInt("RECORD_TTL_MINUTES", 0),

		DispatchMode:      strings.ToLower(getEnv("DISPATCH_MODE", DispatchPool)),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		WorkerQueueSize:   getEnvAsInt("WORKER_QUEUE_SIZE", 100),
		EmbeddedWorkers:   getEnvAsBool("EMBEDDED_WORKERS", true),

		ExtractSteps:        getEnvAsInt("EXTRACT_STEPS", 10),
		ExtractStepInterval: getEnvAsDuration("EXTRACT_STEP_INTERVAL", time.Second),
		ScoringMode:         strings.ToLower(getEnv("SCORING_MODE", "presence")),

		StaleAfter:        getEnvAsDuration("STALE_AFTER", 5*time.Minute),
		StaleScanInterval: getEnvAsDuration("STALE_SCAN_INTERVAL", time.Minute),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres store")
		}
	case StoreMemory:
		// 開発用。永続化されない
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %q", c.StoreBackend)
	}

	switch c.DispatchMode {
	case DispatchPool:
	case DispatchQueue:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when DISPATCH_MODE=queue")
		}
		if c.StoreBackend == StoreMemory {
			// 別プロセスのワーカーからメモリ上のレコードは見えない
			return fmt.Errorf("DISPATCH_MODE=queue cannot be combined with STORE_BACKEND=memory")
		}
	default:
		return fmt.Errorf("unknown DISPATCH_MODE: %q", c.DispatchMode)
	}

	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.WorkerQueueSize < 1 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be at least 1")
	}
	if c.ExtractSteps < 1 {
		return fmt.Errorf("EXTRACT_STEPS must be at least 1")
	}
	if c.ExtractStepInterval < 0 {
		return fmt.Errorf("EXTRACT_STEP_INTERVAL must not be negative")
	}
	if c.ScoringMode != "presence" && c.ScoringMode != "legacy" {
		return fmt.Errorf("SCORING_MODE must be presence or legacy")
	}
	if c.StaleScanInterval > 0 && c.StaleAfter <= 0 {
		return fmt.Errorf("STALE_AFTER must be positive when STALE_SCAN_INTERVAL is set")
	}

	return nil
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// RecordTTL は Redis レコードの有効期限を返します。
func (c *Config) RecordTTL() time.Duration {
	if c.RecordTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.RecordTTLMinutes) * time.Minute
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は "1s" や "500ms" 形式の環境変数を取得します。
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
