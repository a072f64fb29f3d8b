// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Rewrite（外部テキスト生成サービス）
	RewriteAPIURL    string
	RewriteAPIKey    string
	RewriteModel     string
	RewriteTimeout   time.Duration
	RewriteMaxTokens int

	// Fetch
	FeedTimeout    time.Duration
	PageTimeout    time.Duration
	FetchMaxSize   int64
	ItemsPerSource int
	UserAgent      string

	// Worker
	RunInterval time.Duration

	// Rate Limit
	RateLimitTrigger int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（ローカル開発用、無くてもエラーにしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RewriteAPIKey = os.Getenv("REWRITE_API_KEY")
	if cfg.RewriteAPIKey == "" {
		missing = append(missing, "REWRITE_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RewriteAPIURL = getEnvString("REWRITE_API_URL", "https://api.openai.com/v1")
	cfg.RewriteModel = getEnvString("REWRITE_MODEL", "gpt-4o-mini")
	cfg.RewriteTimeout = getEnvDuration("REWRITE_TIMEOUT", 60*time.Second)
	cfg.RewriteMaxTokens = getEnvInt("REWRITE_MAX_TOKENS", 2048)
	cfg.FeedTimeout = getEnvDuration("FEED_TIMEOUT", 15*time.Second)
	cfg.PageTimeout = getEnvDuration("PAGE_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.ItemsPerSource = getEnvInt("ITEMS_PER_SOURCE", 10)
	cfg.UserAgent = getEnvString("USER_AGENT", "Newsmill/1.0 Feed Aggregator")
	cfg.RunInterval = getEnvDuration("RUN_INTERVAL", 10*time.Minute)
	cfg.RateLimitTrigger = getEnvInt("RATE_LIMIT_TRIGGER", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
