// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/newsmill/internal/config"
	"github.com/hitoshi/newsmill/internal/database"
	"github.com/hitoshi/newsmill/internal/feed"
	"github.com/hitoshi/newsmill/internal/fingerprint"
	"github.com/hitoshi/newsmill/internal/handler"
	"github.com/hitoshi/newsmill/internal/image"
	"github.com/hitoshi/newsmill/internal/logger"
	"github.com/hitoshi/newsmill/internal/metrics"
	"github.com/hitoshi/newsmill/internal/middleware"
	"github.com/hitoshi/newsmill/internal/pipeline"
	"github.com/hitoshi/newsmill/internal/progress"
	"github.com/hitoshi/newsmill/internal/repository"
	"github.com/hitoshi/newsmill/internal/rewrite"
	"github.com/hitoshi/newsmill/internal/security"
	"github.com/hitoshi/newsmill/internal/worker"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// buildCoordinator はパイプラインの全依存関係をワイヤリングする。
// serveとworkerの両モードで共有される。
func buildCoordinator(cfg *config.Config, db *sql.DB, reg prometheus.Registerer) (*pipeline.Coordinator, *progress.Reporter, repository.SourceRepository, repository.RunRepository) {
	sourceRepo := repository.NewPostgresSourceRepo(db)
	articleRepo := repository.NewPostgresArticleRepo(db)
	runRepo := repository.NewPostgresRunRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	fetcher := feed.NewFetcher(ssrfGuard, slog.Default(),
		cfg.FeedTimeout, cfg.FetchMaxSize, cfg.UserAgent, cfg.ItemsPerSource)

	scraper := image.NewPageScraper(ssrfGuard, slog.Default(),
		cfg.PageTimeout, cfg.FetchMaxSize, cfg.UserAgent)
	resolver := image.NewResolver(scraper, slog.Default())
	downloader := image.NewDownloader(ssrfGuard, slog.Default(),
		cfg.PageTimeout, cfg.FetchMaxSize, cfg.UserAgent)

	// リライトAPIの連続呼び出しは1 req/secに抑える
	rewriter := rewrite.NewRewriter(slog.Default(),
		rate.NewLimiter(rate.Every(time.Second), 1),
		cfg.RewriteAPIURL, cfg.RewriteAPIKey, cfg.RewriteModel,
		cfg.RewriteMaxTokens, cfg.RewriteTimeout)

	reporter := progress.NewReporter(runRepo, slog.Default())
	collector := metrics.NewCollector(reg)

	coordinator := pipeline.NewCoordinator(
		sourceRepo, articleRepo, fetcher, rewriter, resolver, downloader,
		sanitizer, fingerprint.NewGenerator(sanitizer), reporter, collector,
		slog.Default(),
	)

	return coordinator, reporter, sourceRepo, runRepo
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	coordinator, reporter, sourceRepo, runRepo := buildCoordinator(cfg, db, registry)

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.TriggerRate = rate.Limit(float64(cfg.RateLimitTrigger) / 60.0)
	rateLimiterCfg.TriggerBurst = cfg.RateLimitTrigger
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		Gatherer:    registry,
		Starter:     coordinator,
		Finder:      runRepo,
		Progress:    reporter,
		Sources:     sourceRepo,
		DB:          db,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、スケジュール実行のワーカーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	coordinator, _, _, _ := buildCoordinator(cfg, db, registry)

	w := worker.New(coordinator, slog.Default(), cfg.RunInterval)
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	slog.Info("worker starting", slog.Duration("run_interval", cfg.RunInterval))

	// 起動直後に1回スケジュール評価を行う
	w.Tick(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down worker...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	w.Stop(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
