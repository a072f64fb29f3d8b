package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newsmill/internal/metrics"
	"github.com/hitoshi/newsmill/internal/middleware"
)

// Pinger はヘルスチェックで使うDB疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	Gatherer    prometheus.Gatherer

	Starter  RunStarter
	Finder   RunFinder
	Progress ProgressReader
	Sources  SourceLister
	DB       Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
//
// 手動実行トリガー（POST /api/runs）のみレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	runHandler := NewRunHandler(deps.Starter, deps.Finder)
	progressHandler := NewProgressHandler(deps.Progress)
	sourceHandler := NewSourceHandler(deps.Sources)

	r.Route("/api", func(r chi.Router) {
		r.With(deps.RateLimiter.TriggerMiddleware()).Post("/runs", runHandler.TriggerRun)
		r.Get("/runs/latest", runHandler.LatestRun)
		r.Get("/progress", progressHandler.GetProgress)
		r.Get("/sources", sourceHandler.ListSources)
		r.Get("/sources/{id}", sourceHandler.GetSource)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.DB.PingContext(req.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "db_unavailable",
				"データベースに接続できません。")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	return r
}
