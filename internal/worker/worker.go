// Package worker はスケジュール実行のバックグラウンドワーカーを提供する。
// 一定間隔でパイプラインを起動し、処理期限が到来したソースを取り込む。
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/pipeline"
)

// Runner はパイプライン実行のインターフェース。
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (string, error)
}

// Worker は定期的にスケジュール実行を起動するワーカー。
type Worker struct {
	runner   Runner
	logger   *slog.Logger
	interval time.Duration
	cron     *cron.Cron
}

// New はWorkerの新しいインスタンスを生成する。
// intervalはスケジュール評価の起動間隔で、ソース個別の処理間隔とは別物。
func New(runner Runner, logger *slog.Logger, interval time.Duration) *Worker {
	return &Worker{
		runner:   runner,
		logger:   logger,
		interval: interval,
		cron:     cron.New(),
	}
}

// Start はワーカーの定期起動を開始する。
func (w *Worker) Start() error {
	spec := fmt.Sprintf("@every %s", w.interval)
	if _, err := w.cron.AddFunc(spec, func() {
		w.Tick(context.Background())
	}); err != nil {
		return fmt.Errorf("スケジュールの登録に失敗: %w", err)
	}

	w.cron.Start()
	w.logger.Info("ワーカーを開始しました", slog.String("interval", w.interval.String()))
	return nil
}

// Stop はワーカーを停止し、実行中のジョブの完了を待つ。
// ctxのキャンセルで待機を打ち切る。
func (w *Worker) Stop(ctx context.Context) {
	done := w.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("ワーカー停止の待機がタイムアウトしました")
	}
}

// Tick は1回分のスケジュール実行を行う。
// 進行中のランがある場合はこの回をスキップする。
func (w *Worker) Tick(ctx context.Context) {
	runID, err := w.runner.Run(ctx, pipeline.Options{})
	switch {
	case errors.Is(err, model.ErrRunActive):
		w.logger.Info("別のランが進行中のためスキップしました")
	case errors.Is(err, model.ErrRewriteNotConfigured):
		w.logger.Warn("リライトAPIが未設定のためスキップしました")
	case err != nil:
		w.logger.Error("スケジュール実行に失敗しました", slog.String("error", err.Error()))
	default:
		w.logger.Info("スケジュール実行が完了しました", slog.String("run_id", runID))
	}
}
