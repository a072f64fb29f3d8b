package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/pipeline"
)

// RunStarter はラン開始のインターフェース。
type RunStarter interface {
	// Start はランを開始し、実行IDを即座に返す。処理はバックグラウンドで継続する。
	Start(ctx context.Context, opts pipeline.Options) (string, error)
}

// RunFinder は実行履歴参照のインターフェース。
type RunFinder interface {
	FindLatest(ctx context.Context) (*model.Run, error)
}

// RunHandler はラン操作のHTTPハンドラー。
type RunHandler struct {
	starter RunStarter
	finder  RunFinder
}

// NewRunHandler はRunHandlerを生成する。
func NewRunHandler(starter RunStarter, finder RunFinder) *RunHandler {
	return &RunHandler{
		starter: starter,
		finder:  finder,
	}
}

// triggerRunRequest は手動実行リクエストのボディ。ボディなしも許容する。
type triggerRunRequest struct {
	SourceIDs []string `json:"source_ids"`
}

// triggerRunResponse は手動実行レスポンス。
type triggerRunResponse struct {
	RunID string `json:"run_id"`
}

// runResponse は実行履歴のAPIレスポンス。
type runResponse struct {
	ID            string     `json:"id"`
	Forced        bool       `json:"forced"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Processed     int        `json:"processed"`
	Created       int        `json:"created"`
	Updated       int        `json:"updated"`
	Skipped       int        `json:"skipped"`
	Failed        int        `json:"failed"`
	FailedSources []string   `json:"failed_sources"`
	Log           []string   `json:"log"`
}

// TriggerRun は手動実行を処理する。スケジュール判定は無視される。
// POST /api/runs
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request",
				"リクエストボディの解析に失敗しました。")
			return
		}
	}

	runID, err := h.starter.Start(r.Context(), pipeline.Options{
		Forced:    true,
		SourceIDs: req.SourceIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrRunActive):
			writeError(w, http.StatusConflict, "run_active",
				"別のランが進行中です。完了後に再試行してください。")
		case errors.Is(err, model.ErrRewriteNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "rewrite_not_configured",
				"リライトAPIの接続情報が設定されていません。")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error",
				"ランの開始に失敗しました。")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, triggerRunResponse{RunID: runID})
}

// LatestRun は最新の実行履歴を返す。
// GET /api/runs/latest
func (h *RunHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.finder.FindLatest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error",
			"実行履歴の取得に失敗しました。")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "not_found", "実行履歴がありません。")
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		ID:            run.ID,
		Forced:        run.Forced,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		Processed:     run.Processed,
		Created:       run.Created,
		Updated:       run.Updated,
		Skipped:       run.Skipped,
		Failed:        run.Failed,
		FailedSources: run.FailedSources,
		Log:           run.LogSnapshot,
	})
}
