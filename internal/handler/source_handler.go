package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/schedule"
)

// SourceLister はソース参照のインターフェース。
type SourceLister interface {
	// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)
	ListEnabled(ctx context.Context) ([]*model.Source, error)
}

// SourceHandler はソース参照のHTTPハンドラー。
// ソースの作成・編集は外部の管理コラボレーターが行うため、読み取りのみ提供する。
type SourceHandler struct {
	lister SourceLister
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(lister SourceLister) *SourceHandler {
	return &SourceHandler{lister: lister}
}

// sourceResponse はソース情報のAPIレスポンス。
type sourceResponse struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Name            string     `json:"name"`
	ScheduleUnit    string     `json:"schedule_unit"`
	ScheduleCount   int        `json:"schedule_count"`
	DedupPolicy     string     `json:"dedup_policy"`
	LastProcessedAt *time.Time `json:"last_processed_at"`
	Due             bool       `json:"due"`
}

// ListSources は有効ソースの一覧をスケジュール状態付きで返す。
// GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.lister.ListEnabled(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error",
			"ソース一覧の取得に失敗しました。")
		return
	}

	now := time.Now()
	responses := make([]sourceResponse, 0, len(sources))
	for _, source := range sources {
		responses = append(responses, sourceResponse{
			ID:              source.ID,
			URL:             source.URL,
			Name:            source.Name,
			ScheduleUnit:    string(source.ScheduleUnit),
			ScheduleCount:   source.ScheduleCount,
			DedupPolicy:     source.DedupPolicy,
			LastProcessedAt: source.LastProcessedAt,
			Due:             schedule.IsDue(source, now),
		})
	}

	writeJSON(w, http.StatusOK, responses)
}

// GetSource は指定IDのソースをスケジュール状態付きで返す。
// GET /api/sources/{id}
func (h *SourceHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	source, err := h.lister.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error",
			"ソースの取得に失敗しました。")
		return
	}
	if source == nil {
		writeError(w, http.StatusNotFound, "not_found",
			"指定されたソースが見つかりません。")
		return
	}

	writeJSON(w, http.StatusOK, sourceResponse{
		ID:              source.ID,
		URL:             source.URL,
		Name:            source.Name,
		ScheduleUnit:    string(source.ScheduleUnit),
		ScheduleCount:   source.ScheduleCount,
		DedupPolicy:     source.DedupPolicy,
		LastProcessedAt: source.LastProcessedAt,
		Due:             schedule.IsDue(source, time.Now()),
	})
}
