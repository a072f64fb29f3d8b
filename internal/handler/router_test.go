package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newsmill/internal/middleware"
	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/pipeline"
	"github.com/hitoshi/newsmill/internal/progress"
)

// --- テスト用フェイク ---

type fakeStarter struct {
	runID    string
	err      error
	lastOpts pipeline.Options
}

func (f *fakeStarter) Start(ctx context.Context, opts pipeline.Options) (string, error) {
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.runID, nil
}

type fakeFinder struct {
	run *model.Run
	err error
}

func (f *fakeFinder) FindLatest(ctx context.Context) (*model.Run, error) {
	return f.run, f.err
}

type fakeProgress struct {
	snapshot progress.Snapshot
}

func (f *fakeProgress) Snapshot() progress.Snapshot { return f.snapshot }

type fakeLister struct {
	sources []*model.Source
	err     error
}

func (f *fakeLister) FindByID(ctx context.Context, id string) (*model.Source, error) {
	for _, s := range f.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, f.err
}

func (f *fakeLister) ListEnabled(ctx context.Context) ([]*model.Source, error) {
	return f.sources, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(ctx context.Context) error { return f.err }

type testDeps struct {
	starter  *fakeStarter
	finder   *fakeFinder
	progress *fakeProgress
	lister   *fakeLister
	pinger   *fakePinger
}

func newTestRouter() (http.Handler, *testDeps) {
	deps := &testDeps{
		starter:  &fakeStarter{runID: "run-1"},
		finder:   &fakeFinder{},
		progress: &fakeProgress{},
		lister:   &fakeLister{},
		pinger:   &fakePinger{},
	}

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())

	router := NewRouter(&RouterDeps{
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		RateLimiter: limiter,
		Gatherer:    prometheus.NewRegistry(),
		Starter:     deps.starter,
		Finder:      deps.finder,
		Progress:    deps.progress,
		Sources:     deps.lister,
		DB:          deps.pinger,
	})
	return router, deps
}

// --- テスト ---

// 手動実行トリガーが202と実行IDを返すことを検証
func TestTriggerRun_Accepted(t *testing.T) {
	router, deps := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"source_ids": ["s1", "s2"]}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	var resp triggerRunResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.RunID != "run-1" {
		t.Errorf("run_id = %q", resp.RunID)
	}
	if !deps.starter.lastOpts.Forced {
		t.Error("手動実行はForced = true で開始されるべき")
	}
	if len(deps.starter.lastOpts.SourceIDs) != 2 {
		t.Errorf("SourceIDs = %v", deps.starter.lastOpts.SourceIDs)
	}
}

// ボディなしの手動実行が全ソース対象として受理されることを検証
func TestTriggerRun_EmptyBody(t *testing.T) {
	router, deps := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if len(deps.starter.lastOpts.SourceIDs) != 0 {
		t.Errorf("SourceIDs = %v, want 空", deps.starter.lastOpts.SourceIDs)
	}
}

// 実行中のランがある場合に409が返ることを検証
func TestTriggerRun_Conflict(t *testing.T) {
	router, deps := newTestRouter()
	deps.starter.err = model.ErrRunActive

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != "run_active" {
		t.Errorf("code = %q", resp.Code)
	}
}

// リライトAPI未設定で503が返ることを検証
func TestTriggerRun_NotConfigured(t *testing.T) {
	router, deps := newTestRouter()
	deps.starter.err = model.ErrRewriteNotConfigured

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

// 不正なJSONボディで400が返ることを検証
func TestTriggerRun_InvalidBody(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader("{invalid"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// 進捗エンドポイントがスナップショットを返すことを検証
func TestGetProgress(t *testing.T) {
	router, deps := newTestRouter()
	deps.progress.snapshot = progress.Snapshot{
		Active:  true,
		RunID:   "run-9",
		Total:   10,
		Index:   3,
		Percent: 30,
		Status:  "処理中",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var snap progress.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if !snap.Active || snap.RunID != "run-9" || snap.Percent != 30 {
		t.Errorf("snapshot = %+v", snap)
	}
}

// 最新実行履歴の取得を検証
func TestLatestRun(t *testing.T) {
	router, deps := newTestRouter()
	finished := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	deps.finder.run = &model.Run{
		ID:         "run-7",
		Forced:     true,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
		Processed:  12,
		Created:    5,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp runResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.ID != "run-7" || resp.Processed != 12 || resp.Created != 5 {
		t.Errorf("resp = %+v", resp)
	}
}

// 実行履歴がない場合に404が返ることを検証
func TestLatestRun_NotFound(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// ソース一覧がスケジュール状態付きで返ることを検証
func TestListSources(t *testing.T) {
	router, deps := newTestRouter()
	overdue := time.Now().Add(-48 * time.Hour)
	deps.lister.sources = []*model.Source{
		{
			ID:              "s1",
			URL:             "https://example.com/feed",
			Name:            "例",
			Enabled:         true,
			ScheduleUnit:    model.ScheduleUnitDay,
			ScheduleCount:   1,
			DedupPolicy:     "update-duplicates",
			LastProcessedAt: &overdue,
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp []sourceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len = %d, want 1", len(resp))
	}
	if resp[0].ID != "s1" || !resp[0].Due {
		t.Errorf("resp[0] = %+v", resp[0])
	}
}

// ソース個別取得を検証
func TestGetSource(t *testing.T) {
	router, deps := newTestRouter()
	deps.lister.sources = []*model.Source{
		{
			ID:            "s1",
			URL:           "https://example.com/feed",
			Name:          "例",
			Enabled:       true,
			ScheduleUnit:  model.ScheduleUnitDay,
			ScheduleCount: 1,
			DedupPolicy:   "skip-duplicates",
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sources/s1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp sourceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.ID != "s1" || resp.DedupPolicy != "skip-duplicates" {
		t.Errorf("resp = %+v", resp)
	}
}

// 存在しないソースIDで404が返ることを検証
func TestGetSource_NotFound(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/sources/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// ヘルスチェックがDB疎通状態を反映することを検証
func TestHealth(t *testing.T) {
	router, deps := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	deps.pinger.err = fmt.Errorf("connection refused")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// /metricsエンドポイントが200を返すことを検証
func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
