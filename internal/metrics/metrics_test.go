package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// インターフェース準拠の検証
var _ MetricsCollector = (*Collector)(nil)

// /metricsエンドポイントで記録済みメトリクスが返ることを検証
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRun(true)
	c.RecordRunDuration(3 * time.Second)
	c.RecordItemProcessed("create")
	c.RecordItemProcessed("skip")
	c.RecordImageResolved("og_image")
	c.RecordRewriteFailure()
	c.RecordSourceFetchFailure()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		`newsmill_runs_total{trigger="manual"} 1`,
		`newsmill_items_processed_total{decision="create"} 1`,
		`newsmill_items_processed_total{decision="skip"} 1`,
		`newsmill_image_resolved_total{strategy="og_image"} 1`,
		"newsmill_rewrite_failures_total 1",
		"newsmill_source_fetch_failures_total 1",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("レスポンスに %q が含まれるべき", metric)
		}
	}
}

// 手動・スケジュール実行がトリガーラベルで区別されることを検証
func TestRecordRun_TriggerLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRun(false)
	c.RecordRun(false)
	c.RecordRun(true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	bodyStr := string(body)

	if !strings.Contains(bodyStr, `newsmill_runs_total{trigger="scheduled"} 2`) {
		t.Error("スケジュール実行が2回記録されるべき")
	}
	if !strings.Contains(bodyStr, `newsmill_runs_total{trigger="manual"} 1`) {
		t.Error("手動実行が1回記録されるべき")
	}
}
