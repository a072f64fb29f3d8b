package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// リクエストログにmethod/path/statusが含まれることを検証
func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var logged map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logged); err != nil {
		t.Fatalf("ログのパースに失敗: %v", err)
	}
	if logged["method"] != "GET" || logged["path"] != "/api/progress" {
		t.Errorf("logged = %v", logged)
	}
	if logged["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v", logged["status"])
	}
	if logged["level"] != "WARN" {
		t.Errorf("4xxはWARNレベルでログされるべき: %v", logged["level"])
	}
}

// panicがJSONの500レスポンスに変換されることを検証
func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := NewRecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Result().StatusCode)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	if body["code"] != "internal_error" {
		t.Errorf("code = %q", body["code"])
	}
}

// バースト超過で429が返ることを検証
func TestRateLimiter_Exceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		TriggerRate:     rate.Limit(0.01),
		TriggerBurst:    2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.TriggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		statuses = append(statuses, w.Result().StatusCode)
	}

	if statuses[0] != http.StatusAccepted || statuses[1] != http.StatusAccepted {
		t.Errorf("バースト内のリクエストは通るべき: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("バースト超過は429になるべき: %v", statuses)
	}
}

// クライアントIPごとに独立したリミッターが使われることを検証
func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		TriggerRate:     rate.Limit(0.01),
		TriggerBurst:    1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.TriggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
		req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode != http.StatusAccepted {
			t.Errorf("別IPの初回リクエストは通るべき: %s -> %d", addr, w.Result().StatusCode)
		}
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2", rl.LimiterCount())
	}
}

// 429レスポンスにRetry-Afterヘッダーが付くことを検証
func TestWriteRateLimitResponse(t *testing.T) {
	w := httptest.NewRecorder()
	writeRateLimitResponse(w, rate.Limit(0.1))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "10" {
		t.Errorf("Retry-After = %q, want 10", resp.Header.Get("Retry-After"))
	}

	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]string
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("ボディのパースに失敗: %v", err)
	}
	if parsed["code"] != "rate_limit_exceeded" {
		t.Errorf("code = %q", parsed["code"])
	}
}
