package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/truthlens/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newRequestFrom(method, path, client string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = client + ":40000"
	return req
}

// --- GeneralMiddleware (API全般) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		SubmissionRate:  1,
		SubmissionBurst: 10,
		CleanupInterval: 1 * time.Minute,
	}

	var buf bytes.Buffer
	rl := NewRateLimiter(cfg, newTestLogger(&buf), nil)
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom(http.MethodGet, "/api/results", "198.51.100.1"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     0.5, // 2秒に1リクエスト
		GeneralBurst:    2,
		SubmissionRate:  1,
		SubmissionBurst: 10,
		CleanupInterval: 1 * time.Minute,
	}

	var buf bytes.Buffer
	var rejected []string
	rl := NewRateLimiter(cfg, newTestLogger(&buf), func(code string) {
		rejected = append(rejected, code)
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom(http.MethodGet, "/api/jobs", "198.51.100.2"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom(http.MethodGet, "/api/jobs", "198.51.100.2"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After is not an integer: %q", resp.Header.Get("Retry-After"))
	}
	if retryAfter != 2 {
		t.Errorf("Retry-After = %d, want 2", retryAfter)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode 429 body: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
	if body.Category != model.CategorySystem {
		t.Errorf("category = %q, want %q", body.Category, model.CategorySystem)
	}

	if len(rejected) != 1 || rejected[0] != model.ErrCodeRateLimited {
		t.Errorf("rejected = %v, want [%s]", rejected, model.ErrCodeRateLimited)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		SubmissionRate:  1,
		SubmissionBurst: 1,
		CleanupInterval: 1 * time.Minute,
	}

	var buf bytes.Buffer
	rl := NewRateLimiter(cfg, newTestLogger(&buf), nil)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// クライアントAがバーストを使い切る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom(http.MethodGet, "/api/jobs", "192.0.2.10"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom(http.MethodGet, "/api/jobs", "192.0.2.10"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("client A second request: status = %d, want 429", w.Result().StatusCode)
	}

	// クライアントBは影響を受けない
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom(http.MethodGet, "/api/jobs", "192.0.2.20"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("client B: status = %d, want 200", w.Result().StatusCode)
	}

	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// --- SubmissionMiddleware のテスト ---

func TestSubmissionRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		SubmissionRate:  0.1,
		SubmissionBurst: 2,
		CleanupInterval: 1 * time.Minute,
	}

	var buf bytes.Buffer
	rl := NewRateLimiter(cfg, newTestLogger(&buf), nil)
	defer rl.Stop()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	submit := rl.GeneralMiddleware()(rl.SubmissionMiddleware()(ok))
	general := rl.GeneralMiddleware()(ok)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		submit.ServeHTTP(w, newRequestFrom(http.MethodPost, "/api/submissions/text", "192.0.2.30"))
		if w.Result().StatusCode != http.StatusAccepted {
			t.Fatalf("submission %d: status = %d, want 202", i, w.Result().StatusCode)
		}
	}

	w := httptest.NewRecorder()
	submit.ServeHTTP(w, newRequestFrom(http.MethodPost, "/api/submissions/text", "192.0.2.30"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("third submission: status = %d, want 429", w.Result().StatusCode)
	}
	if got := w.Result().Header.Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want %q", got, "10")
	}

	// 投稿の制限は一般APIに影響しない
	w = httptest.NewRecorder()
	general.ServeHTTP(w, newRequestFrom(http.MethodGet, "/api/jobs", "192.0.2.30"))
	if w.Result().StatusCode != http.StatusAccepted {
		t.Errorf("general request: status = %d, want 202", w.Result().StatusCode)
	}

	if got := rl.SubmissionLimiterCount(); got != 1 {
		t.Errorf("SubmissionLimiterCount = %d, want 1", got)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     10,
		GeneralBurst:    10,
		SubmissionRate:  10,
		SubmissionBurst: 10,
		CleanupInterval: time.Hour, // ループによる自動クリーンアップは発生させない
	}

	var buf bytes.Buffer
	rl := NewRateLimiter(cfg, newTestLogger(&buf), nil)
	defer rl.Stop()

	rl.general.get("192.0.2.40")
	rl.submissions.get("192.0.2.40")

	// 最終アクセスをTTL（CleanupIntervalの2倍）より前に巻き戻す
	old := time.Now().Add(-3 * time.Hour)
	rl.general.limiters["192.0.2.40"].lastAccess = old
	rl.submissions.limiters["192.0.2.40"].lastAccess = old
	rl.general.get("192.0.2.41")

	rl.cleanup()

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", got)
	}
	if got := rl.SubmissionLimiterCount(); got != 0 {
		t.Errorf("SubmissionLimiterCount = %d, want 0", got)
	}
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 30)

	if cfg.GeneralRate != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.SubmissionRate != 0.5 {
		t.Errorf("SubmissionRate = %v, want 0.5", cfg.SubmissionRate)
	}
	if cfg.SubmissionBurst != 30 {
		t.Errorf("SubmissionBurst = %d, want 30", cfg.SubmissionBurst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, 5*time.Minute)
	}

	if DefaultRateLimiterConfig() != cfg {
		t.Error("DefaultRateLimiterConfig should equal NewRateLimiterConfig(120, 30)")
	}
}
