package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestShareCounter_GetShareCount(t *testing.T) {
	target := "https://www.reuters.com/world/markets-rally"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urls := r.URL.Query()["url"]
		if len(urls) != 1 || urls[0] != target {
			t.Errorf("URLパラメータ = %v, want [%s]", urls, target)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{target: 1234})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewShareCounter(server.Client(), time.Millisecond, clockwork.NewFakeClock(), newTestLogger(&buf))
	c.endpoint = server.URL

	got, err := c.GetShareCount(context.Background(), target)
	if err != nil {
		t.Fatalf("GetShareCount がエラーを返した: %v", err)
	}
	if got != 1234 {
		t.Errorf("共有数 = %d, want 1234", got)
	}
}

func TestShareCounter_OversizedBody(t *testing.T) {
	target := "https://www.reuters.com/world/markets-rally"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{target: 1234})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewShareCounter(server.Client(), time.Millisecond, clockwork.NewFakeClock(), newTestLogger(&buf))
	c.endpoint = server.URL
	c.maxBodySize = 8

	if _, err := c.GetShareCount(context.Background(), target); err == nil {
		t.Fatal("上限を超えるレスポンスでエラーにならなかった")
	}
}

func TestShareCounter_MissingURLIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewShareCounter(server.Client(), time.Millisecond, clockwork.NewFakeClock(), newTestLogger(&buf))
	c.endpoint = server.URL

	got, err := c.GetShareCount(context.Background(), "https://example.com/none")
	if err != nil {
		t.Fatalf("GetShareCount がエラーを返した: %v", err)
	}
	if got != 0 {
		t.Errorf("共有数 = %d, want 0", got)
	}
}

func TestShareCounter_BackoffOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"https://example.com/a": 5}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	clock := clockwork.NewFakeClock()
	c := NewShareCounter(server.Client(), time.Millisecond, clock, newTestLogger(&buf))
	c.endpoint = server.URL
	ctx := context.Background()

	if _, err := c.GetShareCount(ctx, "https://example.com/a"); err == nil {
		t.Fatal("429ではエラーが返されるべき")
	}

	// バックオフ中はAPIを呼び出さない
	if _, err := c.GetShareCount(ctx, "https://example.com/a"); !errors.Is(err, ErrBackoff) {
		t.Fatalf("エラー = %v, want ErrBackoff", err)
	}
	if calls.Load() != 1 {
		t.Errorf("API呼び出し回数 = %d, want 1", calls.Load())
	}

	clock.Advance(initialBackoff + time.Second)

	got, err := c.GetShareCount(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("バックオフ後の GetShareCount がエラーを返した: %v", err)
	}
	if got != 5 {
		t.Errorf("共有数 = %d, want 5", got)
	}
}

func TestShareCounter_NotFoundDoesNotBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewShareCounter(server.Client(), time.Millisecond, clockwork.NewFakeClock(), newTestLogger(&buf))
	c.endpoint = server.URL

	for i := 0; i < 2; i++ {
		_, err := c.GetShareCount(context.Background(), "https://example.com/a")
		if err == nil || errors.Is(err, ErrBackoff) {
			t.Fatalf("呼び出し%d: エラー = %v, want ステータスエラー", i, err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("API呼び出し回数 = %d, want 2", calls.Load())
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		errors int
		want   time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{5, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.errors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}

func TestShouldBackoff(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		if got := ShouldBackoff(tt.status); got != tt.want {
			t.Errorf("ShouldBackoff(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
