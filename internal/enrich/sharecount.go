package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	// defaultShareEndpoint ははてなブックマーク一括取得APIのエンドポイント。
	defaultShareEndpoint = "https://bookmark.hatenaapis.com/count/entries"
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 30 * time.Second
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 10 * time.Minute
	// maxShareCountBodySize は共有数APIレスポンスの最大読み取りサイズ（1MiB）。
	maxShareCountBodySize int64 = 1 << 20
)

// ShareCounter ははてなブックマークAPIでURLの共有数を取得する。
// API呼び出しはレートリミッターで間隔を空け、
// 429/5xxが続いた場合は指数バックオフの間呼び出しをスキップする。
type ShareCounter struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	clock       clockwork.Clock
	logger      *slog.Logger
	endpoint    string // テスト用にエンドポイントを差し替え可能
	maxBodySize int64

	mu                sync.Mutex
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewShareCounter はShareCounterの新しいインスタンスを生成する。
// apiIntervalはAPI呼び出しの最低間隔。
func NewShareCounter(httpClient *http.Client, apiInterval time.Duration, clock clockwork.Clock, logger *slog.Logger) *ShareCounter {
	return &ShareCounter{
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Every(apiInterval), 1),
		clock:       clock,
		logger:      logger,
		endpoint:    defaultShareEndpoint,
		maxBodySize: maxShareCountBodySize,
	}
}

// ErrBackoff はバックオフ中で呼び出しをスキップしたことを表す。
var ErrBackoff = errors.New("共有数APIはバックオフ中です")

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30秒、2倍ずつ増加、最大10分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ShouldBackoff はバックオフが必要なHTTPステータス（429/5xx）かどうかを返す。
func ShouldBackoff(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// GetShareCount はURLの共有数を取得する。レスポンスに含まれないURLは0件として扱う。
func (c *ShareCounter) GetShareCount(ctx context.Context, target string) (int, error) {
	c.mu.Lock()
	until := c.backoffUntil
	c.mu.Unlock()
	if !until.IsZero() && c.clock.Now().Before(until) {
		return 0, ErrBackoff
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return 0, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Add("url", target)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if ShouldBackoff(resp.StatusCode) {
			c.recordFailure()
		}
		return 0, fmt.Errorf("共有数APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var counts map[string]int
	if err := json.Unmarshal(body, &counts); err != nil {
		return 0, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	c.mu.Lock()
	c.consecutiveErrors = 0
	c.backoffUntil = time.Time{}
	c.mu.Unlock()

	return counts[target], nil
}

// recordFailure は連続エラー回数を増やしバックオフ期限を設定する。
func (c *ShareCounter) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	delay := CalculateBackoff(c.consecutiveErrors)
	c.consecutiveErrors++
	c.backoffUntil = c.clock.Now().Add(delay)

	c.logger.Warn("共有数APIの呼び出しが失敗したためバックオフします",
		slog.Int("consecutive_errors", c.consecutiveErrors),
		slog.Duration("backoff", delay),
	)
}
