package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/truthlens/internal/model"
)

// HeadlineSource は見出し取得のインターフェース。
type HeadlineSource interface {
	FetchHeadline(ctx context.Context, rawURL string) (string, error)
}

// ShareSource は共有数取得のインターフェース。
type ShareSource interface {
	GetShareCount(ctx context.Context, target string) (int, error)
}

// Enricher はURL・SNSリンクの見出しと共有数を取得する。
// 各取得元はnilなら無効として扱う。
type Enricher struct {
	headlines HeadlineSource
	shares    ShareSource
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEnricher はEnricherの新しいインスタンスを生成する。
func NewEnricher(headlines HeadlineSource, shares ShareSource, timeout time.Duration, logger *slog.Logger) *Enricher {
	return &Enricher{
		headlines: headlines,
		shares:    shares,
		timeout:   timeout,
		logger:    logger,
	}
}

// Enrich はアイテムのメタデータを取得する。取得できなかった項目はゼロ値を返す。
func (e *Enricher) Enrich(ctx context.Context, item *model.ContentItem) (string, *int) {
	if item.Kind != model.KindURL && item.Kind != model.KindSocial {
		return "", nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var headline string
	if e.headlines != nil {
		h, err := e.headlines.FetchHeadline(ctx, item.URL)
		if err != nil {
			e.logger.Warn("見出しの取得に失敗しました",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()),
			)
		} else {
			headline = h
		}
	}

	var shares *int
	if e.shares != nil {
		n, err := e.shares.GetShareCount(ctx, item.URL)
		if err != nil {
			e.logger.Warn("共有数の取得に失敗しました",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()),
			)
		} else {
			shares = &n
		}
	}

	return headline, shares
}
