// Package enrich は評価前に外部から記事メタデータを取得する。
// 取得はベストエフォートで、失敗しても解析は継続する。
package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// userAgent は外部リクエストのUser-Agent。
const userAgent = "TruthLens/1.0 (+content verification)"

// URLGuard はSSRF防止付きのURL検証とHTTPクライアント生成のインターフェース。
type URLGuard interface {
	ParseURL(rawURL string) (*url.URL, error)
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// HeadlineFetcher はURLの指すページから見出しを取得する。
// HTMLはog:titleを優先してtitle要素を、RSS/Atomはフィードのタイトルを使う。
type HeadlineFetcher struct {
	guard       URLGuard
	timeout     time.Duration
	maxBodySize int64
}

// NewHeadlineFetcher はHeadlineFetcherの新しいインスタンスを生成する。
func NewHeadlineFetcher(guard URLGuard, timeout time.Duration, maxBodySize int64) *HeadlineFetcher {
	return &HeadlineFetcher{
		guard:       guard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// feedContentTypes はフィードとして認識するContent-Typeのリスト。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// xmlContentTypes はXMLとして認識するContent-Type（ボディ解析が必要）。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// FetchHeadline はURLを取得して見出しを返す。
func (f *HeadlineFetcher) FetchHeadline(ctx context.Context, rawURL string) (string, error) {
	u, err := f.guard.ParseURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.guard.NewSafeClient(f.timeout, f.maxBodySize).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ページがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if IsFeed(contentType, body) {
		feed, err := gofeed.NewParser().ParseString(string(body))
		if err != nil {
			return "", fmt.Errorf("フィードのパースに失敗しました: %w", err)
		}
		if title := collapseSpace(feed.Title); title != "" {
			return title, nil
		}
		return "", fmt.Errorf("フィードにタイトルがありません")
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return "", fmt.Errorf("見出しを取得できないContent-Typeです: %s", contentType)
	}

	title := ParseHTMLTitle(body)
	if title == "" {
		return "", fmt.Errorf("ページに見出しがありません")
	}
	return title, nil
}

// IsFeed はContent-Typeとボディを解析して、RSS/Atomフィードかどうかを判定する。
func IsFeed(contentType string, body []byte) bool {
	// Content-Typeからメディアタイプを抽出（charsetなどのパラメータを除去）
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, feedCT := range feedContentTypes {
		if mediaType == feedCT {
			return true
		}
	}

	isXML := false
	for _, xmlCT := range xmlContentTypes {
		if mediaType == xmlCT {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	// 先頭4KBを検査（XMLプロローグ + ルート要素が含まれるのに十分）
	prefix := strings.ToLower(string(body[:min(len(body), 4096)]))
	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// ParseHTMLTitle はHTMLのheadから見出しを抽出する。
// og:title（twitter:title）をtitle要素より優先する。
func ParseHTMLTitle(htmlBody []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	var ogTitle, title string
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return pickTitle(ogTitle, title)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "body":
				// bodyに入ったらheadの解析を終了
				return pickTitle(ogTitle, title)
			case "title":
				inTitle = tt == html.StartTagToken
			case "meta":
				if !hasAttr || ogTitle != "" {
					continue
				}
				var property, content string
				for {
					key, val, more := tokenizer.TagAttr()
					switch strings.ToLower(string(key)) {
					case "property", "name":
						property = strings.ToLower(string(val))
					case "content":
						content = string(val)
					}
					if !more {
						break
					}
				}
				if property == "og:title" || property == "twitter:title" {
					ogTitle = collapseSpace(content)
				}
			}

		case html.TextToken:
			if inTitle && title == "" {
				title = collapseSpace(string(tokenizer.Text()))
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "title":
				inTitle = false
			case "head":
				return pickTitle(ogTitle, title)
			}
		}
	}
}

func pickTitle(ogTitle, title string) string {
	if ogTitle != "" {
		return ogTitle
	}
	return title
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
