// Package ingest は投稿を検証し、ContentItemに正規化する。
// 検証に失敗した投稿はContentItemを生成せず、同期的にValidationErrorを返す。
package ingest

import (
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hitoshi/truthlens/internal/model"
)

// titlePreviewLength はテキスト投稿のタイトルに使う先頭文字数。
const titlePreviewLength = 50

// FileSubmission はファイル投稿。
type FileSubmission struct {
	Data      []byte
	MediaType string
	// SizeBytes は申告されたサイズ。Dataの長さと大きい方を実サイズとみなす。
	SizeBytes int64
	Filename  string
}

// SocialSubmission はSNS・動画プラットフォームのリンク投稿。
type SocialSubmission struct {
	URL string
	// Platform はプラットフォーム名。空の場合はURLのホストから推定する。
	Platform string
}

// Sanitizer はテキストからHTMLを除去する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Ingestor は投稿をContentItemに変換する。I/Oは行わない。
type Ingestor struct {
	clock     clockwork.Clock
	sanitizer Sanitizer
	newID     func() string
}

// NewIngestor はIngestorを生成する。
func NewIngestor(clock clockwork.Clock, sanitizer Sanitizer) *Ingestor {
	return &Ingestor{
		clock:     clock,
		sanitizer: sanitizer,
		newID:     func() string { return uuid.New().String() },
	}
}

// IngestFile はファイル投稿を検証する。
// 画像・動画・音声以外はUnsupportedTypeError、50MiB超はSizeLimitErrorを返す。
func (i *Ingestor) IngestFile(sub FileSubmission) (*model.ContentItem, error) {
	mediaType := normalizeMediaType(sub.MediaType)
	if mediaType == "" {
		mediaType = normalizeMediaType(mime.TypeByExtension(filepath.Ext(sub.Filename)))
	}

	kind, ok := kindForMediaType(mediaType)
	if !ok {
		return nil, model.NewUnsupportedTypeError(sub.Filename, sub.MediaType)
	}

	size := max(sub.SizeBytes, int64(len(sub.Data)))
	if size > model.MaxBinarySize {
		return nil, model.NewSizeLimitError(sub.Filename, size)
	}

	filename := strings.TrimSpace(filepath.Base(sub.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = "untitled"
	}

	return &model.ContentItem{
		ID:        i.newID(),
		Kind:      kind,
		Title:     filename,
		Data:      sub.Data,
		MediaType: mediaType,
		Filename:  filename,
		SizeBytes: &size,
		CreatedAt: i.clock.Now(),
	}, nil
}

// IngestText はテキスト投稿を検証する。HTMLタグは除去して保持する。
func (i *Ingestor) IngestText(text string) (*model.ContentItem, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewEmptyContentError(model.KindText)
	}
	clean := strings.TrimSpace(text)
	if i.sanitizer != nil {
		clean = i.sanitizer.Sanitize(clean)
	}
	if clean == "" {
		return nil, model.NewEmptyContentError(model.KindText)
	}

	return &model.ContentItem{
		ID:        i.newID(),
		Kind:      model.KindText,
		Title:     "Text: " + preview(clean, titlePreviewLength),
		Text:      clean,
		CreatedAt: i.clock.Now(),
	}, nil
}

// IngestURL はニュース記事URLの投稿を検証する。
// URLの形式検証は評価時に行う。
func (i *Ingestor) IngestURL(raw string) (*model.ContentItem, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, model.NewEmptyContentError(model.KindURL)
	}

	return &model.ContentItem{
		ID:        i.newID(),
		Kind:      model.KindURL,
		Title:     "URL: " + raw,
		URL:       raw,
		CreatedAt: i.clock.Now(),
	}, nil
}

// IngestSocial はSNSリンクの投稿を検証する。
func (i *Ingestor) IngestSocial(sub SocialSubmission) (*model.ContentItem, error) {
	raw := strings.TrimSpace(sub.URL)
	if raw == "" {
		return nil, model.NewEmptyContentError(model.KindSocial)
	}

	platform := NormalizePlatform(sub.Platform)
	if platform == "" {
		platform = PlatformFromURL(raw)
	}

	return &model.ContentItem{
		ID:        i.newID(),
		Kind:      model.KindSocial,
		Title:     platform + " Video analysis",
		URL:       raw,
		Platform:  platform,
		CreatedAt: i.clock.Now(),
	}, nil
}

// NormalizePlatform は既知のプラットフォーム名を正規の表記に揃える。
// 未知の名前は前後の空白を除いてそのまま返す。
func NormalizePlatform(p string) string {
	p = strings.TrimSpace(p)
	switch strings.ToLower(p) {
	case "youtube":
		return model.PlatformYouTube
	case "instagram":
		return model.PlatformInstagram
	case "tiktok":
		return model.PlatformTikTok
	}
	return p
}

var platformHosts = map[string]string{
	"youtube.com":   model.PlatformYouTube,
	"youtu.be":      model.PlatformYouTube,
	"instagram.com": model.PlatformInstagram,
	"tiktok.com":    model.PlatformTikTok,
}

// PlatformFromURL はURLのホストからプラットフォームを推定する。
// 推定できない場合は"Social"を返す。
func PlatformFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "Social"
	}
	host := strings.ToLower(u.Hostname())
	for host != "" {
		if p, ok := platformHosts[host]; ok {
			return p
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}
	return "Social"
}

func normalizeMediaType(mediaType string) string {
	if strings.TrimSpace(mediaType) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mt
}

func kindForMediaType(mediaType string) (model.ContentKind, bool) {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return model.KindImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return model.KindVideo, true
	case strings.HasPrefix(mediaType, "audio/"):
		return model.KindAudio, true
	}
	return "", false
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
