// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// MaxBinarySize はバイナリ投稿の最大サイズ（50MiB）。
// これを超えるContentItemは生成されない。
const MaxBinarySize int64 = 50 * 1024 * 1024

// ContentKind は投稿コンテンツの種別を表す。
type ContentKind string

const (
	// KindImage は画像ファイル。
	KindImage ContentKind = "image"
	// KindVideo は動画ファイル。
	KindVideo ContentKind = "video"
	// KindAudio は音声ファイル。
	KindAudio ContentKind = "audio"
	// KindText は貼り付けテキスト。
	KindText ContentKind = "text"
	// KindURL はニュース記事のURL。
	KindURL ContentKind = "url"
	// KindSocial はSNS・動画プラットフォームのリンク。
	KindSocial ContentKind = "social"
)

// IsBinary はバイナリ種別（image/video/audio）かどうかを返す。
func (k ContentKind) IsBinary() bool {
	return k == KindImage || k == KindVideo || k == KindAudio
}

// Valid は定義済みの種別かどうかを返す。
func (k ContentKind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindText, KindURL, KindSocial:
		return true
	}
	return false
}

// ParseKinds はカンマ区切りの種別リストをパースする。
// 空要素は読み飛ばし、未知の種別はINVALID_REQUESTとする。
func ParseKinds(s string) ([]ContentKind, error) {
	var kinds []ContentKind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := ContentKind(strings.ToLower(part))
		if !k.Valid() {
			return nil, NewInvalidRequestError("kindには image, video, audio, text, url, social を指定してください")
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// 代表的なプラットフォーム名。
const (
	PlatformYouTube   = "YouTube"
	PlatformInstagram = "Instagram"
	PlatformTikTok    = "TikTok"
)

// ContentItem は正規化された投稿を表す。
// ContentIngestorが生成し、以降は読み取り専用として扱う。
type ContentItem struct {
	ID    string
	Kind  ContentKind
	Title string

	// ペイロード。Kindに応じていずれか1つのみが設定される。
	Data []byte // image/video/audio
	Text string // text
	URL  string // url/social

	MediaType string // バイナリのみ
	Filename  string // バイナリのみ
	SizeBytes *int64 // バイナリのみ
	Platform  string // socialのみ
	CreatedAt time.Time
}
