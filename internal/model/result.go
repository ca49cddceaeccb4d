package model

import (
	"strings"
	"time"
)

// Verdict は二値判定を表す。
type Verdict string

const (
	// VerdictVerified は信頼できる判定。
	VerdictVerified Verdict = "verified"
	// VerdictSuspicious は疑わしい判定。
	VerdictSuspicious Verdict = "suspicious"
)

// VerifiedThreshold はVerified判定となる信頼スコアの下限（境界値を含む）。
const VerifiedThreshold = 60.0

// VerdictFor は信頼スコアから判定を導出する。判定を決める唯一の規則。
func VerdictFor(trustScore float64) Verdict {
	if trustScore >= VerifiedThreshold {
		return VerdictVerified
	}
	return VerdictSuspicious
}

// Reasoning は判定の根拠。
type Reasoning struct {
	Primary   string
	Secondary []string
}

// AnalysisResult は完了したジョブごとに1回だけ生成される解析結果。
// ResultStoreに追加された後は不変。
type AnalysisResult struct {
	ItemID     string
	Kind       ContentKind
	Title      string
	Verdict    Verdict
	TrustScore float64
	Confidence float64
	Reasoning  Reasoning
	Sources    []string
	Signals    ResultSignals
	Timestamp  time.Time
}

// SignalVariant は結果シグナルのバリアント識別子。
type SignalVariant string

const (
	VariantNews   SignalVariant = "news"
	VariantVideo  SignalVariant = "video"
	VariantSocial SignalVariant = "social"
	VariantMedia  SignalVariant = "media"
)

// ResultSignals は種別ごとに固定のフィールドを持つタグ付きバリアント。
type ResultSignals interface {
	Variant() SignalVariant
}

// NewsSignals はURL・ニューステキストの結果シグナル。
type NewsSignals struct {
	URL               string
	Article           ArticleInfo
	SourceCredibility SourceCredibility
	CrossChecking     *CrossChecking
	ContentAnalysis   ContentAnalysis
	SocialMetrics     *SocialMetrics
}

// Variant はVariantNewsを返す。
func (NewsSignals) Variant() SignalVariant { return VariantNews }

// VideoSignals はYouTubeリンクの結果シグナル。
type VideoSignals struct {
	Platform      string
	URL           string
	Channel       ChannelInfo
	VideoAnalysis VideoAnalysis
	SocialMetrics *SocialMetrics
}

// Variant はVariantVideoを返す。
func (VideoSignals) Variant() SignalVariant { return VariantVideo }

// SocialSignals はInstagram・TikTok等のリンクの結果シグナル。
type SocialSignals struct {
	Platform      string
	URL           string
	SocialMetrics *SocialMetrics
}

// Variant はVariantSocialを返す。
func (SocialSignals) Variant() SignalVariant { return VariantSocial }

// MediaSignals はメディアファイル・出典不明テキストの結果シグナル。
type MediaSignals struct {
	Checks     MediaChecks
	Indicators map[string]float64
}

// Variant はVariantMediaを返す。
func (MediaSignals) Variant() SignalVariant { return VariantMedia }

// Platform は結果のプラットフォーム名を返す。該当しない場合は空文字列。
func (r *AnalysisResult) Platform() string {
	switch s := r.Signals.(type) {
	case VideoSignals:
		return s.Platform
	case SocialSignals:
		return s.Platform
	}
	return ""
}

// Source はニュース結果の情報源名を返す。
func (r *AnalysisResult) Source() string {
	if s, ok := r.Signals.(NewsSignals); ok {
		return s.Article.Source
	}
	return ""
}

// Channel は動画結果のチャンネル名を返す。
func (r *AnalysisResult) Channel() string {
	if s, ok := r.Signals.(VideoSignals); ok {
		return s.Channel.Name
	}
	return ""
}

// Matches はタイトル・情報源・チャンネル・プラットフォームに対する
// 大文字小文字を区別しない部分一致を判定する。
func (r *AnalysisResult) Matches(text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	for _, field := range []string{r.Title, r.Source(), r.Channel(), r.Platform()} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
