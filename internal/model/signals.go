package model

import "time"

// SignalBundle は1つの評価器が出力するシグナル群。
// 主評価器は Primary を持ち、補助評価器は任意のエンリッチメントブロックのみを持つ。
type SignalBundle struct {
	Evaluator string

	Primary *PrimarySignal

	SourceCredibility *SourceCredibility
	CrossChecking     *CrossChecking
	ContentAnalysis   *ContentAnalysis
	VideoAnalysis     *VideoAnalysis
	SocialMetrics     *SocialMetrics
	ChannelInfo       *ChannelInfo
	Article           *ArticleInfo
	MediaChecks       *MediaChecks

	// Indicators は信頼度と同じ向きのサブスコア（0-100）。信頼確度の算出に使う。
	Indicators map[string]float64
	// Labels はカテゴリ値（bias、factual reporting など）。
	Labels map[string]string
}

// PrimarySignal は主評価器が算出した信頼スコアと判定分岐ごとの根拠。
type PrimarySignal struct {
	TrustScore     float64 // [0,100]にクランプ済み
	BaseConfidence float64 // 参照実装でサンプリングされる確度 [70,100]
	Verified       Branch
	Suspicious     Branch
}

// Branch は判定分岐（verified/suspicious）ごとの説明文と参照元。
type Branch struct {
	Primary   string
	Secondary []string
	Sources   []string
}

// SourceCredibility は情報源レジストリに基づく評価。
type SourceCredibility struct {
	Rating           float64 `json:"rating"`
	FactualReporting string  `json:"factualReporting"`
	Bias             string  `json:"bias"`
	Reputation       string  `json:"reputation"`
	TrackRecord      string  `json:"trackRecord"`
}

// CrossChecking は他媒体との照合結果。
type CrossChecking struct {
	VerifiedSources      []string `json:"verifiedSources"`
	ContradictorySources []string `json:"contradictorySources"`
	SimilarReports       int      `json:"similarReports"`
}

// ContentAnalysis は記事本文の品質指標。
type ContentAnalysis struct {
	LanguageQuality     float64 `json:"languageQuality"`
	CitationQuality     float64 `json:"citationQuality"`
	SensationalismScore float64 `json:"sensationalismScore"`
	FactDensity         float64 `json:"factDensity"`
}

// VideoAnalysis は動画（YouTube）のサブスコア。
type VideoAnalysis struct {
	ThumbnailAuthenticity float64 `json:"thumbnailAuthenticity"`
	TitleCredibility      float64 `json:"titleCredibility"`
	DescriptionQuality    float64 `json:"descriptionQuality"`
	ChannelReliability    float64 `json:"channelReliability"`
}

// SocialMetrics は拡散指標。信頼スコアには影響しない。
type SocialMetrics struct {
	Shares        int     `json:"shares"`
	Engagement    float64 `json:"engagement"`
	ViralityScore float64 `json:"viralityScore"`
}

// ChannelInfo はチャンネルの情報。
type ChannelInfo struct {
	Name        string `json:"name"`
	Verified    bool   `json:"verified"`
	Subscribers string `json:"subscribers"`
	Views       int    `json:"views"`
	VideoTitle  string `json:"videoTitle"`
}

// ArticleInfo はニュース記事のメタ情報。
type ArticleInfo struct {
	Source      string
	Author      string
	Headline    string
	PublishDate time.Time
	Sensational bool
}

// MediaChecks はメディア解析で実施したチェック項目。
type MediaChecks struct {
	TextAnalysis        bool `json:"text_analysis"`
	SourceVerification  bool `json:"source_verification"`
	MediaAuthenticity   bool `json:"media_authenticity"`
	CrossReferenceCheck bool `json:"cross_reference_check"`
	SentimentAnalysis   bool `json:"sentiment_analysis"`
}
