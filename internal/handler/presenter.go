package handler

import (
	"time"

	"github.com/hitoshi/truthlens/internal/model"
)

// reasoningResponse は判定根拠のレスポンス。
type reasoningResponse struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

// mediaAnalysisResponse はメディア解析のチェック項目とサブスコア。
type mediaAnalysisResponse struct {
	Checks     model.MediaChecks  `json:"checks"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// ResultResponse はダッシュボードが表示する解析結果。
// 種別ごとの任意ブロックは該当する場合のみ出力する。
type ResultResponse struct {
	ID                 string            `json:"id"`
	ContentType        model.ContentKind `json:"contentType"`
	Title              string            `json:"title"`
	VerificationStatus model.Verdict     `json:"verificationStatus"`
	TrustScore         float64           `json:"trustScore"`
	Confidence         float64           `json:"confidence"`
	Reasoning          reasoningResponse `json:"reasoning"`
	Sources            []string          `json:"sources"`

	SourceCredibility *model.SourceCredibility `json:"sourceCredibility,omitempty"`
	CrossChecking     *model.CrossChecking     `json:"crossChecking,omitempty"`
	ContentAnalysis   *model.ContentAnalysis   `json:"contentAnalysis,omitempty"`
	SocialMetrics     *model.SocialMetrics     `json:"socialMetrics,omitempty"`
	VideoAnalysis     *model.VideoAnalysis     `json:"videoAnalysis,omitempty"`
	MediaAnalysis     *mediaAnalysisResponse   `json:"mediaAnalysis,omitempty"`

	URL             string     `json:"url,omitempty"`
	Platform        string     `json:"platform,omitempty"`
	Channel         string     `json:"channel,omitempty"`
	ChannelVerified *bool      `json:"channelVerified,omitempty"`
	Subscribers     string     `json:"subscribers,omitempty"`
	Views           int        `json:"views,omitempty"`
	VideoTitle      string     `json:"videoTitle,omitempty"`
	Source          string     `json:"source,omitempty"`
	Author          string     `json:"author,omitempty"`
	Headline        string     `json:"headline,omitempty"`
	PublishDate     *time.Time `json:"publishDate,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// ToResultResponse は解析結果をレスポンス形式に変換する。
// シグナルのバリアントに応じて任意ブロックを設定する。
func ToResultResponse(r *model.AnalysisResult) ResultResponse {
	resp := ResultResponse{
		ID:                 r.ItemID,
		ContentType:        r.Kind,
		Title:              r.Title,
		VerificationStatus: r.Verdict,
		TrustScore:         r.TrustScore,
		Confidence:         r.Confidence,
		Reasoning: reasoningResponse{
			Primary:   r.Reasoning.Primary,
			Secondary: nonNil(r.Reasoning.Secondary),
		},
		Sources:   nonNil(r.Sources),
		Timestamp: r.Timestamp,
	}

	switch s := r.Signals.(type) {
	case model.NewsSignals:
		credibility := s.SourceCredibility
		analysis := s.ContentAnalysis
		resp.SourceCredibility = &credibility
		resp.ContentAnalysis = &analysis
		resp.CrossChecking = s.CrossChecking
		resp.SocialMetrics = s.SocialMetrics
		resp.URL = s.URL
		resp.Source = s.Article.Source
		resp.Author = s.Article.Author
		resp.Headline = s.Article.Headline
		if !s.Article.PublishDate.IsZero() {
			date := s.Article.PublishDate
			resp.PublishDate = &date
		}

	case model.VideoSignals:
		video := s.VideoAnalysis
		verified := s.Channel.Verified
		resp.VideoAnalysis = &video
		resp.SocialMetrics = s.SocialMetrics
		resp.URL = s.URL
		resp.Platform = s.Platform
		resp.Channel = s.Channel.Name
		resp.ChannelVerified = &verified
		resp.Subscribers = s.Channel.Subscribers
		resp.Views = s.Channel.Views
		resp.VideoTitle = s.Channel.VideoTitle

	case model.SocialSignals:
		resp.SocialMetrics = s.SocialMetrics
		resp.URL = s.URL
		resp.Platform = s.Platform

	case model.MediaSignals:
		resp.MediaAnalysis = &mediaAnalysisResponse{
			Checks:     s.Checks,
			Indicators: s.Indicators,
		}
	}

	return resp
}

// jobResponse は解析ジョブの状態。
type jobResponse struct {
	ID        string            `json:"id"`
	Kind      model.ContentKind `json:"contentType"`
	Title     string            `json:"title"`
	State     model.JobState    `json:"state"`
	Progress  int               `json:"progress"`
	Error     string            `json:"error,omitempty"`
	ErrorCode string            `json:"errorCode,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func toJobResponse(j model.AnalysisJob) jobResponse {
	return jobResponse{
		ID:        j.ItemID,
		Kind:      j.Kind,
		Title:     j.Title,
		State:     j.State,
		Progress:  j.Progress,
		Error:     j.Error,
		ErrorCode: j.ErrorCode,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// nonNil はJSONでnullではなく空配列を出力するためにnilスライスを空スライスに置き換える。
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
