// Package aggregate はシグナル群を1つの解析結果に集約する。
package aggregate

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/hitoshi/truthlens/internal/model"
)

// evaluatorName はエラー報告時の集約処理の名前。
const evaluatorName = "aggregate"

var (
	errNoPrimary       = errors.New("主シグナルがありません")
	errMultiplePrimary = errors.New("主シグナルが複数あります")
)

// Aggregate はシグナル群から解析結果を生成する。
//
// 主シグナルはちょうど1つでなければならない。結果に格納する信頼スコアは
// 主シグナルの値を小数第1位に丸めたもので、それ以外の再計算はしない。
// 判定はこの丸めた値に model.VerdictFor を適用して決め、説明文と参照元は判定に対応する分岐から選ぶ。
// 信頼確度は指標と信頼スコアの一致度から算出し、指標がない場合は主シグナルの値を使う。
func Aggregate(item *model.ContentItem, bundles []model.SignalBundle, now time.Time) (*model.AnalysisResult, error) {
	var primary *model.SignalBundle
	for i := range bundles {
		if bundles[i].Primary == nil {
			continue
		}
		if primary != nil {
			return nil, model.NewSignalEvaluationError(evaluatorName, errMultiplePrimary)
		}
		primary = &bundles[i]
	}
	if primary == nil {
		return nil, model.NewSignalEvaluationError(evaluatorName, errNoPrimary)
	}

	score := primary.Primary.TrustScore
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 100 {
		return nil, model.NewSignalEvaluationError(primary.Evaluator,
			fmt.Errorf("信頼スコアが範囲外です: %v", score))
	}
	score = round1(score)
	verdict := model.VerdictFor(score)

	branch := primary.Primary.Suspicious
	if verdict == model.VerdictVerified {
		branch = primary.Primary.Verified
	}

	var (
		cross  *model.CrossChecking
		social *model.SocialMetrics
	)
	indicators := make(map[string]float64)
	for _, b := range bundles {
		if b.CrossChecking != nil {
			cross = b.CrossChecking
		}
		if b.SocialMetrics != nil {
			social = b.SocialMetrics
		}
		maps.Copy(indicators, b.Indicators)
	}

	sources := append([]string(nil), branch.Sources...)
	if cross != nil {
		if verdict == model.VerdictVerified {
			sources = appendUnique(sources, cross.VerifiedSources...)
		} else {
			sources = appendUnique(sources, cross.ContradictorySources...)
		}
	}

	return &model.AnalysisResult{
		ItemID:     item.ID,
		Kind:       item.Kind,
		Title:      item.Title,
		Verdict:    verdict,
		TrustScore: score,
		Confidence: round1(Confidence(score, primary.Primary.BaseConfidence, indicators)),
		Reasoning: model.Reasoning{
			Primary:   branch.Primary,
			Secondary: append([]string(nil), branch.Secondary...),
		},
		Sources:   sources,
		Signals:   buildSignals(item, primary, cross, social, indicators),
		Timestamp: now,
	}, nil
}

// Confidence は指標と信頼スコアの一致度から信頼確度を算出する。
// 平均絶対偏差が0なら100、50以上なら70となる。指標がない場合はbaseを返す。
func Confidence(trust, base float64, indicators map[string]float64) float64 {
	if len(indicators) == 0 {
		return math.Max(0, math.Min(100, base))
	}
	var sum float64
	for _, v := range indicators {
		sum += math.Abs(v - trust)
	}
	mad := sum / float64(len(indicators))
	agreement := 1 - math.Min(mad/50, 1)
	return 70 + 30*agreement
}

func buildSignals(item *model.ContentItem, primary *model.SignalBundle, cross *model.CrossChecking,
	social *model.SocialMetrics, indicators map[string]float64) model.ResultSignals {
	switch {
	case primary.Article != nil:
		s := model.NewsSignals{
			URL:           primary.Labels["url"],
			Article:       *primary.Article,
			CrossChecking: cross,
			SocialMetrics: social,
		}
		if primary.SourceCredibility != nil {
			s.SourceCredibility = *primary.SourceCredibility
		}
		if primary.ContentAnalysis != nil {
			s.ContentAnalysis = *primary.ContentAnalysis
		}
		return s
	case primary.ChannelInfo != nil:
		s := model.VideoSignals{
			Platform:      model.PlatformYouTube,
			URL:           item.URL,
			Channel:       *primary.ChannelInfo,
			SocialMetrics: social,
		}
		if primary.VideoAnalysis != nil {
			s.VideoAnalysis = *primary.VideoAnalysis
		}
		return s
	case primary.MediaChecks != nil:
		return model.MediaSignals{
			Checks:     *primary.MediaChecks,
			Indicators: indicators,
		}
	}
	return model.SocialSignals{
		Platform:      item.Platform,
		URL:           item.URL,
		SocialMetrics: social,
	}
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		dup := false
		for _, existing := range dst {
			if existing == item {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, item)
		}
	}
	return dst
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
