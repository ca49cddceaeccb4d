package signals

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/hitoshi/truthlens/internal/model"
	"github.com/hitoshi/truthlens/internal/registry"
)

var errNoSource = errors.New("情報源を特定できません")

var credibleAuthors = []string{"John Smith", "Sarah Johnson", "Michael Brown"}

var (
	newsVerifiedBranch = model.Branch{
		Primary: "Source demonstrates strong journalistic standards and factual accuracy",
		Secondary: []string{
			"Established news organization",
			"Verified author credentials",
			"Multiple source verification",
			"Editorial oversight",
		},
	}
	newsSuspiciousBranch = model.Branch{
		Primary: "Content shows indicators of potential misinformation or unreliable sourcing",
		Secondary: []string{
			"Unverified source",
			"Lack of author information",
			"No source citations",
			"Sensational language",
		},
	}
)

// attribution は記事の帰属先と見出し。
type attribution struct {
	URL         string
	Source      registry.Source
	Headline    string
	Sensational bool
}

// resolveAttribution は入力から情報源と見出しを特定する。
// URLは検証し、未登録のホストは"Unknown Blog"に帰属させる。
func resolveAttribution(in Input, env Env) (attribution, error) {
	item := in.Item
	switch item.Kind {
	case model.KindURL, model.KindSocial:
		u, err := env.URLs.ParseURL(item.URL)
		if err != nil {
			return attribution{}, err
		}
		src, ok := env.Registry.SourceByHost(u.Hostname())
		if !ok {
			src = env.Registry.Unknown()
		}
		headline := in.Headline
		if headline == "" {
			headline = HeadlineFromURL(u)
		}
		return attribution{
			URL:         u.String(),
			Source:      src,
			Headline:    headline,
			Sensational: IsSensational(headline),
		}, nil
	case model.KindText:
		src, ok := env.Registry.FindSourceInText(item.Text)
		if !ok {
			return attribution{}, errNoSource
		}
		return attribution{
			Source:      src,
			Headline:    firstSentence(item.Text, 200),
			Sensational: IsSensational(item.Text),
		}, nil
	}
	return attribution{}, errNoSource
}

// News は情報源レジストリに基づいて記事の信頼スコアを算出する主評価器。
func News(in Input, env Env, rng *rand.Rand) (model.SignalBundle, error) {
	a, err := resolveAttribution(in, env)
	if err != nil {
		return model.SignalBundle{}, err
	}
	src := a.Source

	trust := src.Rating * 10
	if a.Sensational {
		trust -= 20
	}
	if !src.Credible {
		trust = math.Max(trust-40, 10)
	}
	trust = clamp(trust+uniform(rng, -5, 5), 0, 100)
	baseConfidence := uniform(rng, 75, 95)

	author := "Unknown"
	if src.Credible {
		author = pick(rng, credibleAuthors)
	}
	published := in.Now.Add(-time.Duration(rng.Int64N(int64(7 * 24 * time.Hour))))

	var content model.ContentAnalysis
	if src.Credible {
		content.LanguageQuality = uniform(rng, 80, 100)
		content.CitationQuality = uniform(rng, 75, 100)
		content.FactDensity = uniform(rng, 70, 90)
	} else {
		content.LanguageQuality = uniform(rng, 30, 70)
		content.CitationQuality = uniform(rng, 20, 50)
		content.FactDensity = uniform(rng, 20, 60)
	}
	if a.Sensational {
		content.SensationalismScore = uniform(rng, 70, 100)
	} else {
		content.SensationalismScore = uniform(rng, 10, 40)
	}

	credibility := model.SourceCredibility{
		Rating:           src.Rating,
		FactualReporting: "Low",
		Bias:             src.Bias,
		Reputation:       "Questionable",
		TrackRecord:      "Inconsistent",
	}
	if src.Credible {
		credibility.FactualReporting = "High"
		credibility.Reputation = "Excellent"
		credibility.TrackRecord = "Consistent"
	}

	verified := newsVerifiedBranch
	verified.Sources = []string{src.Name}
	suspicious := newsSuspiciousBranch
	suspicious.Sources = []string{src.Name}

	return model.SignalBundle{
		Evaluator: EvaluatorNews,
		Primary: &model.PrimarySignal{
			TrustScore:     trust,
			BaseConfidence: baseConfidence,
			Verified:       verified,
			Suspicious:     suspicious,
		},
		SourceCredibility: &credibility,
		ContentAnalysis:   &content,
		Article: &model.ArticleInfo{
			Source:      src.Name,
			Author:      author,
			Headline:    a.Headline,
			PublishDate: published,
			Sensational: a.Sensational,
		},
		Indicators: map[string]float64{
			"sourceRating":    src.Rating * 10,
			"languageQuality": content.LanguageQuality,
			"citationQuality": content.CitationQuality,
			"factDensity":     content.FactDensity,
			"restraint":       100 - content.SensationalismScore,
		},
		Labels: map[string]string{
			"url":              a.URL,
			"bias":             src.Bias,
			"factualReporting": credibility.FactualReporting,
		},
	}, nil
}

// CrossCheck は他媒体との照合結果を生成する補助評価器。
func CrossCheck(in Input, env Env, rng *rand.Rand) (model.SignalBundle, error) {
	a, err := resolveAttribution(in, env)
	if err != nil {
		return model.SignalBundle{}, err
	}

	cc := model.CrossChecking{
		VerifiedSources:      []string{},
		ContradictorySources: []string{},
	}
	var corroboration float64
	if a.Source.Credible {
		cc.VerifiedSources = append(cc.VerifiedSources, []string{"Reuters", "AP News", "BBC"}[:between(rng, 1, 2)]...)
		cc.SimilarReports = between(rng, 5, 19)
		corroboration = 60 + float64(cc.SimilarReports)*2
	} else {
		cc.ContradictorySources = append(cc.ContradictorySources, []string{"Fact-check.org", "Snopes"}[:between(rng, 1, 2)]...)
		cc.SimilarReports = between(rng, 0, 2)
		corroboration = 10 + float64(cc.SimilarReports)*5
	}

	return model.SignalBundle{
		Evaluator:     EvaluatorCrossCheck,
		CrossChecking: &cc,
		Indicators:    map[string]float64{"corroboration": corroboration},
	}, nil
}

// Impact は拡散指標を生成する補助評価器。信頼スコアには影響しない。
func Impact(in Input, env Env, rng *rand.Rand) (model.SignalBundle, error) {
	sensational := IsSensational(in.Headline) || IsSensational(in.Item.Title)
	if in.Item.Kind != model.KindSocial {
		a, err := resolveAttribution(in, env)
		if err != nil {
			return model.SignalBundle{}, err
		}
		sensational = a.Sensational
	}

	m := model.SocialMetrics{
		Shares:     between(rng, 100, 50099),
		Engagement: uniform(rng, 2, 10),
	}
	if in.ShareCount != nil {
		m.Shares = *in.ShareCount
	}
	if sensational {
		m.ViralityScore = uniform(rng, 60, 100)
	} else {
		m.ViralityScore = uniform(rng, 20, 70)
	}

	return model.SignalBundle{
		Evaluator:     EvaluatorImpact,
		SocialMetrics: &m,
	}, nil
}
