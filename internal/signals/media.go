package signals

import (
	"math/rand/v2"

	"github.com/hitoshi/truthlens/internal/model"
)

// mediaManipulationRate はメディア解析で改ざん・誤情報を検出する確率。
const mediaManipulationRate = 0.5

var (
	mediaVerifiedReasons = []string{
		"Verified by multiple sources",
		"Matches official records",
		"Consistent with known facts",
	}
	mediaSuspiciousReasons = []string{
		"Lack of credible sources",
		"Suspicious timing",
		"Contradicts verified facts",
	}
	mediaVerifiedFactors   = []string{"Factual language", "Proper sourcing", "Cross-referenced information"}
	mediaSuspiciousFactors = []string{"Emotional language patterns", "Missing context", "Unverified claims"}
	mediaVerifiedSources   = []string{"Reuters", "Associated Press", "Government sources", "Academic institutions"}
	mediaSuspiciousSources = []string{"Unverified social media posts", "Anonymous sources", "Discredited websites"}
)

// Media は画像・動画・音声ファイルの主評価器。
func Media(in Input, _ Env, rng *rand.Rand) (model.SignalBundle, error) {
	b := evaluateMedia(in, rng)
	b.Evaluator = EvaluatorMedia
	return b, nil
}

// Content は情報源を特定できないテキストの主評価器。
// メディア解析と同じ手法で本文を評価する。
func Content(in Input, _ Env, rng *rand.Rand) (model.SignalBundle, error) {
	b := evaluateMedia(in, rng)
	b.Evaluator = EvaluatorContent
	return b, nil
}

func evaluateMedia(in Input, rng *rand.Rand) model.SignalBundle {
	detected := rng.Float64() < mediaManipulationRate

	var trust, authenticity, consistency float64
	if detected {
		trust = uniform(rng, 10, 50)
		authenticity = uniform(rng, 10, 50)
		consistency = uniform(rng, 10, 50)
	} else {
		trust = uniform(rng, 70, 100)
		authenticity = uniform(rng, 70, 100)
		consistency = uniform(rng, 70, 100)
	}
	baseConfidence := uniform(rng, 70, 100)

	kind := in.Item.Kind
	checks := model.MediaChecks{
		TextAnalysis:        kind == model.KindText,
		SourceVerification:  true,
		MediaAuthenticity:   kind.IsBinary(),
		CrossReferenceCheck: true,
		SentimentAnalysis:   kind == model.KindText,
	}

	return model.SignalBundle{
		Primary: &model.PrimarySignal{
			TrustScore:     trust,
			BaseConfidence: baseConfidence,
			Verified: model.Branch{
				Primary:   pick(rng, mediaVerifiedReasons),
				Secondary: append([]string(nil), mediaVerifiedFactors...),
				Sources:   append([]string(nil), mediaVerifiedSources...),
			},
			Suspicious: model.Branch{
				Primary:   pick(rng, mediaSuspiciousReasons),
				Secondary: append([]string(nil), mediaSuspiciousFactors...),
				Sources:   append([]string(nil), mediaSuspiciousSources...),
			},
		},
		MediaChecks: &checks,
		Indicators: map[string]float64{
			"authenticity":        authenticity,
			"metadataConsistency": consistency,
		},
	}
}
