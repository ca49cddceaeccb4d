package signals

import (
	"context"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/truthlens/internal/model"
)

var (
	evalNews       = Evaluator{Name: EvaluatorNews, Fn: News}
	evalCrossCheck = Evaluator{Name: EvaluatorCrossCheck, Fn: CrossCheck}
	evalImpact     = Evaluator{Name: EvaluatorImpact, Fn: Impact}
	evalMedia      = Evaluator{Name: EvaluatorMedia, Fn: Media}
	evalContent    = Evaluator{Name: EvaluatorContent, Fn: Content}
	evalSocial     = Evaluator{Name: EvaluatorSocial, Fn: Social}
	evalChannel    = Evaluator{Name: EvaluatorChannel, Fn: Channel}
)

// Plan はコンテンツ種別に応じて実行する評価器を返す。
// 先頭の評価器が主評価器で、信頼スコアを持つシグナルを生成する。
func Plan(item *model.ContentItem, env Env) []Evaluator {
	switch item.Kind {
	case model.KindImage, model.KindVideo, model.KindAudio:
		return []Evaluator{evalMedia}
	case model.KindText:
		if _, ok := env.Registry.FindSourceInText(item.Text); ok {
			return []Evaluator{evalNews, evalCrossCheck, evalImpact}
		}
		return []Evaluator{evalContent}
	case model.KindURL:
		return []Evaluator{evalNews, evalCrossCheck, evalImpact}
	case model.KindSocial:
		if item.Platform == model.PlatformYouTube {
			return []Evaluator{evalChannel, evalImpact}
		}
		return []Evaluator{evalSocial, evalImpact}
	}
	return nil
}

// Run は評価器を並行実行し、計画と同じ順序でシグナルを返す。
// 乱数源は実行前に計画順で分岐させるため、結果はスケジューリングに依存しない。
// いずれかの評価器が失敗した場合はSignalEvaluationErrorを返す。
func Run(ctx context.Context, plan []Evaluator, in Input, env Env, rng *rand.Rand) ([]model.SignalBundle, error) {
	rngs := make([]*rand.Rand, len(plan))
	for i := range plan {
		rngs[i] = Fork(rng)
	}

	bundles := make([]model.SignalBundle, len(plan))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range plan {
		g.Go(func() error {
			_, span := otel.Tracer("internal/signals").Start(gctx, "signals."+e.Name)
			defer span.End()
			span.SetAttributes(attribute.String("item.kind", string(in.Item.Kind)))

			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := e.Fn(in, env, rngs[i])
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return model.NewSignalEvaluationError(e.Name, err)
			}
			if b.Evaluator == "" {
				b.Evaluator = e.Name
			}
			bundles[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}
