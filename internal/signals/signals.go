// Package signals はコンテンツ種別ごとの信頼性シグナル評価器を提供する。
//
// 評価器は入力とジョブ単位の乱数源のみに依存する純粋な関数で、
// 同じシードからは同じシグナルが得られる。
package signals

import (
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/hitoshi/truthlens/internal/model"
	"github.com/hitoshi/truthlens/internal/registry"
)

// 評価器名。
const (
	EvaluatorNews       = "news"
	EvaluatorCrossCheck = "crosscheck"
	EvaluatorImpact     = "social_impact"
	EvaluatorMedia      = "media"
	EvaluatorContent    = "content"
	EvaluatorSocial     = "social"
	EvaluatorChannel    = "channel"
)

// URLParser はURLを検証・パースする。
type URLParser interface {
	ParseURL(raw string) (*url.URL, error)
}

// Input は評価器への入力。
type Input struct {
	Item *model.ContentItem
	// Headline は事前取得した記事・動画タイトル。未取得の場合は空文字列。
	Headline string
	// ShareCount は外部サービスから取得した共有数。未取得の場合はnil。
	ShareCount *int
	Now        time.Time
}

// Env は評価器が参照する共有リソース。
type Env struct {
	Registry *registry.Registry
	URLs     URLParser
}

// Func は1つの評価器の処理。
type Func func(in Input, env Env, rng *rand.Rand) (model.SignalBundle, error)

// Evaluator は名前付きの評価器。
type Evaluator struct {
	Name string
	Fn   Func
}

// NewRand はシードとストリーム番号から決定的な乱数源を生成する。
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Fork は親の乱数源から独立した子の乱数源を生成する。
// 並行実行する評価器ごとに1つずつ割り当てる。
func Fork(parent *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(parent.Uint64(), parent.Uint64()))
}

// uniform は[lo,hi)の一様乱数を返す。
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// between は[lo,hi]の整数乱数を返す。
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

func pick(rng *rand.Rand, items []string) string {
	return items[rng.IntN(len(items))]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
