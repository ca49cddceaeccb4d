// Package repository は解析結果の保存と検索を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/truthlens/internal/model"
)

// ResultRepository は解析結果の追記専用ストアのインターフェース。
type ResultRepository interface {
	// Insert は結果を追記する。同じItemIDの結果が既にある場合はエラーを返す。
	// 既存の結果を変更・削除することはない。
	Insert(ctx context.Context, result *model.AnalysisResult) error

	// FindByItemID は指定アイテムの結果を取得する。見つからない場合はnilを返す。
	FindByItemID(ctx context.Context, itemID string) (*model.AnalysisResult, error)

	// Query はフィルタに一致する結果を指定順で返す。
	// ソートは安定で、同順位の結果は追記順を保つ。内部の並びは変更しない。
	Query(ctx context.Context, q ResultQuery) ([]*model.AnalysisResult, error)

	// Len は保存済みの結果数を返す。
	Len() int
}

// ResultQuery は結果検索の条件。
// 各フィールドは論理積で評価し、空のフィールドは条件なしとして扱う。
type ResultQuery struct {
	Kinds    []model.ContentKind
	Verdicts []model.Verdict
	// Text はタイトル・情報源・チャンネル・プラットフォームへの部分一致（大文字小文字を区別しない）。
	Text string
	Sort SortOrder
}
