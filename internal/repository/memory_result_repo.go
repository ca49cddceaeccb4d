package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hitoshi/truthlens/internal/event"
	"github.com/hitoshi/truthlens/internal/model"
)

// SortOrder は結果の並び順。
type SortOrder string

const (
	// SortNewest はタイムスタンプの降順。
	SortNewest SortOrder = "newest"
	// SortOldest はタイムスタンプの昇順。
	SortOldest SortOrder = "oldest"
	// SortConfidence は信頼確度の降順。
	SortConfidence SortOrder = "confidence"
	// SortTitle はタイトル（ファイル名）の昇順。大文字小文字を区別しない。
	SortTitle SortOrder = "title"
)

// ParseSort はソート指定をパースする。空文字列はSortNewestとして扱う。
// "filename"はSortTitleの別名。
func ParseSort(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SortNewest):
		return SortNewest, nil
	case string(SortOldest):
		return SortOldest, nil
	case string(SortConfidence):
		return SortConfidence, nil
	case string(SortTitle), "filename":
		return SortTitle, nil
	}
	return "", model.NewInvalidSortError(s)
}

// MemoryResultRepo はメモリ上の追記専用ResultRepository。
// 追記された結果はBrokerを通じて購読者に通知する。
type MemoryResultRepo struct {
	mu      sync.RWMutex
	results []*model.AnalysisResult
	byID    map[string]int
	broker  *event.Broker[*model.AnalysisResult]
}

// NewMemoryResultRepo はMemoryResultRepoを生成する。brokerはnilでもよい。
func NewMemoryResultRepo(broker *event.Broker[*model.AnalysisResult]) *MemoryResultRepo {
	return &MemoryResultRepo{
		byID:   make(map[string]int),
		broker: broker,
	}
}

// Insert は結果を追記する。
func (r *MemoryResultRepo) Insert(_ context.Context, result *model.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("insert result: nil result")
	}

	r.mu.Lock()
	if _, ok := r.byID[result.ItemID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("insert result: duplicate item id %s", result.ItemID)
	}
	r.byID[result.ItemID] = len(r.results)
	r.results = append(r.results, result)
	r.mu.Unlock()

	if r.broker != nil {
		r.broker.Publish(result)
	}
	return nil
}

// FindByItemID は指定アイテムの結果を取得する。見つからない場合はnilを返す。
func (r *MemoryResultRepo) FindByItemID(_ context.Context, itemID string) (*model.AnalysisResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[itemID]
	if !ok {
		return nil, nil
	}
	return r.results[i], nil
}

// Query はフィルタに一致する結果を指定順で返す。
func (r *MemoryResultRepo) Query(_ context.Context, q ResultQuery) ([]*model.AnalysisResult, error) {
	sortBy := q.Sort
	if sortBy == "" {
		sortBy = SortNewest
	}
	cmp, err := comparator(sortBy)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*model.AnalysisResult, 0, len(r.results))
	for _, res := range r.results {
		if matches(res, q) {
			out = append(out, res)
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, cmp)
	return out, nil
}

// Len は保存済みの結果数を返す。
func (r *MemoryResultRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.results)
}

func matches(res *model.AnalysisResult, q ResultQuery) bool {
	if len(q.Kinds) > 0 && !slices.Contains(q.Kinds, res.Kind) {
		return false
	}
	if len(q.Verdicts) > 0 && !slices.Contains(q.Verdicts, res.Verdict) {
		return false
	}
	return res.Matches(q.Text)
}

func comparator(sortBy SortOrder) (func(a, b *model.AnalysisResult) int, error) {
	switch sortBy {
	case SortNewest:
		return func(a, b *model.AnalysisResult) int { return b.Timestamp.Compare(a.Timestamp) }, nil
	case SortOldest:
		return func(a, b *model.AnalysisResult) int { return a.Timestamp.Compare(b.Timestamp) }, nil
	case SortConfidence:
		return func(a, b *model.AnalysisResult) int {
			switch {
			case a.Confidence > b.Confidence:
				return -1
			case a.Confidence < b.Confidence:
				return 1
			}
			return 0
		}, nil
	case SortTitle:
		return func(a, b *model.AnalysisResult) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}, nil
	}
	return nil, model.NewInvalidSortError(string(sortBy))
}
