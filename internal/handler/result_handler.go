package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/truthlens/internal/middleware"
	"github.com/hitoshi/truthlens/internal/model"
	"github.com/hitoshi/truthlens/internal/repository"
)

// ResultQuerier は解析結果の参照インターフェース。
type ResultQuerier interface {
	FindByItemID(ctx context.Context, itemID string) (*model.AnalysisResult, error)
	Query(ctx context.Context, q repository.ResultQuery) ([]*model.AnalysisResult, error)
}

// ResultHandler は解析結果履歴のHTTPハンドラー。
type ResultHandler struct {
	results ResultQuerier
	logger  *slog.Logger
}

// NewResultHandler はResultHandlerを生成する。
func NewResultHandler(results ResultQuerier, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		logger:  logger,
	}
}

// resultListResponse は結果一覧のレスポンス。
type resultListResponse struct {
	Results []ResultResponse `json:"results"`
	Total   int              `json:"total"`
}

// ListResults はフィルタ・検索・ソートを適用した結果一覧を返す。
// GET /api/results?kind=image,video&verdict=verified&q=reuters&sort=newest
func (h *ResultHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	q, err := parseResultQuery(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	results, err := h.results.Query(r.Context(), q)
	if err != nil {
		h.logger.Error("結果の検索に失敗しました", slog.String("error", err.Error()))
		middleware.WriteError(w, err)
		return
	}

	resp := resultListResponse{
		Results: make([]ResultResponse, 0, len(results)),
		Total:   len(results),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, ToResultResponse(res))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetResult は1件の解析結果を返す。
// GET /api/results/{id}
func (h *ResultHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.results.FindByItemID(r.Context(), id)
	if err != nil {
		h.logger.Error("結果の取得に失敗しました",
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}
	if res == nil {
		middleware.WriteError(w, model.NewResultNotFoundError(id))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToResultResponse(res))
}

// parseResultQuery はクエリパラメータを検索条件に変換する。
// 未知の種別・判定・ソート指定はエラーとする。
func parseResultQuery(r *http.Request) (repository.ResultQuery, error) {
	params := r.URL.Query()

	sortBy, err := repository.ParseSort(params.Get("sort"))
	if err != nil {
		return repository.ResultQuery{}, err
	}

	kinds, err := model.ParseKinds(params.Get("kind"))
	if err != nil {
		return repository.ResultQuery{}, err
	}

	var verdicts []model.Verdict
	if raw := params.Get("verdict"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			v := model.Verdict(strings.ToLower(strings.TrimSpace(part)))
			if v != model.VerdictVerified && v != model.VerdictSuspicious {
				return repository.ResultQuery{}, model.NewInvalidRequestError("verdictには verified または suspicious を指定してください")
			}
			verdicts = append(verdicts, v)
		}
	}

	return repository.ResultQuery{
		Kinds:    kinds,
		Verdicts: verdicts,
		Text:     params.Get("q"),
		Sort:     sortBy,
	}, nil
}
