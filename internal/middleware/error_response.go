package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/truthlens/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteError はエラーコードに応じたHTTPステータスで統一エラーレスポンスを書き込む。
// APIErrorを含まないエラーは内部エラーとして扱う。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		WriteInternalServerError(w)
		return
	}
	WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
}

// StatusForCode はエラーコードをHTTPステータスコードに変換する。
func StatusForCode(code string) int {
	switch code {
	case model.ErrCodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case model.ErrCodeSizeLimit:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeEmptyContent, model.ErrCodeInvalidSort, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeJobNotFound, model.ErrCodeResultNotFound:
		return http.StatusNotFound
	case model.ErrCodeJobActive, model.ErrCodeJobFinished:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeSchedulerStopped:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
