package model

import (
	"errors"
	"fmt"
	"time"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, analysis, job, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryAnalysis   = "analysis"
	CategoryJob        = "job"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeUnsupportedType  = "UNSUPPORTED_TYPE"
	ErrCodeSizeLimit        = "SIZE_LIMIT"
	ErrCodeEmptyContent     = "EMPTY_CONTENT"
	ErrCodeSignalEvaluation = "SIGNAL_EVALUATION"
	ErrCodeAnalysisTimeout  = "ANALYSIS_TIMEOUT"
	ErrCodeJobActive        = "JOB_ACTIVE"
	ErrCodeJobNotFound      = "JOB_NOT_FOUND"
	ErrCodeJobFinished      = "JOB_FINISHED"
	ErrCodeSchedulerStopped = "SCHEDULER_STOPPED"
	ErrCodeResultNotFound   = "RESULT_NOT_FOUND"
	ErrCodeInvalidSort      = "INVALID_SORT"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// HasCode はerrのチェーンに指定コードのAPIErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// ErrorCode はerrのチェーンに含まれるAPIErrorのコードを返す。見つからない場合は空文字列。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsValidationError は投稿時の検証エラー（ValidationError）かどうかを返す。
func IsValidationError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == CategoryValidation
	}
	return false
}

// NewUnsupportedTypeError は未対応のメディアタイプのエラーを生成する。
func NewUnsupportedTypeError(filename, mediaType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedType,
		Message:  fmt.Sprintf("%s は対応していないファイル形式です: %q", filename, mediaType),
		Category: CategoryValidation,
		Action:   "画像・動画・音声ファイルを指定してください。",
	}
}

// NewSizeLimitError はファイルサイズ超過のエラーを生成する。
func NewSizeLimitError(filename string, size int64) *APIError {
	return &APIError{
		Code:     ErrCodeSizeLimit,
		Message:  fmt.Sprintf("%s はサイズ上限（50MB）を超えています: %dバイト", filename, size),
		Category: CategoryValidation,
		Action:   "50MB以下のファイルを指定してください。",
	}
}

// NewEmptyContentError は空の投稿のエラーを生成する。
func NewEmptyContentError(kind ContentKind) *APIError {
	return &APIError{
		Code:     ErrCodeEmptyContent,
		Message:  fmt.Sprintf("解析する内容がありません（%s）", kind),
		Category: CategoryValidation,
		Action:   "テキストまたはURLを入力してください。",
	}
}

// NewSignalEvaluationError は評価器がシグナルを生成できなかった場合のエラーを生成する。
func NewSignalEvaluationError(evaluator string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeSignalEvaluation,
		Message:  fmt.Sprintf("シグナル評価に失敗しました（%s）", evaluator),
		Category: CategoryAnalysis,
		Action:   "内容を確認し、新しい投稿として再送信してください。",
		Err:      err,
	}
}

// NewTimeoutError は解析がタイムアウトした場合のエラーを生成する。
func NewTimeoutError(timeout time.Duration) *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisTimeout,
		Message:  fmt.Sprintf("解析が制限時間（%s）内に完了しませんでした", timeout),
		Category: CategoryAnalysis,
		Action:   "しばらく待ってから新しい投稿として再送信してください。",
	}
}

// NewJobActiveError は同一アイテムのジョブが実行中の場合のエラーを生成する。
func NewJobActiveError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobActive,
		Message:  fmt.Sprintf("このアイテムは既に解析中です: %s", itemID),
		Category: CategoryJob,
		Action:   "解析の完了を待ってください。",
	}
}

// NewJobNotFoundError はジョブ未検出エラーを生成する。
func NewJobNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定されたジョブが見つかりません: %s", itemID),
		Category: CategoryJob,
		Action:   "アイテムIDを確認してください。",
	}
}

// NewJobFinishedError は終了済みジョブを取り消そうとした場合のエラーを生成する。
func NewJobFinishedError(itemID string, state JobState) *APIError {
	return &APIError{
		Code:     ErrCodeJobFinished,
		Message:  fmt.Sprintf("ジョブは既に終了しています（%s）: %s", state, itemID),
		Category: CategoryJob,
		Action:   "完了済みの結果は履歴から確認してください。",
	}
}

// NewSchedulerStoppedError はスケジューラ停止後の投稿・停止による中断のエラーを生成する。
func NewSchedulerStoppedError() *APIError {
	return &APIError{
		Code:     ErrCodeSchedulerStopped,
		Message:  "解析スケジューラは停止しています。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewResultNotFoundError は結果未検出エラーを生成する。
func NewResultNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeResultNotFound,
		Message:  fmt.Sprintf("指定された結果が見つかりません: %s", itemID),
		Category: CategoryJob,
		Action:   "アイテムIDを確認してください。",
	}
}

// NewInvalidSortError は無効なソート指定のエラーを生成する。
func NewInvalidSortError(sortBy string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSort,
		Message:  fmt.Sprintf("無効なソート指定です: %s", sortBy),
		Category: CategoryValidation,
		Action:   "ソートには newest、oldest、confidence、title のいずれかを指定してください。",
	}
}

// NewInvalidRequestError は不正なリクエスト形式のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
