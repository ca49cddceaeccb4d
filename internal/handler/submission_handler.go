package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/truthlens/internal/ingest"
	"github.com/hitoshi/truthlens/internal/middleware"
	"github.com/hitoshi/truthlens/internal/model"
)

// multipartOverhead はマルチパートのヘッダ等に許容する追加バイト数。
const multipartOverhead = 1 << 20

// maxJSONBodySize はJSON投稿ボディの上限。
const maxJSONBodySize = 1 << 20

// Ingestor は投稿を検証してContentItemに変換するインターフェース。
type Ingestor interface {
	IngestFile(sub ingest.FileSubmission) (*model.ContentItem, error)
	IngestText(text string) (*model.ContentItem, error)
	IngestURL(raw string) (*model.ContentItem, error)
	IngestSocial(sub ingest.SocialSubmission) (*model.ContentItem, error)
}

// JobScheduler は解析ジョブの登録・参照・取り消しのインターフェース。
type JobScheduler interface {
	Submit(item *model.ContentItem) (model.AnalysisJob, error)
	Cancel(itemID string) error
	Get(itemID string) (model.AnalysisJob, bool)
	List() []model.AnalysisJob
}

// RejectionRecorder は投稿拒否をメトリクスに記録する。
type RejectionRecorder interface {
	RecordRejection(code string)
}

// SubmissionHandler は投稿APIのHTTPハンドラー。
type SubmissionHandler struct {
	ingestor  Ingestor
	scheduler JobScheduler
	recorder  RejectionRecorder
	logger    *slog.Logger
}

// NewSubmissionHandler はSubmissionHandlerを生成する。recorderはnilでもよい。
func NewSubmissionHandler(ingestor Ingestor, scheduler JobScheduler, recorder RejectionRecorder, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		ingestor:  ingestor,
		scheduler: scheduler,
		recorder:  recorder,
		logger:    logger,
	}
}

// --- リクエスト型 ---

type textSubmissionRequest struct {
	Text string `json:"text"`
}

type urlSubmissionRequest struct {
	URL string `json:"url"`
}

type socialSubmissionRequest struct {
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

// SubmitFile はファイル投稿を処理する。
// POST /api/submissions/file (multipart: file)
func (h *SubmissionHandler) SubmitFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, model.MaxBinarySize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.reject(w, model.NewSizeLimitError("upload", r.ContentLength))
			return
		}
		h.reject(w, model.NewInvalidRequestError("multipartのfileフィールドがありません"))
		return
	}
	defer file.Close()

	// サイズ超過のファイルは読み込まずに拒否する
	if header.Size > model.MaxBinarySize {
		h.reject(w, model.NewSizeLimitError(header.Filename, header.Size))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, model.MaxBinarySize+1))
	if err != nil {
		h.reject(w, model.NewInvalidRequestError("ファイルの読み取りに失敗しました"))
		return
	}

	item, err := h.ingestor.IngestFile(ingest.FileSubmission{
		Data:      data,
		MediaType: header.Header.Get("Content-Type"),
		SizeBytes: header.Size,
		Filename:  header.Filename,
	})
	if err != nil {
		h.reject(w, err)
		return
	}
	h.submit(w, item)
}

// SubmitText はテキスト投稿を処理する。
// POST /api/submissions/text {"text": "..."}
func (h *SubmissionHandler) SubmitText(w http.ResponseWriter, r *http.Request) {
	var req textSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.ingestor.IngestText(req.Text)
	if err != nil {
		h.reject(w, err)
		return
	}
	h.submit(w, item)
}

// SubmitURL はニュース記事URLの投稿を処理する。
// POST /api/submissions/url {"url": "..."}
func (h *SubmissionHandler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	var req urlSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.ingestor.IngestURL(req.URL)
	if err != nil {
		h.reject(w, err)
		return
	}
	h.submit(w, item)
}

// SubmitSocial はSNSリンクの投稿を処理する。
// POST /api/submissions/social {"url": "...", "platform": "YouTube"}
func (h *SubmissionHandler) SubmitSocial(w http.ResponseWriter, r *http.Request) {
	var req socialSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.ingestor.IngestSocial(ingest.SocialSubmission{
		URL:      req.URL,
		Platform: req.Platform,
	})
	if err != nil {
		h.reject(w, err)
		return
	}
	h.submit(w, item)
}

// decode はJSONボディをデコードする。失敗時はレスポンスを書き込みfalseを返す。
func (h *SubmissionHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.reject(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// submit はContentItemをスケジューラに登録し、202でジョブを返す。
func (h *SubmissionHandler) submit(w http.ResponseWriter, item *model.ContentItem) {
	job, err := h.scheduler.Submit(item)
	if err != nil {
		h.logger.Error("解析ジョブの登録に失敗しました",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/jobs/"+job.ItemID)
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(toJobResponse(job))
}

// reject は投稿拒否を記録してエラーレスポンスを書き込む。ジョブは作成しない。
func (h *SubmissionHandler) reject(w http.ResponseWriter, err error) {
	code := model.ErrorCode(err)
	if h.recorder != nil && code != "" {
		h.recorder.RecordRejection(code)
	}
	h.logger.Warn("投稿を拒否しました",
		slog.String("code", code),
		slog.String("error", err.Error()),
	)
	middleware.WriteError(w, err)
}
