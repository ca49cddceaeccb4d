package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/truthlens/internal/middleware"
	"github.com/hitoshi/truthlens/internal/model"
)

// JobHandler は解析ジョブのHTTPハンドラー。
type JobHandler struct {
	scheduler JobScheduler
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(scheduler JobScheduler) *JobHandler {
	return &JobHandler{scheduler: scheduler}
}

// jobListResponse はジョブ一覧のレスポンス。
type jobListResponse struct {
	Jobs []jobResponse `json:"jobs"`
}

// ListJobs はジョブテーブルの全ジョブを登録順に返す。
// GET /api/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.scheduler.List()
	resp := jobListResponse{Jobs: make([]jobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetJob はジョブの状態を返す。
// GET /api/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, ok := h.scheduler.Get(id)
	if !ok {
		middleware.WriteError(w, model.NewJobNotFoundError(id))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toJobResponse(job))
}

// CancelJob は未完了のジョブを取り消す。
// DELETE /api/jobs/{id}
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.scheduler.Cancel(id); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
