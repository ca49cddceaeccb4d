package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/truthlens/internal/model"
)

// eventBuffer は購読者1件あたりのイベントバッファ。
const eventBuffer = 64

// heartbeatInterval はプロキシによる切断を防ぐコメント送信間隔。
const heartbeatInterval = 15 * time.Second

// JobEventSource はジョブイベントの購読元。*event.Broker[model.JobEvent] が実装する。
type JobEventSource interface {
	Subscribe(buffer int) (<-chan model.JobEvent, func())
}

// ResultEventSource は解析結果の購読元。*event.Broker[*model.AnalysisResult] が実装する。
type ResultEventSource interface {
	Subscribe(buffer int) (<-chan *model.AnalysisResult, func())
}

// EventHandler はジョブの進捗と新しい結果をServer-Sent Eventsで配信する。
type EventHandler struct {
	jobs    JobEventSource
	results ResultEventSource
	logger  *slog.Logger
}

// NewEventHandler はEventHandlerを生成する。resultsはnilでもよい。
func NewEventHandler(jobs JobEventSource, results ResultEventSource, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		jobs:    jobs,
		results: results,
		logger:  logger,
	}
}

// Stream はクライアントが切断するかイベント元が閉じられるまでイベントを送信する。
// GET /api/events
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	jobCh, cancelJobs := h.jobs.Subscribe(eventBuffer)
	defer cancelJobs()

	var resultCh <-chan *model.AnalysisResult
	if h.results != nil {
		ch, cancelResults := h.results.Subscribe(eventBuffer)
		defer cancelResults()
		resultCh = ch
	}

	// サーバーのWriteTimeoutはストリームには適用しない
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("イベントストリームをフラッシュできません", slog.String("error", err.Error()))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-jobCh:
			if !ok {
				return
			}
			err = writeEvent(w, "job", ev)
		case res, ok := <-resultCh:
			if !ok {
				return
			}
			err = writeEvent(w, "result", ToResultResponse(res))
		case <-heartbeat.C:
			_, err = fmt.Fprint(w, ": heartbeat\n\n")
		}
		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			h.logger.Warn("イベントの送信に失敗したためストリームを終了します", slog.String("error", err.Error()))
			return
		}
	}
}

// writeEvent は1件のSSEイベントを書き込む。
func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
