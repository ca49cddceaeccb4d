package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/truthlens/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusObserver    middleware.StatusObserver

	// 投稿・ジョブ
	Ingestor  Ingestor
	Scheduler JobScheduler
	Rejects   RejectionRecorder

	// 結果履歴
	Results ResultQuerier

	// イベント配信
	JobEvents    JobEventSource
	ResultEvents ResultEventSource

	// メトリクス（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusObserver))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	submissionHandler := NewSubmissionHandler(deps.Ingestor, deps.Scheduler, deps.Rejects, deps.Logger)
	jobHandler := NewJobHandler(deps.Scheduler)
	resultHandler := NewResultHandler(deps.Results, deps.Logger)
	eventHandler := NewEventHandler(deps.JobEvents, deps.ResultEvents, deps.Logger)

	// --- レート制限なしのルート ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 投稿（投稿専用レート制限を追加）
		r.Route("/submissions", func(r chi.Router) {
			r.Use(deps.RateLimiter.SubmissionMiddleware())
			r.Post("/file", submissionHandler.SubmitFile)
			r.Post("/text", submissionHandler.SubmitText)
			r.Post("/url", submissionHandler.SubmitURL)
			r.Post("/social", submissionHandler.SubmitSocial)
		})

		// ジョブ
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobHandler.ListJobs)
			r.Get("/{id}", jobHandler.GetJob)
			r.Delete("/{id}", jobHandler.CancelJob)
		})

		// 結果履歴
		r.Route("/results", func(r chi.Router) {
			r.Get("/", resultHandler.ListResults)
			r.Get("/{id}", resultHandler.GetResult)
		})

		// イベントストリーム
		r.Get("/events", eventHandler.Stream)
	})

	return r
}

// Health は死活監視用のエンドポイント。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
