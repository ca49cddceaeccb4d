// Package analysis は解析ジョブのスケジューリングと状態遷移を提供する。
// アイテムごとに独立したパイプラインを並行実行し、
// 進捗と状態の変化をイベントとして通知する。
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/truthlens/internal/aggregate"
	"github.com/hitoshi/truthlens/internal/event"
	"github.com/hitoshi/truthlens/internal/metrics"
	"github.com/hitoshi/truthlens/internal/model"
	"github.com/hitoshi/truthlens/internal/repository"
	"github.com/hitoshi/truthlens/internal/signals"
)

// uploadStep はアップロード進捗の1ティックあたりの増分（%）。
const uploadStep = 10

// Enricher は評価前に記事タイトルや共有数などのメタデータを取得する。
// 取得できない場合はゼロ値を返し、エラーにはしない。
type Enricher interface {
	Enrich(ctx context.Context, item *model.ContentItem) (headline string, shareCount *int)
}

// Config はスケジューラの設定。
type Config struct {
	// Timeout はAnalyzing状態の制限時間。
	Timeout time.Duration
	// Latency はAnalyzing状態の基準所要時間。種別ごとに加算がある。
	Latency time.Duration
	// UploadTick はアップロード進捗のティック間隔。
	UploadTick time.Duration
	// MaxConcurrent は同時に実行するパイプラインの上限。
	MaxConcurrent int
	// Seed はジョブごとの乱数源の元になるシード。
	Seed uint64
}

// Scheduler は解析ジョブのスケジューラ。
// アイテムIDごとに実行中のジョブは高々1つで、
// ジョブ表とResultStoreへの追記は単一のミューテックスで直列化する。
type Scheduler struct {
	store    repository.ResultRepository
	events   *event.Broker[model.JobEvent]
	env      signals.Env
	enricher Enricher
	metrics  metrics.MetricsCollector
	clock    clockwork.Clock
	logger   *slog.Logger
	cfg      Config

	sem     chan struct{}
	baseCtx context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	jobs     map[string]*jobRecord
	finished map[string]model.JobState // Reap済みジョブの最終状態
	rng      *rand.Rand
	stopped  bool
}

type jobRecord struct {
	job      *model.AnalysisJob
	item     *model.ContentItem
	rng      *rand.Rand
	cancel   context.CancelFunc
	canceled bool
	done     chan struct{}
}

// NewScheduler はSchedulerを生成する。enricherとcollectorはnilでもよい。
// 設定値が0以下の場合はデフォルト値を使用する。
func NewScheduler(
	store repository.ResultRepository,
	events *event.Broker[model.JobEvent],
	env signals.Env,
	enricher Enricher,
	collector metrics.MetricsCollector,
	clock clockwork.Clock,
	logger *slog.Logger,
	cfg Config,
) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Latency < 0 {
		cfg.Latency = 0
	}
	if cfg.UploadTick <= 0 {
		cfg.UploadTick = 100 * time.Millisecond
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 32
	}
	if collector == nil {
		collector = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		events:   events,
		env:      env,
		enricher: enricher,
		metrics:  collector,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		baseCtx:  ctx,
		stopAll:  cancel,
		jobs:     make(map[string]*jobRecord),
		finished: make(map[string]model.JobState),
		rng:      signals.NewRand(cfg.Seed, 0),
	}
}

// Submit はアイテムの解析ジョブを登録し、非同期に実行を開始する。
// 同じIDのジョブが実行中ならJobActiveError、終了済みならJobFinishedErrorを返す。
func (s *Scheduler) Submit(item *model.ContentItem) (model.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return model.AnalysisJob{}, model.NewSchedulerStoppedError()
	}
	if rec, ok := s.jobs[item.ID]; ok {
		if rec.job.State.IsTerminal() {
			return model.AnalysisJob{}, model.NewJobFinishedError(item.ID, rec.job.State)
		}
		return model.AnalysisJob{}, model.NewJobActiveError(item.ID)
	}
	if state, ok := s.finished[item.ID]; ok {
		return model.AnalysisJob{}, model.NewJobFinishedError(item.ID, state)
	}
	if res, _ := s.store.FindByItemID(s.baseCtx, item.ID); res != nil {
		return model.AnalysisJob{}, model.NewJobFinishedError(item.ID, model.JobComplete)
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	rec := &jobRecord{
		job:    model.NewAnalysisJob(item, s.clock.Now()),
		item:   item,
		rng:    signals.Fork(s.rng),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.jobs[item.ID] = rec
	s.publishLocked(rec)
	s.metrics.RecordSubmission(string(item.Kind))

	s.logger.Info("解析ジョブを登録しました",
		slog.String("item_id", item.ID),
		slog.String("kind", string(item.Kind)),
	)

	s.wg.Add(1)
	go s.run(ctx, rec)

	return *rec.job, nil
}

// Cancel は未完了のジョブを取り消す。
// 取り消したジョブは以降イベントを発行せず、結果もResultStoreに追記しない。
// 実行中の評価器は強制終了せず、結果を破棄する。
func (s *Scheduler) Cancel(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[itemID]
	if !ok {
		return model.NewJobNotFoundError(itemID)
	}
	if rec.job.State.IsTerminal() {
		return model.NewJobFinishedError(itemID, rec.job.State)
	}

	rec.canceled = true
	delete(s.jobs, itemID)
	rec.cancel()
	s.metrics.RecordJobCanceled(string(rec.item.Kind))

	s.logger.Info("解析ジョブを取り消しました",
		slog.String("item_id", itemID),
		slog.String("state", string(rec.job.State)),
	)
	return nil
}

// Get はジョブのスナップショットを返す。
func (s *Scheduler) Get(itemID string) (model.AnalysisJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[itemID]
	if !ok {
		return model.AnalysisJob{}, false
	}
	return *rec.job, true
}

// List は全ジョブのスナップショットを登録順に返す。
func (s *Scheduler) List() []model.AnalysisJob {
	s.mu.Lock()
	out := make([]model.AnalysisJob, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, *rec.job)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b model.AnalysisJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ItemID < b.ItemID {
			return -1
		}
		if a.ItemID > b.ItemID {
			return 1
		}
		return 0
	})
	return out
}

// Await はジョブの終了を待ち、最終状態を返す。
// 待機中に取り消された場合はJobNotFoundErrorを返す。
func (s *Scheduler) Await(ctx context.Context, itemID string) (model.AnalysisJob, error) {
	s.mu.Lock()
	rec, ok := s.jobs[itemID]
	s.mu.Unlock()
	if !ok {
		return model.AnalysisJob{}, model.NewJobNotFoundError(itemID)
	}

	select {
	case <-rec.done:
	case <-ctx.Done():
		return model.AnalysisJob{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.canceled {
		return model.AnalysisJob{}, model.NewJobNotFoundError(itemID)
	}
	return *rec.job, nil
}

// Reap は終了からretention以上経過したジョブをジョブ表から削除し、削除件数を返す。
// 削除したジョブの最終状態は保持し、同じIDの再投稿はJobFinishedErrorのままとする。
func (s *Scheduler) Reap(retention time.Duration) int {
	cutoff := s.clock.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.jobs {
		if rec.job.State.IsTerminal() && !rec.job.UpdatedAt.After(cutoff) {
			s.finished[id] = rec.job.State
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Stop は新規登録を停止し、実行中のジョブを中断して終了を待つ。
// 中断されたジョブはSchedulerStoppedErrorでFailedになる。
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stopAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("解析スケジューラを停止しました")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run は1ジョブのパイプラインを実行する。
func (s *Scheduler) run(ctx context.Context, rec *jobRecord) {
	defer s.wg.Done()
	defer close(rec.done)
	defer rec.cancel()

	// semaphore取得（コンテキスト終了で中断）
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.fail(ctx, rec, ctx.Err())
		return
	}
	defer func() { <-s.sem }()

	s.metrics.IncInFlight()
	defer s.metrics.DecInFlight()

	ctx, span := otel.Tracer("internal/analysis").Start(ctx, "analysis.job",
		trace.WithAttributes(
			attribute.String("item.id", rec.item.ID),
			attribute.String("item.kind", string(rec.item.Kind)),
		),
	)
	defer span.End()

	start := s.clock.Now()

	if rec.item.Kind.IsBinary() {
		if !s.advance(rec, model.JobUploading, 0) {
			return
		}
		for p := uploadStep; p <= 100; p += uploadStep {
			select {
			case <-s.clock.After(s.cfg.UploadTick):
			case <-ctx.Done():
				s.fail(ctx, rec, ctx.Err())
				return
			}
			if !s.advance(rec, model.JobUploading, p) {
				return
			}
		}
	}
	if !s.advance(rec, model.JobAnalyzing, 100) {
		return
	}

	result, err := s.analyze(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(ctx, rec, err)
		return
	}

	if s.complete(ctx, rec, result) {
		s.metrics.RecordAnalysisLatency(string(rec.item.Kind), s.clock.Since(start))
		span.SetAttributes(
			attribute.String("result.verdict", string(result.Verdict)),
			attribute.Float64("result.trust_score", result.TrustScore),
		)
	}
}

// analyze は評価器を実行し、制限時間内に結果を返す。
// 制限時間を過ぎた評価は放棄する。
func (s *Scheduler) analyze(ctx context.Context, rec *jobRecord) (*model.AnalysisResult, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *model.AnalysisResult
		err    error
	}
	out := make(chan outcome, 1)

	timer := s.clock.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	go func() {
		result, err := s.evaluate(actx, rec)
		if err == nil {
			select {
			case <-s.clock.After(s.latencyFor(rec.item)):
			case <-actx.Done():
				err = actx.Err()
			}
		}
		out <- outcome{result: result, err: err}
	}()

	select {
	case o := <-out:
		return o.result, o.err
	case <-timer.Chan():
		return nil, model.NewTimeoutError(s.cfg.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// evaluate はメタデータ取得、評価器の実行、集約を行う。
func (s *Scheduler) evaluate(ctx context.Context, rec *jobRecord) (*model.AnalysisResult, error) {
	in := signals.Input{Item: rec.item, Now: s.clock.Now()}
	if s.enricher != nil {
		in.Headline, in.ShareCount = s.enricher.Enrich(ctx, rec.item)
	}

	plan := signals.Plan(rec.item, s.env)
	bundles, err := signals.Run(ctx, plan, in, s.env, rec.rng)
	if err != nil {
		return nil, err
	}

	_, span := otel.Tracer("internal/analysis").Start(ctx, "analysis.aggregate")
	defer span.End()
	result, err := aggregate.Aggregate(rec.item, bundles, s.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

// latencyFor は種別ごとの解析所要時間を返す。
// リンク系はメタデータ照会のぶん基準値より長い。
func (s *Scheduler) latencyFor(item *model.ContentItem) time.Duration {
	switch item.Kind {
	case model.KindURL:
		return s.cfg.Latency + time.Second
	case model.KindSocial:
		if item.Platform == model.PlatformYouTube {
			return s.cfg.Latency + 2*time.Second
		}
		return s.cfg.Latency + time.Second
	}
	return s.cfg.Latency
}

// advance は状態と進捗を更新してイベントを発行する。
// 取り消し済みのジョブは変更せずfalseを返す。
func (s *Scheduler) advance(rec *jobRecord, state model.JobState, progress int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.canceled {
		return false
	}
	now := s.clock.Now()
	if err := rec.job.Advance(state, now); err != nil {
		s.logger.Error("ジョブの状態遷移に失敗しました",
			slog.String("item_id", rec.item.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if err := rec.job.SetProgress(progress, now); err != nil {
		s.logger.Error("ジョブの進捗更新に失敗しました",
			slog.String("item_id", rec.item.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.publishLocked(rec)
	return true
}

// complete は結果をResultStoreに追記し、ジョブをCompleteにする。
// 取り消し済みのジョブの結果は破棄してfalseを返す。
func (s *Scheduler) complete(ctx context.Context, rec *jobRecord, result *model.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.canceled {
		s.logger.Info("取り消し済みジョブの結果を破棄しました",
			slog.String("item_id", rec.item.ID),
		)
		return false
	}
	if err := s.store.Insert(context.WithoutCancel(ctx), result); err != nil {
		s.failLocked(rec, model.NewSignalEvaluationError("store", err))
		return false
	}
	if err := rec.job.Advance(model.JobComplete, s.clock.Now()); err != nil {
		s.logger.Error("ジョブの状態遷移に失敗しました",
			slog.String("item_id", rec.item.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.publishLocked(rec)
	s.metrics.RecordJobCompleted(string(rec.item.Kind), string(result.Verdict), result.TrustScore)

	s.logger.Info("解析ジョブが完了しました",
		slog.String("item_id", rec.item.ID),
		slog.String("verdict", string(result.Verdict)),
		slog.Float64("trust_score", result.TrustScore),
		slog.Float64("confidence", result.Confidence),
	)
	return true
}

// fail はジョブをFailedにする。取り消し済みのジョブは何もしない。
func (s *Scheduler) fail(_ context.Context, rec *jobRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(rec, err)
}

func (s *Scheduler) failLocked(rec *jobRecord, err error) {
	if rec.canceled {
		return
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			apiErr = model.NewSchedulerStoppedError()
		} else {
			apiErr = model.NewSignalEvaluationError("pipeline", err)
		}
	}

	if advErr := rec.job.Fail(apiErr, s.clock.Now()); advErr != nil {
		s.logger.Error("ジョブの状態遷移に失敗しました",
			slog.String("item_id", rec.item.ID),
			slog.String("error", advErr.Error()),
		)
		return
	}
	s.publishLocked(rec)
	s.metrics.RecordJobFailed(string(rec.item.Kind), apiErr.Code)

	s.logger.Warn("解析ジョブが失敗しました",
		slog.String("item_id", rec.item.ID),
		slog.String("code", apiErr.Code),
		slog.String("error", err.Error()),
	)
}

func (s *Scheduler) publishLocked(rec *jobRecord) {
	if s.events != nil {
		s.events.Publish(rec.job.Event())
	}
}

// noopMetrics はメトリクスを記録しないMetricsCollector。
type noopMetrics struct{}

func (noopMetrics) RecordSubmission(string)                     {}
func (noopMetrics) RecordRejection(string)                      {}
func (noopMetrics) RecordJobCompleted(string, string, float64)  {}
func (noopMetrics) RecordJobFailed(string, string)              {}
func (noopMetrics) RecordJobCanceled(string)                    {}
func (noopMetrics) RecordAnalysisLatency(string, time.Duration) {}
func (noopMetrics) IncInFlight()                                {}
func (noopMetrics) DecInFlight()                                {}
func (noopMetrics) RecordHTTPStatus(int)                        {}
