package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/truthlens/internal/analysis"
	"github.com/hitoshi/truthlens/internal/config"
	"github.com/hitoshi/truthlens/internal/enrich"
	"github.com/hitoshi/truthlens/internal/event"
	"github.com/hitoshi/truthlens/internal/handler"
	"github.com/hitoshi/truthlens/internal/ingest"
	"github.com/hitoshi/truthlens/internal/logger"
	"github.com/hitoshi/truthlens/internal/metrics"
	"github.com/hitoshi/truthlens/internal/middleware"
	"github.com/hitoshi/truthlens/internal/model"
	"github.com/hitoshi/truthlens/internal/registry"
	"github.com/hitoshi/truthlens/internal/relay"
	"github.com/hitoshi/truthlens/internal/repository"
	"github.com/hitoshi/truthlens/internal/security"
	"github.com/hitoshi/truthlens/internal/signals"
	"github.com/hitoshi/truthlens/internal/worker/cleanup"
)

// shareCountTimeout は共有数APIのHTTPタイムアウト。
const shareCountTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。checkコマンドは結果JSONをwに書き、ログは標準エラーに出力する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	logOut := w
	if cmd == CommandCheck {
		logOut = os.Stderr
	}

	cfg, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandCheck:
		opts, err := ParseCheckArgs(args[1:])
		if err != nil {
			return err
		}
		return runCheck(cfg, opts, w)
	default:
		return runServe(cfg)
	}
}

// pipeline は投稿から結果保存までの構成要素。
type pipeline struct {
	ingestor     *ingest.Ingestor
	scheduler    *analysis.Scheduler
	results      *repository.MemoryResultRepo
	jobEvents    *event.Broker[model.JobEvent]
	resultEvents *event.Broker[*model.AnalysisResult]
}

// close はスケジューラを停止し、イベント配信を終了する。
func (p *pipeline) close(ctx context.Context) error {
	err := p.scheduler.Stop(ctx)
	p.jobEvents.Close()
	p.resultEvents.Close()
	return err
}

// buildPipeline は設定に従ってパイプラインを構築する。collectorはnilでもよい。
func buildPipeline(cfg *config.Config, collector metrics.MetricsCollector, log *slog.Logger) *pipeline {
	clock := clockwork.NewRealClock()

	// 1. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 2. イベント配信と結果ストア
	jobEvents := event.NewBroker[model.JobEvent]("jobs", log)
	resultEvents := event.NewBroker[*model.AnalysisResult]("results", log)
	results := repository.NewMemoryResultRepo(resultEvents)

	// 3. メタデータ取得（有効な場合のみ）
	var enricher analysis.Enricher
	if cfg.MetadataFetchEnabled || cfg.ShareCountEnabled {
		var headlines enrich.HeadlineSource
		if cfg.MetadataFetchEnabled {
			headlines = enrich.NewHeadlineFetcher(ssrfGuard, cfg.MetadataFetchTimeout, cfg.MetadataFetchMaxSize)
		}
		var shares enrich.ShareSource
		if cfg.ShareCountEnabled {
			shares = enrich.NewShareCounter(
				ssrfGuard.NewSafeClient(shareCountTimeout, cfg.MetadataFetchMaxSize),
				cfg.ShareCountAPIInterval, clock, log,
			)
		}
		enricher = enrich.NewEnricher(headlines, shares, cfg.MetadataFetchTimeout, log)
	}

	// 4. スケジューラの初期化
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	env := signals.Env{Registry: registry.Default(), URLs: ssrfGuard}
	scheduler := analysis.NewScheduler(results, jobEvents, env, enricher, collector, clock, log, analysis.Config{
		Timeout:       cfg.AnalysisTimeout,
		Latency:       cfg.AnalysisLatency,
		UploadTick:    cfg.UploadTick,
		MaxConcurrent: cfg.PipelineMaxConcurrent,
		Seed:          seed,
	})

	log.Info("analysis pipeline initialized",
		slog.Uint64("seed", seed),
		slog.Bool("metadata_fetch", cfg.MetadataFetchEnabled),
		slog.Bool("share_count", cfg.ShareCountEnabled),
	)

	return &pipeline{
		ingestor:     ingest.NewIngestor(clock, sanitizer),
		scheduler:    scheduler,
		results:      results,
		jobEvents:    jobEvents,
		resultEvents: resultEvents,
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーとバックグラウンドジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. メトリクスの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 2. パイプラインの構築
	p := buildPipeline(cfg, collector, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// 3. NATSリレー（NATS_URLが設定されている場合のみ）
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("truthlens"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain()

		events, unsubscribe := p.jobEvents.Subscribe(256)
		defer unsubscribe()
		natsRelay := relay.NewNATSRelay(nc, cfg.NATSSubject, log)
		g.Go(func() error {
			natsRelay.Run(gctx, events)
			return nil
		})
		log.Info("NATS relay enabled", slog.String("subject_prefix", cfg.NATSSubject))
	}

	// 4. ジョブクリーンアップ
	cleanupJob := cleanup.NewCleanupJob(p.scheduler, clockwork.NewRealClock(), log)
	cleanupJob.Retention = cfg.JobRetention
	g.Go(func() error {
		cleanupJob.Start(gctx, cfg.JobReapInterval)
		return nil
	})

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSubmissions),
		log, collector.RecordRejection,
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusObserver:    collector.RecordHTTPStatus,
		Ingestor:          p.ingestor,
		Scheduler:         p.scheduler,
		Rejects:           collector,
		Results:           p.results,
		JobEvents:         p.jobEvents,
		ResultEvents:      p.resultEvents,
		MetricsHandler:    metrics.Handler(reg),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// イベントストリームはShutdown開始時に配信を閉じて終了させる
	server.RegisterOnShutdown(func() {
		p.jobEvents.Close()
		p.resultEvents.Close()
	})

	g.Go(func() error {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	// シグナル受信またはサーバー異常終了でシャットダウン
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down API server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := p.close(shutdownCtx); err != nil {
			return fmt.Errorf("scheduler shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
