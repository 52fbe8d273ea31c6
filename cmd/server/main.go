package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resolute/internal/audit"
	"resolute/internal/audit/publisher"
	"resolute/internal/platform/config"
	"resolute/internal/platform/httpserver"
	"resolute/internal/platform/logger"
	platformredis "resolute/internal/platform/redis"
	"resolute/internal/resolution"
	"resolute/internal/resolution/cluster"
	resolutionhandler "resolute/internal/resolution/handler"
	resolutionmetrics "resolute/internal/resolution/metrics"
	resolutionsignal "resolute/internal/resolution/signal"
	linkstore "resolute/internal/resolution/store"
	reviewhandler "resolute/internal/review/handler"
	reviewmetrics "resolute/internal/review/metrics"
	"resolute/internal/review/queue"
	"resolute/internal/review/sampling"
	"resolute/internal/review/store"
	"resolute/internal/review/workflow"
	"resolute/internal/subject"
	"resolute/pkg/platform/middleware/auth"
	"resolute/pkg/platform/middleware/requestid"
	"resolute/pkg/platform/middleware/requesttime"
)

const qcSampleInterval = time.Hour

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	log := logger.New()
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. Without a DSN everything runs in memory, which is enough for
	// local development.
	var (
		subjects subject.Store
		tasks    store.TaskStore
		links    linkstore.LinkStore
		audits   audit.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		subjects = subject.NewPostgresStore(db)
		tasks = store.NewPostgresTaskStore(db)
		links = linkstore.NewPostgresLinkStore(db)
		audits = audit.NewPostgresStore(db)
	} else {
		log.Warn("RESOLUTE_POSTGRES_DSN not set, using in-memory stores")
		subjects = subject.NewInMemoryStore()
		tasks = store.NewInMemoryTaskStore()
		links = linkstore.NewInMemoryLinkStore()
		audits = audit.NewInMemoryStore()
	}

	// Audit recorder, optionally mirroring to Kafka.
	recorderOpts := []audit.Option{}
	if len(cfg.Kafka.Seeds) > 0 {
		mirror, err := publisher.NewKafka(cfg.Kafka.Seeds, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mirror.Close(flushCtx); err != nil {
				log.Error("flush audit mirror", "error", err)
			}
		}()
		recorderOpts = append(recorderOpts, audit.WithPublisher(mirror))
	}
	recorder, err := audit.NewRecorder(audits, recorderOpts...)
	if err != nil {
		log.Error("build audit recorder", "error", err)
		os.Exit(1)
	}

	wf, err := workflow.NewEngine(subjects, recorder, workflow.WithLogger(log))
	if err != nil {
		log.Error("build workflow engine", "error", err)
		os.Exit(1)
	}

	// Review queues, with a Redis-backed assignment lease when configured.
	queueOpts := []queue.Option{
		queue.WithLogger(log),
		queue.WithMetrics(reviewmetrics.New()),
	}
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		queueOpts = append(queueOpts, queue.WithLease(queue.NewRedisLease(redisClient.Client, cfg.Redis.LeaseTTL)))
	}
	queues, err := queue.NewService(tasks, subjects, links, wf, recorder, queueOpts...)
	if err != nil {
		log.Error("build queue service", "error", err)
		os.Exit(1)
	}

	// Resolution pipeline.
	signals, err := resolutionsignal.NewConfig(cfg.Resolution.Anchors)
	if err != nil {
		log.Error("invalid dedup anchors", "error", err)
		os.Exit(1)
	}
	thresholds, err := cluster.NewConfig(cfg.Resolution.RejectBelow, cfg.Resolution.AcceptAt)
	if err != nil {
		log.Error("invalid thresholds", "error", err)
		os.Exit(1)
	}
	resolverOpts := []resolution.Option{
		resolution.WithLogger(log),
		resolution.WithMetrics(resolutionmetrics.New()),
	}
	if cfg.Resolution.Workers > 0 {
		resolverOpts = append(resolverOpts, resolution.WithWorkers(cfg.Resolution.Workers))
	}
	resolver, err := resolution.NewResolver(signals, cluster.New(thresholds),
		subjects, links, recorder, wf, queues, resolverOpts...)
	if err != nil {
		log.Error("build resolver", "error", err)
		os.Exit(1)
	}

	// QC sampling over automated approvals.
	samplingCfg, err := sampling.NewConfig(cfg.Sampling.Rate, cfg.Sampling.Min, cfg.Sampling.Max)
	if err != nil {
		log.Error("invalid sampling config", "error", err)
		os.Exit(1)
	}
	sampler, err := sampling.NewSampler(samplingCfg, queues, tasks, recorder, sampling.WithLogger(log))
	if err != nil {
		log.Error("build sampler", "error", err)
		os.Exit(1)
	}
	go runQCSampling(ctx, log, sampler, subjects)

	// HTTP surface.
	verifier := auth.NewJWTVerifier([]byte(cfg.Server.JWTSigningKey))
	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(verifier, log))
		reviewhandler.New(queues, wf, recorder, subjects, log).Register(r)
		resolutionhandler.New(resolver, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("starting resolute", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("resolute stopped")
}

// runQCSampling periodically draws a QC batch from the approved population.
func runQCSampling(ctx context.Context, log *slog.Logger, sampler *sampling.Sampler, subjects subject.Store) {
	ticker := time.NewTicker(qcSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			approved, err := subjects.ListByStatus(ctx, subject.StatusApproved)
			if err != nil {
				log.Error("list approved subjects for qc", "error", err)
				continue
			}
			if _, err := sampler.Sample(ctx, approved); err != nil {
				log.Error("qc sampling failed", "error", err)
			}
		}
	}
}
