package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/credit"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/entitlement"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/config"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/httpserver"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/kafka"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/logger"
	platformmetrics "github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/metrics"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/postgres"
	platformredis "github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/redis"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/token"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/provider"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/ratelimit"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/retention"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/unlock"
	unlockhandler "github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/unlock/handler"
	unlockmetrics "github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/unlock/metrics"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/identity"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/migrations"
	id "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/audit"
	authmw "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/middleware/auth"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/middleware/device"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/middleware/metadata"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/middleware/request"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/middleware/requesttime"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/middleware/version"
)

// identityCacheTTL is how long fetched identity documents stay resolvable.
// The unlock flow applies its own, stricter freshness gate on top.
const identityCacheTTL = 48 * time.Hour

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	if cfg.Providers.SpecURL == "" {
		return errors.New("SPEC_PROVIDER_URL is required")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Apply(ctx, db); err != nil {
			return err
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	defer producer.Close()

	// Audit events buffer through a channel so Kafka latency never sits on the
	// unlock transaction path.
	var publisher audit.Publisher
	if producer != nil {
		if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 3); err != nil {
			log.Warn("audit topic setup failed, continuing", "error", err)
		}
		channelPub := audit.NewChannelPublisher(256)
		worker := audit.NewWorker(
			audit.NewPublisherSink(audit.NewKafkaPublisher(producer, cfg.Kafka.AuditTopic)),
			channelPub.Inbox(),
			log,
		)
		workerCtx, stopWorker := context.WithCancel(ctx)
		defer stopWorker()
		go func() {
			if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
		}()
		publisher = channelPub
	}

	var identities identity.Cache
	if redisClient != nil {
		identities = identity.NewRedisCache(redisClient.Client, identityCacheTTL)
	} else {
		identities = identity.NewMemoryCache(identityCacheTTL)
	}

	specs := provider.NewHTTPSpecClient(cfg.Providers.SpecURL, cfg.Providers.SpecAPIKey, cfg.Providers.FetchTimeout,
		provider.WithSpecClientLogger(log))
	var tyres provider.TyreProvider
	if cfg.Providers.TyreURL != "" {
		tyres = provider.NewHTTPTyreClient(cfg.Providers.TyreURL, cfg.Providers.TyreAPIKey, cfg.Providers.FetchTimeout)
	}

	var tx unlock.Tx
	if db != nil {
		tx = newUnlockPostgresTx(db)
	} else {
		tx = unlock.NewMemoryTx(unlock.Stores{
			Records:      unlock.NewMemoryRecords(),
			Snapshots:    snapshot.NewMemory(),
			Entitlements: entitlement.NewMemory(),
			Credits:      credit.NewMemory(),
			Retention:    retention.NewMemory(),
		})
	}

	service, err := unlock.New(tx, identities, specs, tyres,
		unlock.WithLogger(log),
		unlock.WithMetrics(unlockmetrics.New()),
		unlock.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	jwtService := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.RateLimit.PerMinute, time.Minute)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.PerMinute, time.Minute)
	}
	throttle := ratelimit.NewMiddleware(limiter, log)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(request.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(authmw.Authenticate(token.NewMiddlewareAdapter(jwtService), log))
	router.Use(device.Identify(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Route("/v1", func(r chi.Router) {
		r.Use(version.Extract(id.APIVersionV1))
		if !cfg.RateLimit.Disabled {
			r.Use(throttle.Limit)
		}
		unlockhandler.New(service, log).Register(r)
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", platformmetrics.Handler())
	metricsSrv := httpserver.New(cfg.Server.MetricsAddr, metricsMux)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting unlock api", "addr", cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
