package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"palisade/internal/audit"
	"palisade/internal/idempotency"
	"palisade/internal/platform/config"
	"palisade/internal/platform/database"
	"palisade/internal/platform/health"
	"palisade/internal/platform/logger"
	"palisade/internal/platform/metrics"
	quotametrics "palisade/internal/quota/metrics"
	quotamw "palisade/internal/quota/middleware"
	quotamodels "palisade/internal/quota/models"
	quotaservice "palisade/internal/quota/service"
	ratelimitconfig "palisade/internal/ratelimit/config"
	ratelimitmetrics "palisade/internal/ratelimit/metrics"
	ratelimitmw "palisade/internal/ratelimit/middleware"
	ratelimitservice "palisade/internal/ratelimit/service"
	"palisade/internal/ratelimit/store/window"
	"palisade/internal/ratelimit/workers/sweep"
	"palisade/internal/schema"
	httptransport "palisade/internal/transport/http"
	authmw "palisade/pkg/platform/middleware/auth"
	contractmw "palisade/pkg/platform/middleware/contract"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. The governance stages live in internal packages.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing palisade",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"durable_stores", cfg.DatabaseURL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	healthHandler := health.New(cfg.Environment)

	var (
		auditStore audit.Store
		idemStore  idempotency.Store
	)
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(ctx, dbCfg)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		healthHandler.RegisterCheck("database", func() error {
			return pool.HealthCheck(context.Background())
		})
		auditStore = audit.NewPostgresStore(pool.DB())
		idemStore = idempotency.NewPostgresStore(pool.DB())
		healthHandler.SetDetail("storage", "postgres")
	} else {
		auditStore = audit.NewInMemoryStore()
		idemStore = idempotency.NewInMemoryStore()
		healthHandler.SetDetail("storage", "memory")
	}

	auditPublisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditPublisher.Close()
	auditRecorder := audit.NewRecorder(auditPublisher, log, m)

	idemService := idempotency.NewService(idemStore,
		idempotency.WithLogger(log),
		idempotency.WithRetention(cfg.Idempotency.Retention),
		idempotency.WithMetrics(m),
	)

	rlMetrics := ratelimitmetrics.New()
	windowStore := window.NewInMemoryStore()
	limiter, err := ratelimitservice.New(windowStore,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(rlMetrics),
		ratelimitservice.WithConfig(&ratelimitconfig.Config{
			IP:            ratelimitconfig.Limit{Max: cfg.RateLimit.IPMax, Window: cfg.RateLimit.IPWindow},
			User:          ratelimitconfig.Limit{Max: cfg.RateLimit.UserMax, Window: cfg.RateLimit.UserWindow},
			SweepInterval: cfg.RateLimit.SweepInterval,
		}),
	)
	if err != nil {
		log.Error("rate limiter setup failed", "error", err)
		os.Exit(1)
	}

	quotaService := quotaservice.New(
		quotaservice.WithLogger(log),
		quotaservice.WithMetrics(quotametrics.New()),
		quotaservice.WithLimits(quotamodels.Limits{
			MaxFileBytes:  cfg.Quota.MaxFileBytes,
			MaxTotalBytes: cfg.Quota.MaxTotalBytes,
			MaxFileCount:  cfg.Quota.MaxFileCount,
			MaxTotalPages: cfg.Quota.MaxTotalPages,
			BytesPerPage:  cfg.Quota.BytesPerPage,
		}),
	)

	handler := httptransport.NewHandler(log, idemService, auditPublisher)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:         log,
		Metrics:        m,
		Verifier:       authmw.NewVerifier(cfg.JWTSigningKey, log),
		Contract:       contractmw.New(log, contractmw.WithPeekLimit(cfg.MaxBodyBytes)),
		Schema:         schema.New(log),
		Quota:          quotamw.New(quotaService, log),
		RateLimit:      ratelimitmw.New(limiter, log),
		Audit:          auditRecorder,
		Health:         healthHandler,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	windowSweeper := sweep.New(windowStore,
		sweep.WithLogger(log),
		sweep.WithInterval(cfg.RateLimit.SweepInterval),
		sweep.WithMetrics(rlMetrics),
	)
	g.Go(func() error {
		return ignoreCanceled(windowSweeper.Start(ctx))
	})

	idemSweeper := idempotency.NewSweeper(idemStore,
		idempotency.WithSweeperLogger(log),
		idempotency.WithSweepInterval(cfg.Idempotency.SweepInterval),
	)
	g.Go(func() error {
		return ignoreCanceled(idemSweeper.Start(ctx))
	})

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		auditRecorder.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
