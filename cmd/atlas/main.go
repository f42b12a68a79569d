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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/atlas-erp/atlas-access/internal/app"
	"github.com/atlas-erp/atlas-access/internal/audit"
	"github.com/atlas-erp/atlas-access/internal/auth"
	"github.com/atlas-erp/atlas-access/internal/guard"
	"github.com/atlas-erp/atlas-access/internal/mfa"
	"github.com/atlas-erp/atlas-access/internal/observability"
	"github.com/atlas-erp/atlas-access/internal/permission"
	"github.com/atlas-erp/atlas-access/internal/platform/cache"
	"github.com/atlas-erp/atlas-access/internal/platform/db"
	"github.com/atlas-erp/atlas-access/internal/session"
	"github.com/atlas-erp/atlas-access/internal/token"
	"github.com/atlas-erp/atlas-access/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	verifier, err := token.NewVerifier(token.Config{
		Secret: []byte(cfg.TokenSecret),
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		logger.Error("init token verifier", slog.Any("error", err))
		os.Exit(1)
	}

	sessions := session.NewPGStore(pool)
	resolver := permission.NewResolver(permission.NewPGStore(pool))

	retryClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := retryClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	dispatcher := audit.NewDispatcher(audit.DispatcherConfig{
		Writer:     audit.NewPGWriter(pool),
		Retryer:    retryClient,
		Logger:     logger,
		BufferSize: cfg.AuditBufferSize,
		OnDrop:     metrics.AuditDropped,
		OnRetry:    metrics.AuditRetried,
	})
	defer dispatcher.Close()

	accessGuard := guard.New(guard.Config{
		Verifier: verifier,
		Sessions: sessions,
		Resolver: resolver,
		Sink:     dispatcher,
		Metrics:  metrics,
		Logger:   logger,
	})

	mfaEngine := mfa.NewEngine(mfa.NewPGStore(pool), mfa.NewRedisLimiter(redisClient), cfg.MFAIssuer)
	mfaHandler := mfa.NewHandler(logger, mfaEngine)

	authService := auth.NewService(auth.ServiceConfig{
		Repo:         auth.NewRepository(pool),
		Sessions:     sessions,
		Tokens:       verifier,
		SecondFactor: mfaEngine,
		Throttle:     auth.NewRedisThrottle(redisClient),
		SessionTTL:   cfg.SessionTTL,
	})
	authHandler := auth.NewHandler(logger, authService, resolver, dispatcher)

	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewPGReader(pool)))

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Guard:        accessGuard,
		AuthHandler:  authHandler,
		MFAHandler:   mfaHandler,
		AuditHandler: auditHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}
