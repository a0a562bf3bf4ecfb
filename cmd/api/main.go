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

	"voice-platform/internal/agents"
	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/calls"
	"voice-platform/internal/config"
	"voice-platform/internal/httpapi"
	"voice-platform/internal/llm"
	"voice-platform/internal/outbound"
	"voice-platform/internal/outcome"
	"voice-platform/internal/reconcile"
	"voice-platform/internal/reporting"
	"voice-platform/internal/telephony"
	"voice-platform/internal/usage"
	"voice-platform/pkg/logger"
	"voice-platform/pkg/metrics"
	"voice-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// placementSlotTTL bounds how long a crashed placement can hold a concurrency slot.
const placementSlotTTL = 2 * time.Minute

const readinessTimeout = 2 * time.Second

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, logger.Options{File: cfg.App.LogFile})
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	callRepo := calls.NewPostgresRepo(db)
	agentRepo := agents.NewPostgresRepo(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	usageSvc := usage.NewService(db)

	placer := telephony.NewElevenLabsClient(telephony.ElevenLabsOptions{
		BaseURL: cfg.ElevenLabs.BaseURL,
		APIKey:  cfg.ElevenLabs.APIKey,
		Timeout: cfg.Calls.ProviderTimeout,
		Logger:  log,
	})

	var completer outcome.Completer
	if cfg.OpenAI.APIKey != "" {
		completer = llm.NewOpenAIClient(llm.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.Calls.ProviderTimeout,
		}, log)
	} else {
		log.Warn("OPENAI_API_KEY not set; call outcomes default to neutral")
	}

	outboundSvc := outbound.NewService(outbound.Deps{
		Calls:         callRepo,
		Agents:        agentRepo,
		Placer:        placer,
		PhoneNumberID: cfg.ElevenLabs.PhoneNumberID,
		Audit:         auditSvc,
		Limiter:       outbound.NewRedisLimiter(rdb, cfg.Calls.PlacementConcurrency, placementSlotTTL),
		Logger:        log,
	})

	reconciler := reconcile.New(reconcile.Deps{
		Verifier: telephony.Verifier{
			Secret:    cfg.ElevenLabs.WebhookSecret,
			Tolerance: cfg.ElevenLabs.WebhookTolerance,
		},
		Calls:      callRepo,
		Agents:     agentRepo,
		Classifier: outcome.NewClassifier(completer, log),
		Usage:      usageSvc,
		Logger:     log,
	})

	h := httpapi.Handlers{
		Auth:       authManager,
		Calls:      callRepo,
		Outbound:   outboundSvc,
		Reconciler: reconciler,
		Usage:      usageSvc,
		Reporting:  reporting.NewService(reporting.NewPostgresRepo(db)),
		Audit:      auditSvc,
		AllowLogin: !cfg.IsProduction(),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	ready := func(ctx context.Context) error {
		return utils.HealthCheck(ctx, db, readinessTimeout)
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager), usage.RequireMinutesRemaining(usageSvc), ready)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
