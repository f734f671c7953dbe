package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/openracing/enrollment-service/internal/adapters/asaas"
	"github.com/openracing/enrollment-service/internal/adapters/postgres"
	httpapi "github.com/openracing/enrollment-service/internal/api/http"
	"github.com/openracing/enrollment-service/internal/config"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/internal/services/enrollment"
	"github.com/openracing/enrollment-service/internal/services/reconciliation"
	"github.com/openracing/enrollment-service/internal/services/webhook"
	"github.com/openracing/enrollment-service/pkg/logging"
	"github.com/openracing/enrollment-service/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logger ports.Logger
	if cfg.Logger.Development {
		logger, err = logging.NewZapLoggerDevelopment()
	} else {
		logger, err = logging.NewZapLoggerProduction()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	metrics := observability.NewMetrics()

	db := postgres.NewDBExecutor(pool)
	regRepo := postgres.NewRegistrationRepository(db)
	payRepo := postgres.NewPaymentRecordRepository(db)
	seasonRepo := postgres.NewSeasonRepository(db)
	competitorRepo := postgres.NewCompetitorRepository(db)

	gateway := asaas.NewClient(asaas.Config{
		BaseURL:    cfg.Asaas.BaseURL,
		APIKey:     cfg.Asaas.APIKey,
		Timeout:    time.Duration(cfg.Asaas.Timeout) * time.Second,
		Production: cfg.Asaas.Production,
	}, nil, logger, metrics)

	reconciler := reconciliation.NewService(regRepo, payRepo, logger, metrics)
	enrollmentSvc := enrollment.NewService(db, regRepo, payRepo, seasonRepo, competitorRepo, gateway, reconciler, logger)
	ingestor := webhook.NewIngestor(payRepo, reconciler, logger, metrics)

	router := httpapi.NewRouter(
		httpapi.NewRegistrationHandler(enrollmentSvc, logger),
		httpapi.NewWebhookHandler(ingestor, logger, cfg.Asaas.WebhookToken),
		metrics.Handler(),
		logger,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", ports.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
