package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/danielmoisemontezima/zw-webpay-service/internal/adapters"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/config"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/core"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/ports"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/repository"
	"github.com/danielmoisemontezima/zw-webpay-service/internal/service"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	pool     *pgxpool.Pool
	repo     *repository.TransactionRepository
	events   ports.IEventPublisher
	service  *service.TransactionService
	webhooks *service.WebhookService
}

func newApp(ctx context.Context, requireGateway bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if requireGateway {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	pool, err := config.InitPostgresPool(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var events ports.IEventPublisher = adapters.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := adapters.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			pool.Close()
			_ = logger.Sync()
			return nil, err
		}
		events = publisher
	} else {
		logger.Info("KAFKA_BROKERS not set, lifecycle events disabled")
	}

	repo := repository.NewTransactionRepository(pool)
	gateway := adapters.NewWebpayAdapter(cfg.WebpayBaseURL, cfg.WebpayAPIKeyID, cfg.WebpayAPIKeySecret, cfg.WebpayTimeout, logger)
	stock := adapters.NewStockAdapter(cfg.StockBaseURL, cfg.StockTimeout)

	opts := service.DefaultOptions()
	opts.Limits = core.Limits{MinAmount: cfg.AmountMin, MaxAmount: cfg.AmountMax}
	opts.TTL = cfg.TransactionTTL
	opts.BranchID = cfg.StockBranchID
	opts.GatewayTimeout = cfg.WebpayTimeout
	opts.StockTimeout = cfg.StockTimeout

	svc := service.NewTransactionService(repo, gateway, stock, events, logger, opts)

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		repo:     repo,
		events:   events,
		service:  svc,
		webhooks: service.NewWebhookService(cfg.WebhookSecret, svc, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("event publisher close failed", zap.Error(err))
	}
	a.pool.Close()
	_ = a.logger.Sync()
}
