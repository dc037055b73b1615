package main

import (
	"context"
	"fmt"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		cli.Exit(logger, "Configuration validation failed", err,
			log.FieldOperation, log.OpValidate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		cli.Exit(logger, "Server error", err)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	tokens, err := auth.NewTokens(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("init tokens: %w", err)
	}

	res, err := cli.OpenStore(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		defer client.Close()
		publisher = client
		logger.Info("Transaction events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP_URL not set, transaction events disabled")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		SecureCookie:       cfg.IsProduction(),
		RateLimitPerMinute: cfg.RateLimitPerMin,
	}, apphttp.Deps{
		Auth:         services.NewAuthService(res.Store, tokens, logger),
		Transactions: services.NewTransactionService(res.Store, publisher, logger),
		Tokens:       tokens,
		Store:        res.Store,
		Logger:       logger,
	})

	logger.Info("Starting fintrack server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"env", cfg.AppEnv)
	return cli.Serve(ctx, logger, srv, cfg.ShutdownTimeout)
}
