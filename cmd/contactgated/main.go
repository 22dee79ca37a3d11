package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SyntaxSidekick/contactgate/internal/config"
	"github.com/SyntaxSidekick/contactgate/internal/mailer"
	"github.com/SyntaxSidekick/contactgate/internal/maillog"
	"github.com/SyntaxSidekick/contactgate/internal/ratelimit"
	"github.com/SyntaxSidekick/contactgate/internal/server"
	"github.com/SyntaxSidekick/contactgate/internal/storage"
)

var logger *zap.Logger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	logger = l.With(zap.String("package", "main"))
	zap.ReplaceGlobals(l)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("contactgate starting...",
		zap.String("listen_address", cfg.ListenAddress),
		zap.String("storage_type", cfg.StorageType),
		zap.Bool("mailer_configured", cfg.MailerConfigured()))

	// Make sure the data directory exists
	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		if err = os.MkdirAll(cfg.DataDir, 0755); err != nil {
			logger.Fatal("failed to create data directory", zap.Error(err), zap.String("data_dir", cfg.DataDir))
			os.Exit(1)
		}
		logger.Info("created data directory", zap.String("data_dir", cfg.DataDir))
	}

	// Initialize storage
	store, err := storage.NewStorage(
		cfg.StorageType,
		cfg.DataDir,
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
	)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err), zap.String("storage_type", cfg.StorageType))
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage initialized")

	// Delivery outcome logs
	outcomes, err := maillog.New(filepath.Join(cfg.DataDir, "logs"), cfg.LogRetentionDays)
	if err != nil {
		logger.Fatal("failed to initialize outcome logs", zap.Error(err))
		os.Exit(1)
	}

	// Delivery attempter
	deliverer := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		To:       cfg.MailTo,
		Retries:  cfg.MailRetries,
	})
	if !cfg.MailerConfigured() {
		logger.Warn("mailer configuration incomplete; submissions will be rejected until it is fixed")
	}

	// Rate limiter over the persistent counter store
	limiter := ratelimit.New(
		store,
		cfg.IPHashSalt,
		time.Duration(cfg.RateLimitWindow)*time.Second,
		cfg.RateLimitMax,
		cfg.RateFailClosed,
	)

	e := echo.New()
	server.ApplyCommonMiddleware(e, store, cfg, deliverer, limiter, outcomes, logger)
	server.SetupRouter(e, cfg)

	logger.Info("listening on address", zap.String("address", cfg.ListenAddress))
	if err := e.Start(cfg.ListenAddress); err != nil {
		logger.Fatal("error starting HTTP server", zap.Error(err), zap.String("address", cfg.ListenAddress))
		os.Exit(1)
	}
}
