package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/credora/credora-api/internal/config"
	"github.com/credora/credora-api/internal/identity"
	"github.com/credora/credora-api/internal/infra"
	"github.com/credora/credora-api/internal/logging"
	"github.com/credora/credora-api/internal/metrics"
	"github.com/credora/credora-api/internal/notification"
	"github.com/credora/credora-api/internal/routes"
	"github.com/credora/credora-api/internal/server"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	// A missing .env is fine; real deployments use the process environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())

	ctx := context.Background()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	checks := map[string]routes.Pinger{}
	users, closeUsers, err := openUserStore(ctx, cfg, logger, checks)
	if err != nil {
		logger.Error("open user store", "error", err)
		os.Exit(1)
	}
	defer closeUsers()

	var notifier notification.Notifier = notification.NewLoggerNotifier(logger)
	if cfg.SMTP.Host != "" {
		notifier = notification.NewSMTPNotifier(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.AppName,
		}, logger)
	} else {
		logger.Warn("SMTP_HOST not set, verification mail will be logged instead of sent")
	}

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		Cache:    cache,
		Users:    users,
		Notifier: notifier,
		Metrics:  metrics.New(),
		Logger:   logger,
		Version:  version,
		Checks:   checks,
	}, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Address(), "env", cfg.AppEnv, "version", version)
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// openUserStore picks MongoDB when MONGODB_URI is set, otherwise PostgreSQL
// when DATABASE_URL is set. Development falls back to an in-memory store.
func openUserStore(ctx context.Context, cfg config.Config, logger *slog.Logger, checks map[string]routes.Pinger) (identity.Repository, func(), error) {
	switch {
	case cfg.MongoURI != "":
		client, err := infra.NewMongoClient(ctx, cfg.MongoURI, cfg.AppName)
		if err != nil {
			return nil, nil, err
		}
		repo := identity.NewMongoRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		logger.Info("user store ready", "backend", "mongodb", "database", cfg.MongoDatabase)
		return repo, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("disconnect mongodb", "error", err)
			}
		}, nil

	case cfg.DatabaseURL != "":
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := identity.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		checks["postgres"] = pool.Ping
		logger.Info("user store ready", "backend", "postgres")
		return repo, pool.Close, nil

	case cfg.IsDevelopment():
		logger.Warn("no database configured, using in-memory user store")
		return identity.NewMemoryRepository(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("MONGODB_URI or DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
}
