// Package app assembles the gateway from configuration. Both binaries use
// it so the API and the CLI run the same stack.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/cache"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/chain"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/config"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/flags"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/gateway"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/pools"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/rpc"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/storage"
)

// LoadEnv loads .env from the working directory or its parents. A missing
// file is not an error.
func LoadEnv(logger *logrus.Logger) {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				logger.WithError(err).Warnf("failed to load %s", envPath)
				return
			}
			logger.Debugf("loaded .env from %s", envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			logger.Debug("no .env file found, using system environment variables")
			return
		}
		dir = parent
	}
}

// NewLogger returns the process logger at the given level.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// App holds the assembled components. Redis and ClickHouse backed parts are
// nil when not configured.
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	RPC     *rpc.Client
	Pools   *pools.Reader
	Gateway *gateway.Service

	Redis     *redis.Client
	Flags     *flags.Store
	Publisher *cache.EventPublisher
	Audit     *cache.ClickHouseAuditSink

	closers []func() error
}

// New wires the gateway. Optional backends that fail to connect are logged
// and skipped.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	a.RPC = rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.RPCTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	var sinks storage.MultiSink
	var poolCache storage.PoolCache

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, flags, pool cache and event stream disabled")
			_ = client.Close()
		} else {
			a.Redis = client
			a.closers = append(a.closers, client.Close)

			store, err := flags.NewStore(client)
			if err != nil {
				return nil, fmt.Errorf("create flags store: %w", err)
			}
			a.Flags = store

			rc, err := cache.NewRedisPoolCache(client)
			if err != nil {
				return nil, fmt.Errorf("create pool cache: %w", err)
			}
			poolCache = rc

			a.Publisher = cache.NewEventPublisher(client, logger)
			sinks = append(sinks, a.Publisher)
		}
	}

	if cfg.ClickHouseAddr != "" {
		sink, err := cache.NewClickHouseAuditSink(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, logger)
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, audit log disabled")
		} else {
			a.Audit = sink
			a.closers = append(a.closers, sink.Close)
			sinks = append(sinks, sink)
		}
	}

	a.Pools = pools.NewReader(pools.ReaderConfig{
		Accounts:  a.RPC,
		Cache:     poolCache,
		CacheTTL:  cfg.PoolCacheTTL,
		ProgramID: cfg.ProgramID(),
		Logger:    logger,
	})

	gcfg := gateway.Config{
		Builder: dexai.NewBuilder(dexai.BuilderConfig{
			Verifier: chain.NewTokenAccountVerifier(a.RPC, logger),
			Timeout:  cfg.BuildTimeout,
			Logger:   logger,
		}),
		Pools:              a.Pools,
		VerifyByDefault:    cfg.VerifyByDefault,
		DefaultSlippageBps: cfg.DefaultSlippage,
		Logger:             logger,
	}
	if a.Flags != nil {
		gcfg.Flags = a.Flags
	}
	if len(sinks) > 0 {
		gcfg.Audit = sinks
	}
	a.Gateway = gateway.New(gcfg)

	return a, nil
}

// Checks returns the health checks of the configured dependencies.
func (a *App) Checks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"rpc": a.RPC.GetHealth,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	if a.Audit != nil {
		checks["clickhouse"] = a.Audit.Ping
	}
	return checks
}

// Close waits for pending audit writes and releases connections.
func (a *App) Close() error {
	a.Gateway.Wait()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
