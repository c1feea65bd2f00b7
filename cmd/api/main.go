package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/ai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/app"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/config"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/server"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/tools"
)

// main is the entry point for the API server
// It initializes all dependencies and starts the HTTP server with graceful shutdown
func main() {
	bootLogger := app.NewLogger("info")

	// load .env BEFORE anything reads os.Getenv
	app.LoadEnv(bootLogger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		bootLogger.WithError(err).Fatal("invalid configuration")
	}
	logger := app.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize gateway")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("error while closing resources")
		}
	}()

	h := &server.Handlers{
		Gateway: a.Gateway,
		Checks:  a.Checks(),
		DevMode: cfg.DevMode,
		Logger:  logger,
	}
	if a.Flags != nil {
		h.Flags = a.Flags
	}

	// AI endpoints are only served when an OpenRouter key is provided.
	if cfg.OpenRouterAPIKey != "" {
		wireAI(ctx, cfg, a, h, logger)
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:           cfg.APIAddr,
			DevMode:        cfg.DevMode,
			APIKey:         cfg.APIKey,
			BuildRateLimit: cfg.BuildRateLimit,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr":       cfg.APIAddr,
		"rpc":        cfg.RPCUrl,
		"redis":      a.Redis != nil,
		"clickhouse": a.Audit != nil,
	}).Info("api server starting")

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("server did not close cleanly")
	}
}

func wireAI(ctx context.Context, cfg *config.Config, a *app.App, h *server.Handlers, logger *logrus.Logger) {
	llm, err := ai.NewOpenRouterLLM(cfg.OpenRouterAPIKey, cfg.AIModel)
	if err != nil {
		logger.WithError(err).Warn("failed to initialize LLM")
		return
	}

	assistant, err := ai.NewAssistant(ai.AssistantConfig{
		LLM:    llm,
		Tools:  tools.All(a.Gateway),
		Logger: logger,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to initialize assistant")
	} else {
		h.Assistant = assistant
	}

	if a.Audit == nil {
		return
	}
	analyst, err := ai.NewAnalyst(ctx, ai.AnalystConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		LLM:                llm,
		Logger:             logger,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to initialize audit analyst")
		return
	}
	h.Analyst = analyst
	go func() {
		<-ctx.Done()
		_ = analyst.Close()
	}()
}
