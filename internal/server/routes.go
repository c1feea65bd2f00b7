package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = ErrorJSON(h)

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.POST("/quote", h.Quote)

	swap := v1.Group("/swap")
	if cfg.BuildRateLimit > 0 {
		burst := cfg.BuildBurst
		if burst <= 0 {
			burst = int(cfg.BuildRateLimit) + 1
		}
		swap.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.BuildRateLimit),
				Burst:     burst,
				ExpiresIn: 2 * time.Minute,
			}),
			DenyHandler: func(c echo.Context, _ string, _ error) error {
				return h.err(c, http.StatusTooManyRequests, apierr.CodeRateLimited, "rate limit exceeded", nil)
			},
		}))
	}
	swap.POST("/instruction", h.BuildSwap)

	poolGroup := v1.Group("/pools")
	poolGroup.GET("/:address", h.Pool)
	poolGroup.POST("/:address/quote", h.PoolQuote)

	aiGroup := v1.Group("/ai")
	aiGroup.POST("/ask", h.AIAsk)
	aiGroup.POST("/analyze", h.AIAnalyze)

	// Feature flags CRUD endpoints
	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.POST("", h.FlagsUpsert)
	flagGroup.GET("/:key", h.FlagsGet)
	flagGroup.PUT("/:key", h.FlagsUpdate)
	flagGroup.DELETE("/:key", h.FlagsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return h.err(c, http.StatusNotFound, apierr.CodeNotFound, "not found", nil)
	})
}
