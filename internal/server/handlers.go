package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/ai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/flags"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/gateway"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
)

// FlagStore is the flags CRUD surface used by the API.
type FlagStore interface {
	Upsert(ctx context.Context, key string, value bool) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
}

// Assistant answers free-form swap questions using the gateway tools.
type Assistant interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Analyst answers questions about recorded gateway traffic.
type Analyst interface {
	Ask(ctx context.Context, question string) (*ai.AskResult, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Gateway   *gateway.Service
	Flags     FlagStore                              // optional, flags routes answer 503 without it
	Assistant Assistant                              // optional
	Analyst   Analyst                                // optional
	Checks    map[string]func(context.Context) error // dependency health checks
	DevMode   bool                                   // include error details in responses
	Logger    *logrus.Logger
}

// err returns a standardized JSON error response
func (h *Handlers) err(c echo.Context, status int, code, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(status, resp)
}

// fail maps a domain error onto the error response.
func (h *Handlers) fail(c echo.Context, err error) error {
	status, resp := apierr.Classify(err)
	if status >= http.StatusInternalServerError {
		h.Logger.WithError(err).WithFields(logrus.Fields{
			"path":   c.Path(),
			"status": status,
		}).Error("request failed")
	}
	return c.JSON(status, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// badJSON reports an undecodable body. A value of the wrong JSON type is
// reported against its field.
func (h *Handlers) badJSON(c echo.Context, err error) error {
	resp := ErrorResponse{Error: "invalid json", Code: apierr.CodeValidation}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		resp.Field = jsonField(typeErr.Field)
		resp.Error = fmt.Sprintf("%s: expected %s, got %s", resp.Field, typeErr.Type, typeErr.Value)
	}
	if h.DevMode {
		resp.Details = map[string]any{"err": err.Error()}
	}
	return c.JSON(http.StatusBadRequest, resp)
}

// jsonField drops the Go names of embedded structs that encoding/json puts
// in front of the JSON path.
func jsonField(path string) string {
	parts := strings.Split(path, ".")
	for len(parts) > 1 && parts[0] != "" && unicode.IsUpper([]rune(parts[0])[0]) {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}

// Health reports process liveness plus the state of configured dependencies.
func (h *Handlers) Health(c echo.Context) error {
	if len(h.Checks) == 0 {
		return c.JSON(http.StatusOK, HealthResponse{OK: true})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{OK: true, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			resp.OK = false
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}

// Quote computes a constant-product quote from explicit reserves.
func (h *Handlers) Quote(c echo.Context) error {
	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return h.badJSON(c, err)
	}

	out, err := h.Gateway.Quote(c.Request().Context(), models.SourceHTTP, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// BuildSwap validates the request and returns the unsigned swap instruction.
func (h *Handlers) BuildSwap(c echo.Context) error {
	var req BuildSwapRequest
	if err := c.Bind(&req); err != nil {
		return h.badJSON(c, err)
	}

	ix, err := h.Gateway.BuildSwap(c.Request().Context(), models.SourceHTTP, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ix.Wire())
}

// Pool returns the decoded pool account with its current reserves.
func (h *Handlers) Pool(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	state, err := h.Gateway.Pool(ctx, c.Param("address"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, gateway.NewPoolResponse(state))
}

// PoolQuote prices a trade against the pool's live reserves.
func (h *Handlers) PoolQuote(c echo.Context) error {
	var req PoolQuoteRequest
	if err := c.Bind(&req); err != nil {
		return h.badJSON(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	q, err := h.Gateway.PoolQuote(ctx, models.SourceHTTP, c.Param("address"), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, gateway.NewPoolQuoteResponse(q))
}

func (h *Handlers) flagsUnavailable(c echo.Context) error {
	return h.err(c, http.StatusServiceUnavailable, apierr.CodeUnavailable, "flags store is not configured", nil)
}

func (h *Handlers) invalidKey(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid key",
		Code:  apierr.CodeValidation,
		Field: "key",
	})
}

// FlagsUpsert creates or updates a feature flag with the given key and value
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsUnavailable(c)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.badJSON(c, err)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.invalidKey(c)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates the flag named in the path
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsUnavailable(c)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.invalidKey(c)
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.badJSON(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a feature flag by its key
func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsUnavailable(c)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.invalidKey(c)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all feature flags in the system
func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsUnavailable(c)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a feature flag by its key
func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsUnavailable(c)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.invalidKey(c)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AIAsk runs the tool-using assistant on a question.
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.Assistant == nil {
		return h.err(c, http.StatusServiceUnavailable, apierr.CodeUnavailable, "assistant is not configured", nil)
	}
	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.badJSON(c, err)
	}
	if req.Question == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is required", Code: apierr.CodeValidation, Field: "question"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	answer, err := h.Assistant.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusBadGateway, apierr.CodeInternal, "assistant failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, AIAskResponse{Answer: answer})
}

// AIAnalyze answers a question about recorded traffic with NL→SQL.
func (h *Handlers) AIAnalyze(c echo.Context) error {
	if h.Analyst == nil {
		return h.err(c, http.StatusServiceUnavailable, apierr.CodeUnavailable, "analyst is not configured", nil)
	}
	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.badJSON(c, err)
	}
	if req.Question == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is required", Code: apierr.CodeValidation, Field: "question"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	res, err := h.Analyst.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusBadGateway, apierr.CodeInternal, "analysis failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, AIAskResponse{Answer: res.Answer, SQL: res.SQL})
}
