package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
)

// ErrorJSON returns an HTTP error handler that renders framework errors
// (auth, body limit, unknown method) in the API's error shape.
func ErrorJSON(h *Handlers) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  apierr.CodeForStatus(he.Code),
			})
			return
		}

		h.Logger.WithError(err).WithField("path", c.Path()).Error("unhandled error")
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  apierr.CodeInternal,
		})
	}
}
