package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/envelope"
)

// RequestTimeout puts a deadline on every request context. The handler runs
// on the request goroutine and its queries observe the cancelled context and
// roll back. When the deadline has passed by the time the handler returns and
// nothing was written, the caller gets a 504 envelope. Health checks are
// exempt.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/health") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if c.Response().Committed {
				return err
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return envelope.Fail(c, http.StatusGatewayTimeout, "timeout", "request processing exceeded the allowed time limit")
			}
			return err
		}
	}
}
