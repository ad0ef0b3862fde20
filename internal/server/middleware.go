package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/indioreservas/indiobot/internal/logging"
)

// HeaderRequestID is the request correlation header.
const HeaderRequestID = "X-Request-ID"

const contextKeyRequestID = "request_id"

// requestIDMiddleware accepts a caller-supplied correlation ID or assigns a
// fresh one, and echoes it back on the response.
func (s *APIServer) requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := c.Request().Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKeyRequestID, id)
		c.Response().Header().Set(HeaderRequestID, id)
		return next(c)
	}
}

// recoverMiddleware converts handler panics into 500 responses. The panic
// value and stack stay in the server log.
func (s *APIServer) recoverMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("handler panic",
					slog.String("path", c.Request().URL.Path),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}
		}()
		return next(c)
	}
}

// observeMiddleware records one log line and the HTTP metrics per request.
func (s *APIServer) observeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		start := time.Now()
		err := next(c)

		resp, _ := echo.UnwrapResponse(c.Response())
		status := resp.Status
		if err != nil {
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			} else {
				status = http.StatusInternalServerError
			}
		}

		duration := time.Since(start)
		req := c.Request()

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(req.Context(), req.Method, req.URL.Path, status, duration)
		}

		s.logger.Info("request handled",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", status),
			slog.Duration(logging.KeyDuration, duration),
			slog.String(contextKeyRequestID, requestID(c)))

		return err
	}
}

// requestID returns the correlation ID assigned by requestIDMiddleware.
func requestID(c *echo.Context) string {
	if id, ok := c.Get(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// clientIdentity is the rate-limit key for a request: the remote client's
// network address as echo resolves it behind proxies.
func clientIdentity(c *echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return fmt.Sprintf("unknown:%s", c.Request().RemoteAddr)
}
