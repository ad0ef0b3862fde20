package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/indioreservas/indiobot/internal/calendar"
	"github.com/indioreservas/indiobot/internal/chat"
	"github.com/indioreservas/indiobot/internal/instrumentation"
	"github.com/indioreservas/indiobot/internal/logging"
)

const (
	// DefaultAddr is the default address for the API server.
	DefaultAddr = ":8000"

	// DefaultReadHeaderTimeout bounds how long a client may take to send
	// request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the keep-alive idle timeout.
	DefaultIdleTimeout = 60 * time.Second
)

// Config holds configuration for the API server.
type Config struct {
	// Addr is the address to bind the API server to (e.g., ":8000").
	Addr string

	// Orchestrator runs the chat cycle for POST /chat.
	Orchestrator *chat.Orchestrator

	// Dispatcher serves the direct /calendar/* action endpoints.
	Dispatcher *chat.Dispatcher

	// Gateway is used by GET /debug/calendar for the credential round trip.
	Gateway calendar.Gateway

	// Logger receives request logs; nil disables them.
	Logger *slog.Logger

	// Metrics records HTTP and chat metrics; nil disables recording.
	Metrics *instrumentation.Metrics

	// Audit receives the dispatched-action audit trail; nil disables it.
	Audit *instrumentation.AuditLogger
}

// APIServer is the JSON/HTTP surface of the orchestrator.
type APIServer struct {
	echo       *echo.Echo
	httpServer *http.Server
	health     *HealthChecker

	orchestrator *chat.Orchestrator
	dispatcher   *chat.Dispatcher
	gateway      calendar.Gateway
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
	audit        *instrumentation.AuditLogger
}

// NewAPIServer builds the server and registers all routes and middleware.
func NewAPIServer(config Config) (*APIServer, error) {
	if config.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if config.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if config.Gateway == nil {
		return nil, errors.New("calendar gateway is required")
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	s := &APIServer{
		echo:         echo.New(),
		health:       NewHealthChecker(),
		orchestrator: config.Orchestrator,
		dispatcher:   config.Dispatcher,
		gateway:      config.Gateway,
		logger:       logging.WithComponent(config.Logger, "server"),
		metrics:      config.Metrics,
		audit:        config.Audit,
	}

	s.echo.HTTPErrorHandler = s.errorHandler
	s.echo.Use(s.requestIDMiddleware)
	s.echo.Use(s.recoverMiddleware)
	s.echo.Use(s.observeMiddleware)

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.echo,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	return s, nil
}

func (s *APIServer) registerRoutes() {
	s.echo.POST("/chat", s.handleChat)

	g := s.echo.Group("/calendar")
	g.POST("/create", s.handleCalendarCreate)
	g.POST("/find", s.handleCalendarFind)
	g.POST("/update", s.handleCalendarUpdate)
	g.POST("/cancel", s.handleCalendarCancel)

	s.echo.GET("/debug/calendar", s.handleDebugCalendar)
	s.echo.GET("/healthz", s.health.Liveness)
	s.echo.GET("/readyz", s.health.Readiness)
}

// Start runs the server until ListenAndServe returns. Call in a goroutine
// for non-blocking operation.
func (s *APIServer) Start() error {
	s.health.SetReady(true)
	s.logger.Info("starting api server", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener. The readiness
// probe starts failing immediately so load balancers stop routing here.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}

// Health exposes the health checker, mainly for tests and the serve command.
func (s *APIServer) Health() *HealthChecker {
	return s.health
}

// ServeHTTP lets tests drive the full middleware and routing stack without
// a real listener.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// errorDetail is the error body contract: HTTP errors surface as
// {"detail": "..."} with internals kept server-side.
type errorDetail struct {
	Detail string `json:"detail"`
}

func (s *APIServer) errorHandler(c *echo.Context, err error) {
	if resp, _ := echo.UnwrapResponse(c.Response()); resp.Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "internal server error"

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if httpErr.Message != "" {
			detail = httpErr.Message
		}
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", c.Request().URL.Path),
			logging.Err(err))
	}

	if writeErr := c.JSON(code, errorDetail{Detail: detail}); writeErr != nil {
		s.logger.Error("failed to write error response", logging.Err(writeErr))
	}
}
