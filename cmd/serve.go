package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/indioreservas/indiobot/internal/calendar"
	"github.com/indioreservas/indiobot/internal/chat"
	"github.com/indioreservas/indiobot/internal/gemini"
	"github.com/indioreservas/indiobot/internal/google"
	"github.com/indioreservas/indiobot/internal/instrumentation"
	"github.com/indioreservas/indiobot/internal/server"
)

type serveOptions struct {
	httpAddr       string
	metricsEnabled bool
	metricsAddr    string

	geminiAPIKey string
	geminiModel  string
	promptFile   string

	googleClientID     string
	googleClientSecret string
	googleRefreshToken string
	calendarID         string
	operatorEmail      string

	throttleWindow time.Duration
	envFile        string
	debug          bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat and calendar HTTP API",
		Long: `Start the HTTP API server.

The server exposes POST /chat for the conversational cycle, direct
action endpoints under /calendar/, a GET /debug/calendar credential
check, and /healthz and /readyz probes. Prometheus metrics are served
on a separate listener when enabled.

Configuration is read from flags first, then from environment
variables. A .env file in the working directory is loaded if present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.httpAddr, "http-addr", "", "address for the API server (default \":8000\", env HTTP_ADDR)")
	flags.BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "serve Prometheus metrics on a dedicated listener")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "address for the metrics server (default \":9090\", env METRICS_ADDR)")
	flags.StringVar(&opts.geminiAPIKey, "gemini-api-key", "", "Gemini API key (env GOOGLE_API_KEY or GEMINI_API_KEY)")
	flags.StringVar(&opts.geminiModel, "gemini-model", "", "Gemini model name (default \""+gemini.DefaultModel+"\", env GEMINI_MODEL)")
	flags.StringVar(&opts.promptFile, "prompt-file", "", "path to the system prompt file (default \""+gemini.DefaultPromptPath+"\", env SYSTEM_PROMPT_FILE)")
	flags.StringVar(&opts.googleClientID, "google-client-id", "", "OAuth client ID (env GOOGLE_CLIENT_ID)")
	flags.StringVar(&opts.googleClientSecret, "google-client-secret", "", "OAuth client secret (env GOOGLE_CLIENT_SECRET)")
	flags.StringVar(&opts.googleRefreshToken, "google-refresh-token", "", "OAuth refresh token (env GOOGLE_REFRESH_TOKEN)")
	flags.StringVar(&opts.calendarID, "calendar-id", "", "calendar to operate on (default \"primary\", env GOOGLE_CALENDAR_ID)")
	flags.StringVar(&opts.operatorEmail, "operator-email", "", "operator invited to every created event (env OPERATOR_EMAIL)")
	flags.DurationVar(&opts.throttleWindow, "throttle-window", 0, "minimum spacing between chat requests per client (default 30s, env THROTTLE_WINDOW)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading environment variables")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	return cmd
}

// resolve fills unset options from the environment and applies defaults.
// Flags win over environment variables, which win over defaults.
func (o *serveOptions) resolve() error {
	if o.httpAddr == "" {
		o.httpAddr = envOr("HTTP_ADDR", server.DefaultAddr)
	}
	if o.metricsAddr == "" {
		o.metricsAddr = envOr("METRICS_ADDR", server.DefaultMetricsAddr)
	}
	if o.geminiAPIKey == "" {
		o.geminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if o.geminiAPIKey == "" {
		o.geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if o.geminiModel == "" {
		o.geminiModel = envOr("GEMINI_MODEL", gemini.DefaultModel)
	}
	if o.promptFile == "" {
		o.promptFile = envOr("SYSTEM_PROMPT_FILE", gemini.DefaultPromptPath)
	}
	if o.googleClientID == "" {
		o.googleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if o.googleClientSecret == "" {
		o.googleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if o.googleRefreshToken == "" {
		o.googleRefreshToken = os.Getenv("GOOGLE_REFRESH_TOKEN")
	}
	if o.calendarID == "" {
		o.calendarID = envOr("GOOGLE_CALENDAR_ID", "primary")
	}
	if o.operatorEmail == "" {
		o.operatorEmail = envOr("OPERATOR_EMAIL", chat.DefaultOperatorEmail)
	}
	if o.throttleWindow == 0 {
		if raw := os.Getenv("THROTTLE_WINDOW"); raw != "" {
			window, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid THROTTLE_WINDOW %q: %w", raw, err)
			}
			o.throttleWindow = window
		} else {
			o.throttleWindow = chat.DefaultThrottleWindow
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func runServe(opts *serveOptions) error {
	// Load the dotenv file before resolving options so its values are
	// visible as environment variables. A missing file is not an error.
	if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
	}
	if err := opts.resolve(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	var metricsServer *server.MetricsServer
	if opts.metricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		ready := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
		}()
		select {
		case <-ready:
			logger.Info("metrics server listening", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server did not become ready in time")
		}
	}

	creds := google.Credentials{
		ClientID:     opts.googleClientID,
		ClientSecret: opts.googleClientSecret,
		RefreshToken: opts.googleRefreshToken,
	}
	calendarClient, err := calendar.NewClient(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}
	gateway := calendar.NewInstrumentedGateway(calendarClient, provider.Metrics())

	systemPrompt := gemini.LoadSystemPrompt(opts.promptFile, logger)
	model, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:       opts.geminiAPIKey,
		Model:        opts.geminiModel,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	limiter := chat.NewLimiter(opts.throttleWindow)
	dispatcher := chat.NewDispatcher(gateway, opts.calendarID, opts.operatorEmail, logger)
	orchestrator := chat.NewOrchestrator(limiter, model, dispatcher, logger).
		WithMetrics(provider.Metrics(), opts.geminiModel)

	api, err := server.NewAPIServer(server.Config{
		Addr:         opts.httpAddr,
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Gateway:      gateway,
		Logger:       logger,
		Metrics:      provider.Metrics(),
		Audit:        instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging),
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", opts.httpAddr, "model", opts.geminiModel, "calendar_id", opts.calendarID)
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
