package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ActionRecord captures everything about one dispatched calendar action for
// the audit trail.
//
// ClientID holds the raw caller identity (typically an IP address) and is
// only written to logs when the audit logger is configured to include it;
// ClientHash is always safe to log.
type ActionRecord struct {
	// Action kind (create, find, update, cancel)
	Action string

	// Caller identity
	ClientID   string
	ClientHash string

	// Target information
	EventID         string
	AttendeeDomains []string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// Status returns "success" or "error" based on the Success field.
func (ar *ActionRecord) Status() string {
	if ar.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes with the anonymized client identity.
func (ar *ActionRecord) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", ar.Action),
		slog.String("client_hash", ar.ClientHash),
		slog.Duration("duration", ar.Duration),
		slog.Bool("success", ar.Success),
	}

	if ar.EventID != "" {
		attrs = append(attrs, slog.String("event_id", ar.EventID))
	}
	if len(ar.AttendeeDomains) > 0 {
		attrs = append(attrs, slog.Any("attendee_domains", ar.AttendeeDomains))
	}
	if ar.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ar.TraceID))
	}
	if ar.Error != "" {
		attrs = append(attrs, slog.String("error", ar.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes including the raw client identity.
// Route these records to storage with appropriate access controls.
func (ar *ActionRecord) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", ar.Action),
		slog.String("client", ar.ClientID),
		slog.String("client_hash", ar.ClientHash),
		slog.Duration("duration", ar.Duration),
		slog.Bool("success", ar.Success),
	}

	if ar.EventID != "" {
		attrs = append(attrs, slog.String("event_id", ar.EventID))
	}
	if len(ar.AttendeeDomains) > 0 {
		attrs = append(attrs, slog.Any("attendee_domains", ar.AttendeeDomains))
	}
	if ar.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ar.TraceID))
	}
	if ar.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ar.SpanID))
	}
	if ar.Error != "" {
		attrs = append(attrs, slog.String("error", ar.Error))
	}

	return attrs
}

// NewActionRecord creates a new ActionRecord with timing started.
// Call Complete() when the action finishes.
func NewActionRecord(action string) *ActionRecord {
	return &ActionRecord{
		Action:    action,
		StartTime: time.Now(),
	}
}

// WithClient sets the caller identity. The hash is the anonymized form
// produced by the logging package.
func (ar *ActionRecord) WithClient(clientID, clientHash string) *ActionRecord {
	ar.ClientID = clientID
	ar.ClientHash = clientHash
	return ar
}

// WithEvent sets the target event identifier.
func (ar *ActionRecord) WithEvent(eventID string) *ActionRecord {
	ar.EventID = eventID
	return ar
}

// WithAttendees reduces attendee emails to domains and records them.
func (ar *ActionRecord) WithAttendees(emails []string) *ActionRecord {
	ar.AttendeeDomains = AttendeeDomains(emails)
	return ar
}

// WithSpanContext extracts trace context from the current span.
func (ar *ActionRecord) WithSpanContext(ctx context.Context) *ActionRecord {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ar.TraceID = span.SpanContext().TraceID().String()
		ar.SpanID = span.SpanContext().SpanID().String()
	}
	return ar
}

// Complete marks the action as finished and calculates duration.
// Returns the same ActionRecord for method chaining.
func (ar *ActionRecord) Complete(success bool, err error) *ActionRecord {
	ar.Duration = time.Since(ar.StartTime)
	ar.Success = success
	if err != nil {
		ar.Error = err.Error()
	}
	return ar
}

// AuditLogger writes the action audit trail through slog.
type AuditLogger struct {
	logger          *slog.Logger
	includeClientID bool
	enabled         bool
}

// NewAuditLogger creates an AuditLogger with the given configuration.
// By default raw client identifiers are excluded from the records.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:          logger,
		includeClientID: config.IncludeClientID,
		enabled:         config.Enabled,
	}
}

// LogAction logs one dispatched action. Raw client identifiers are only
// included when the logger was configured for them.
func (al *AuditLogger) LogAction(ar *ActionRecord) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includeClientID {
		attrs = ar.LogAuditAttrs()
	} else {
		attrs = ar.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ar.Success {
		al.logger.Info("action_dispatched", args...)
	} else {
		al.logger.Warn("action_failed", args...)
	}
}
