package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrAction    = "action"
	attrModel     = "model"
	attrResult    = "result"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Chat pipeline metrics
	chatRequestsTotal    metric.Int64Counter
	chatRequestDuration  metric.Float64Histogram
	rateLimitWaitSeconds metric.Float64Histogram

	// Model call metrics
	modelCallsTotal   metric.Int64Counter
	modelCallDuration metric.Float64Histogram

	// Calendar API metrics
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram

	// Dispatched action metrics
	actionsDispatchedTotal metric.Int64Counter

	// OAuth metrics
	oauthTokenRefreshTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.chatRequestsTotal, err = meter.Int64Counter(
		"chat_requests_total",
		metric.WithDescription("Total number of chat turns processed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_requests_total counter: %w", err)
	}

	m.chatRequestDuration, err = meter.Float64Histogram(
		"chat_request_duration_seconds",
		metric.WithDescription("End-to-end chat turn duration in seconds, including throttle wait"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_request_duration_seconds histogram: %w", err)
	}

	m.rateLimitWaitSeconds, err = meter.Float64Histogram(
		"rate_limit_wait_seconds",
		metric.WithDescription("Time a chat turn spent waiting on the per-client throttle"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0, 1.0, 5.0, 10.0, 15.0, 20.0, 25.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_wait_seconds histogram: %w", err)
	}

	m.modelCallsTotal, err = meter.Int64Counter(
		"model_calls_total",
		metric.WithDescription("Total number of language model calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model_calls_total counter: %w", err)
	}

	m.modelCallDuration, err = meter.Float64Histogram(
		"model_call_duration_seconds",
		metric.WithDescription("Language model call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model_call_duration_seconds histogram: %w", err)
	}

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_api_operations_total",
		metric.WithDescription("Total number of Google Calendar API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		"calendar_api_operation_duration_seconds",
		metric.WithDescription("Google Calendar API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operation_duration_seconds histogram: %w", err)
	}

	m.actionsDispatchedTotal, err = meter.Int64Counter(
		"actions_dispatched_total",
		metric.WithDescription("Total number of calendar actions dispatched from chat turns"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create actions_dispatched_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordChatRequest records one processed chat turn. Status is "success" or
// "error"; duration covers the whole turn including any throttle wait.
func (m *Metrics) RecordChatRequest(ctx context.Context, status string, duration time.Duration) {
	if m.chatRequestsTotal == nil || m.chatRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.chatRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.chatRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRateLimitWait records how long a chat turn was held by the throttle.
// Zero waits are recorded too so the histogram reflects all turns.
func (m *Metrics) RecordRateLimitWait(ctx context.Context, wait time.Duration) {
	if m.rateLimitWaitSeconds == nil {
		return // Instrumentation not initialized
	}

	m.rateLimitWaitSeconds.Record(ctx, wait.Seconds())
}

// RecordModelCall records a language model call with the model name, status,
// and duration.
func (m *Metrics) RecordModelCall(ctx context.Context, model, status string, duration time.Duration) {
	if m.modelCallsTotal == nil || m.modelCallDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrModel, model),
		attribute.String(attrStatus, status),
	}

	m.modelCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.modelCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCalendarOperation records a Google Calendar API operation.
//
// Parameters:
//   - operation: Operation type (list, get, create, update, delete, verify)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.calendarOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordActionDispatched records a calendar action dispatched from a chat turn.
func (m *Metrics) RecordActionDispatched(ctx context.Context, action, status string) {
	if m.actionsDispatchedTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrAction, action),
		attribute.String(attrStatus, status),
	}

	m.actionsDispatchedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
