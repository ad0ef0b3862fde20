package calendar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/indioreservas/indiobot/internal/instrumentation"
)

// InstrumentedGateway wraps a Gateway and records an OpenTelemetry span and
// metrics for every calendar operation.
type InstrumentedGateway struct {
	next    Gateway
	metrics *instrumentation.Metrics
}

var _ Gateway = (*InstrumentedGateway)(nil)

// NewInstrumentedGateway wraps next with instrumentation. A nil metrics
// recorder disables metric recording but keeps the spans.
func NewInstrumentedGateway(next Gateway, metrics *instrumentation.Metrics) *InstrumentedGateway {
	return &InstrumentedGateway{next: next, metrics: metrics}
}

func (g *InstrumentedGateway) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationCreate)
	defer span.End()

	start := time.Now()
	summary, err := g.next.CreateEvent(ctx, calendarID, input)
	g.finish(ctx, span, instrumentation.OperationCreate, start, err)
	if err == nil && summary != nil {
		span.SetAttributes(attribute.String(instrumentation.SpanAttrEventID, summary.ID))
	}
	return summary, err
}

func (g *InstrumentedGateway) ListEvents(ctx context.Context, calendarID string, query ListQuery) ([]EventSummary, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationList)
	defer span.End()

	start := time.Now()
	events, err := g.next.ListEvents(ctx, calendarID, query)
	g.finish(ctx, span, instrumentation.OperationList, start, err)
	return events, err
}

func (g *InstrumentedGateway) GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationGet,
		attribute.String(instrumentation.SpanAttrEventID, eventID))
	defer span.End()

	start := time.Now()
	summary, err := g.next.GetEvent(ctx, calendarID, eventID)
	g.finish(ctx, span, instrumentation.OperationGet, start, err)
	return summary, err
}

func (g *InstrumentedGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (*EventSummary, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationUpdate,
		attribute.String(instrumentation.SpanAttrEventID, eventID))
	defer span.End()

	start := time.Now()
	summary, err := g.next.UpdateEvent(ctx, calendarID, eventID, patch)
	g.finish(ctx, span, instrumentation.OperationUpdate, start, err)
	return summary, err
}

func (g *InstrumentedGateway) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationDelete,
		attribute.String(instrumentation.SpanAttrEventID, eventID))
	defer span.End()

	start := time.Now()
	err := g.next.DeleteEvent(ctx, calendarID, eventID)
	g.finish(ctx, span, instrumentation.OperationDelete, start, err)
	return err
}

func (g *InstrumentedGateway) Verify(ctx context.Context) error {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationVerify)
	defer span.End()

	start := time.Now()
	err := g.next.Verify(ctx)
	g.finish(ctx, span, instrumentation.OperationVerify, start, err)

	if g.metrics != nil {
		result := instrumentation.OAuthResultSuccess
		if err != nil {
			result = instrumentation.OAuthResultFailure
		}
		g.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
	return err
}

func (g *InstrumentedGateway) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	if g.metrics != nil {
		g.metrics.RecordCalendarOperation(ctx, operation, status, time.Since(start))
	}
}
