package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/indioreservas/indiobot/internal/calendar"
	"github.com/indioreservas/indiobot/internal/logging"
	"github.com/indioreservas/indiobot/internal/timeutil"
)

const (
	// DefaultOperatorEmail is the notification address attached to every
	// created event so the venue sees each reservation land.
	DefaultOperatorEmail = "indioreservas@gmail.com"

	// DefaultMaxFindResults bounds how many events a find returns.
	DefaultMaxFindResults = 10

	statusSuccess = "success"
	statusError   = "error"
)

// EventResult is the response shape for create and update operations.
type EventResult struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Summary string `json:"summary,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventItem is one entry of a find result.
type EventItem struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// FindResult is the response shape for the find operation.
type FindResult struct {
	Events []EventItem `json:"events"`
}

// StatusResult is the response shape for cancel and for error outcomes.
type StatusResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Dispatcher maps interpreted actions onto calendar gateway calls and
// shapes the results into the outbound response contract. Gateway failures
// come back as error results, never as Go errors; the orchestrator has
// nothing useful to do with them beyond returning them to the caller.
type Dispatcher struct {
	gateway       calendar.Gateway
	calendarID    string
	operatorEmail string
	logger        *slog.Logger
	now           func() time.Time
}

// NewDispatcher creates a Dispatcher. Empty calendarID and operatorEmail
// fall back to the defaults; a nil logger disables diagnostics.
func NewDispatcher(gateway calendar.Gateway, calendarID, operatorEmail string, logger *slog.Logger) *Dispatcher {
	if calendarID == "" {
		calendarID = calendar.DefaultCalendarID
	}
	if operatorEmail == "" {
		operatorEmail = DefaultOperatorEmail
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		gateway:       gateway,
		calendarID:    calendarID,
		operatorEmail: operatorEmail,
		logger:        logging.WithComponent(logger, "dispatcher"),
		now:           time.Now,
	}
}

// Dispatch routes a typed action to the matching operation.
func (d *Dispatcher) Dispatch(ctx context.Context, action *Action) any {
	switch action.Kind {
	case ActionCreate:
		return d.Create(ctx, *action.Create)
	case ActionFind:
		return d.Find(ctx, *action.Find)
	case ActionUpdate:
		return d.Update(ctx, *action.Update)
	case ActionCancel:
		return d.Cancel(ctx, *action.Cancel)
	}
	// The interpreter only emits known kinds; this is unreachable unless a
	// caller constructs an Action by hand.
	return StatusResult{Status: statusError, Message: "Acción desconocida."}
}

// Create inserts a new event with the operator notification attendee
// attached in addition to any caller-specified attendees.
func (d *Dispatcher) Create(ctx context.Context, payload CreatePayload) any {
	if payload.Summary == "" || payload.Start == "" || payload.End == "" {
		return StatusResult{Status: statusError, Message: "Faltan datos para crear el evento (título, inicio o fin)."}
	}

	start, err := timeutil.ParseInstant(payload.Start)
	if err != nil {
		return StatusResult{Status: statusError, Message: "El formato de la fecha y hora de inicio no es válido."}
	}
	end, err := timeutil.ParseInstant(payload.End)
	if err != nil {
		return StatusResult{Status: statusError, Message: "El formato de la fecha y hora de fin no es válido."}
	}

	created, err := d.gateway.CreateEvent(ctx, d.calendarID, calendar.EventInput{
		Summary:     payload.Summary,
		Description: payload.Description,
		Start:       start,
		End:         end,
		Attendees:   d.withOperator(payload.Attendees),
	})
	if err != nil {
		d.logger.Error("create event failed", logging.Operation("create"), logging.Err(err))
		return StatusResult{Status: statusError, Message: "Error de la API de Google al crear el evento."}
	}

	d.logger.Info("event created", logging.Operation("create"), logging.EventID(created.ID))
	return EventResult{
		Status:  statusSuccess,
		ID:      created.ID,
		Summary: created.Summary,
		Start:   formatInstant(created.Start),
		End:     formatInstant(created.End),
	}
}

// Find lists events in a time window, optionally filtered by free text.
// An absent lower bound defaults to now so results are forward-looking
// unless explicitly overridden.
func (d *Dispatcher) Find(ctx context.Context, payload FindPayload) any {
	timeMin := d.now().UTC()
	if payload.TimeMin != "" {
		t, err := timeutil.ParseInstant(payload.TimeMin)
		if err != nil {
			return StatusResult{Status: statusError, Message: "El formato de la fecha y hora de inicio no es válido."}
		}
		timeMin = t
	}

	var timeMax time.Time
	if payload.TimeMax != "" {
		// An unparseable upper bound is dropped rather than rejected; the
		// window simply stays open-ended.
		if t, err := timeutil.ParseInstant(payload.TimeMax); err == nil {
			timeMax = t
		}
	}

	maxResults := payload.MaxResults
	if maxResults <= 0 || maxResults > DefaultMaxFindResults {
		maxResults = DefaultMaxFindResults
	}

	events, err := d.gateway.ListEvents(ctx, d.calendarID, calendar.ListQuery{
		TimeMin:    timeMin,
		TimeMax:    timeMax,
		Query:      payload.Query,
		MaxResults: maxResults,
	})
	if err != nil {
		d.logger.Error("list events failed", logging.Operation("find"), logging.Err(err))
		return StatusResult{Status: statusError, Message: "Error de la API de Google al buscar eventos. Revisa que las fechas sean correctas."}
	}

	result := FindResult{Events: make([]EventItem, 0, len(events))}
	for _, event := range events {
		result.Events = append(result.Events, EventItem{
			ID:      event.ID,
			Summary: event.Summary,
			Start:   formatInstant(event.Start),
			End:     formatInstant(event.End),
		})
	}
	return result
}

// Update applies a partial patch to an existing event. Omitted fields keep
// their stored values.
func (d *Dispatcher) Update(ctx context.Context, payload UpdatePayload) any {
	if payload.EventID == "" {
		return StatusResult{Status: statusError, Message: "Falta el identificador del evento a modificar."}
	}

	var patch calendar.EventPatch
	if payload.NewStart != nil {
		t, err := timeutil.ParseInstant(*payload.NewStart)
		if err != nil {
			return StatusResult{Status: statusError, Message: "El formato de la nueva fecha de inicio no es válido."}
		}
		patch.Start = &t
	}
	if payload.NewEnd != nil {
		t, err := timeutil.ParseInstant(*payload.NewEnd)
		if err != nil {
			return StatusResult{Status: statusError, Message: "El formato de la nueva fecha de fin no es válido."}
		}
		patch.End = &t
	}
	patch.Summary = payload.NewSummary
	patch.Description = payload.NewDesc

	updated, err := d.gateway.UpdateEvent(ctx, d.calendarID, payload.EventID, patch)
	if err != nil {
		d.logger.Error("update event failed",
			logging.Operation("update"), logging.EventID(payload.EventID), logging.Err(err))
		return StatusResult{Status: statusError, Message: "Error de la API de Google al actualizar el evento."}
	}

	d.logger.Info("event updated", logging.Operation("update"), logging.EventID(updated.ID))
	return EventResult{
		Status:  statusSuccess,
		ID:      updated.ID,
		Summary: updated.Summary,
		Start:   formatInstant(updated.Start),
		End:     formatInstant(updated.End),
	}
}

// Cancel deletes an event. A missing or already-deleted event counts as
// success; the gateway handles the idempotency remap.
func (d *Dispatcher) Cancel(ctx context.Context, payload CancelPayload) any {
	if payload.EventID == "" {
		return StatusResult{Status: statusError, Message: "Falta el identificador del evento a cancelar."}
	}

	if err := d.gateway.DeleteEvent(ctx, d.calendarID, payload.EventID); err != nil {
		d.logger.Error("cancel event failed",
			logging.Operation("cancel"), logging.EventID(payload.EventID), logging.Err(err))
		return StatusResult{Status: statusError, Message: "Error de la API de Google al cancelar el evento."}
	}

	d.logger.Info("event cancelled", logging.Operation("cancel"), logging.EventID(payload.EventID))
	return StatusResult{Status: statusSuccess, Message: "El evento ha sido cancelado exitosamente."}
}

// withOperator appends the operator notification address unless the caller
// already listed it.
func (d *Dispatcher) withOperator(attendees []string) []string {
	for _, email := range attendees {
		if email == d.operatorEmail {
			return attendees
		}
	}
	return append(attendees, d.operatorEmail)
}

// formatInstant renders an instant in the fixed display timezone.
func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(timeutil.DisplayLocation()).Format(time.RFC3339)
}
