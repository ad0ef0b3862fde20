package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/indioreservas/indiobot/internal/chat"
	"github.com/indioreservas/indiobot/internal/instrumentation"
	"github.com/indioreservas/indiobot/internal/logging"
)

// handleChat runs one orchestration cycle. The rate-limit key is the
// client's network identity, so each caller gets its own throttle floor.
func (s *APIServer) handleChat(c *echo.Context) error {
	var req chat.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	ctx := c.Request().Context()
	clientKey := clientIdentity(c)
	start := time.Now()

	ctx, span := instrumentation.StartChatSpan(ctx, logging.AnonymizeClient(clientKey))
	defer span.End()

	resp, err := s.orchestrator.Handle(ctx, clientKey, req)
	if err != nil {
		// The orchestrator only errors when the caller went away mid-wait.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			instrumentation.SetSpanError(span, err)
			s.recordChat(ctx, instrumentation.StatusError, start)
			return echo.NewHTTPError(499, "client closed request")
		}
		instrumentation.SetSpanError(span, err)
		s.recordChat(ctx, instrumentation.StatusError, start)
		return err
	}

	if resp.Action != "" {
		s.auditAction(ctx, clientKey, resp)
		if s.metrics != nil {
			s.metrics.RecordActionDispatched(ctx, resp.Action, actionStatus(resp.Result))
		}
	}

	instrumentation.SetSpanSuccess(span)
	s.recordChat(ctx, instrumentation.StatusSuccess, start)
	return c.JSON(http.StatusOK, resp)
}

func (s *APIServer) recordChat(ctx context.Context, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordChatRequest(ctx, status, time.Since(start))
	}
}

// auditAction writes the audit record for an action dispatched from chat.
func (s *APIServer) auditAction(ctx context.Context, clientKey string, resp chat.Response) {
	if s.audit == nil {
		return
	}

	record := instrumentation.NewActionRecord(resp.Action).
		WithClient(clientKey, logging.AnonymizeClient(clientKey)).
		WithSpanContext(ctx)
	if id, ok := resp.Payload["event_id"].(string); ok {
		record.WithEvent(id)
	}
	if raw, ok := resp.Payload["attendees"].([]any); ok {
		emails := make([]string, 0, len(raw))
		for _, v := range raw {
			if email, ok := v.(string); ok {
				emails = append(emails, email)
			}
		}
		record.WithAttendees(emails)
	}

	success := actionStatus(resp.Result) == instrumentation.StatusSuccess
	record.Complete(success, nil)
	s.audit.LogAction(record)
}

// actionStatus reads the status field out of a dispatch result.
func actionStatus(result any) string {
	switch r := result.(type) {
	case chat.EventResult:
		return r.Status
	case chat.StatusResult:
		return r.Status
	case chat.FindResult:
		return instrumentation.StatusSuccess
	default:
		return instrumentation.StatusUnknown
	}
}

func (s *APIServer) handleCalendarCreate(c *echo.Context) error {
	var payload chat.CreatePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, s.dispatcher.Create(c.Request().Context(), payload))
}

func (s *APIServer) handleCalendarFind(c *echo.Context) error {
	var payload chat.FindPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, s.dispatcher.Find(c.Request().Context(), payload))
}

func (s *APIServer) handleCalendarUpdate(c *echo.Context) error {
	var payload chat.UpdatePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, s.dispatcher.Update(c.Request().Context(), payload))
}

func (s *APIServer) handleCalendarCancel(c *echo.Context) error {
	var payload chat.CancelPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, s.dispatcher.Cancel(c.Request().Context(), payload))
}

// debugCalendarResponse is the body of GET /debug/calendar.
type debugCalendarResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// handleDebugCalendar performs a real token refresh round trip against the
// calendar credentials. The full error goes to the log; the client sees a
// single-line detail without internals.
func (s *APIServer) handleDebugCalendar(c *echo.Context) error {
	if err := s.gateway.Verify(c.Request().Context()); err != nil {
		s.logger.Error("calendar credential check failed", logging.Err(err))
		return c.JSON(http.StatusInternalServerError, debugCalendarResponse{
			Status: "error",
			Detail: "calendar authentication failed: " + err.Error(),
		})
	}
	return c.JSON(http.StatusOK, debugCalendarResponse{Status: "ok"})
}
