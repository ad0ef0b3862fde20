package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indioreservas/indiobot/internal/calendar"
	"github.com/indioreservas/indiobot/internal/chat"
	"github.com/indioreservas/indiobot/internal/instrumentation"
)

type fakeGateway struct {
	verifyErr error
	createErr error
	created   []calendar.EventInput
	deleted   []string
}

func (f *fakeGateway) CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	return &calendar.EventSummary{
		ID:      fmt.Sprintf("evt%d", len(f.created)),
		Summary: input.Summary,
		Start:   input.Start,
		End:     input.End,
	}, nil
}

func (f *fakeGateway) ListEvents(ctx context.Context, calendarID string, query calendar.ListQuery) ([]calendar.EventSummary, error) {
	return []calendar.EventSummary{
		{ID: "evt1", Summary: "Reserva", Start: query.TimeMin, End: query.TimeMin.Add(2 * time.Hour)},
	}, nil
}

func (f *fakeGateway) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.EventSummary, error) {
	return &calendar.EventSummary{ID: eventID, Summary: "Reserva"}, nil
}

func (f *fakeGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, patch calendar.EventPatch) (*calendar.EventSummary, error) {
	summary := "Reserva"
	if patch.Summary != nil {
		summary = *patch.Summary
	}
	return &calendar.EventSummary{ID: eventID, Summary: summary}, nil
}

func (f *fakeGateway) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeGateway) Verify(ctx context.Context) error {
	return f.verifyErr
}

type stubModel struct {
	output string
	err    error
	panics bool
}

func (m *stubModel) Generate(ctx context.Context, history []chat.Turn, message string) (string, error) {
	if m.panics {
		panic("model exploded")
	}
	return m.output, m.err
}

func newTestServer(t *testing.T, gateway calendar.Gateway, model chat.ModelClient) *APIServer {
	t.Helper()

	dispatcher := chat.NewDispatcher(gateway, "", "", nil)
	orchestrator := chat.NewOrchestrator(chat.NewLimiter(time.Nanosecond), model, dispatcher, nil)

	s, err := NewAPIServer(Config{
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Gateway:      gateway,
	})
	require.NoError(t, err)
	s.Health().SetReady(true)
	return s
}

func doJSON(s *APIServer, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestChatPlainReply(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{output: "¡Hola! ¿En qué puedo ayudarte?"})

	rec := doJSON(s, http.MethodPost, "/chat", `{"message":"hola"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "¡Hola! ¿En qué puedo ayudarte?", resp.Reply)
	assert.Empty(t, resp.Action)
}

func TestChatDispatchesAction(t *testing.T) {
	gateway := &fakeGateway{}
	model := &stubModel{output: `{"action":"create","payload":{"summary":"Cena","start_datetime_str":"2024-06-01T21:00:00","end_datetime_str":"2024-06-01T23:00:00"}}`}
	s := newTestServer(t, gateway, model)

	rec := doJSON(s, http.MethodPost, "/chat", `{"message":"reserva una cena"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "create", resp["action"])
	assert.NotNil(t, resp["payload"])
	assert.NotNil(t, resp["result"])

	require.Len(t, gateway.created, 1)
	assert.Equal(t, "Cena", gateway.created[0].Summary)
	assert.Contains(t, gateway.created[0].Attendees, chat.DefaultOperatorEmail)
}

func TestChatMissingMessage(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{output: "hola"})

	rec := doJSON(s, http.MethodPost, "/chat", `{"history":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])
}

func TestChatModelPanicRecovered(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{panics: true})

	rec := doJSON(s, http.MethodPost, "/chat", `{"message":"hola"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["detail"])
	assert.NotContains(t, rec.Body.String(), "model exploded")
}

func TestCalendarCreateEndpoint(t *testing.T) {
	gateway := &fakeGateway{}
	s := newTestServer(t, gateway, &stubModel{})

	rec := doJSON(s, http.MethodPost, "/calendar/create",
		`{"summary":"Cumple","start_datetime_str":"2024-06-01T20:00:00","end_datetime_str":"2024-06-01T22:00:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result chat.EventResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "evt1", result.ID)
	require.Len(t, gateway.created, 1)
}

func TestCalendarCreateValidationError(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{})

	rec := doJSON(s, http.MethodPost, "/calendar/create", `{"summary":"Sin fechas"}`)
	// Dispatcher-level validation comes back as an error result, not an
	// HTTP error.
	require.Equal(t, http.StatusOK, rec.Code)

	var result chat.StatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "error", result.Status)
	assert.NotEmpty(t, result.Message)
}

func TestCalendarFindEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{})

	rec := doJSON(s, http.MethodPost, "/calendar/find", `{"time_min_str":"2024-06-01T00:00:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result chat.FindResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Events, 1)
	assert.Equal(t, "evt1", result.Events[0].ID)
}

func TestCalendarCancelEndpoint(t *testing.T) {
	gateway := &fakeGateway{}
	s := newTestServer(t, gateway, &stubModel{})

	rec := doJSON(s, http.MethodPost, "/calendar/cancel", `{"event_id":"evt9"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result chat.StatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, []string{"evt9"}, gateway.deleted)
}

func TestDebugCalendarOK(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{})

	rec := doJSON(s, http.MethodGet, "/debug/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestDebugCalendarFailure(t *testing.T) {
	s := newTestServer(t, &fakeGateway{verifyErr: errors.New("invalid_grant")}, &stubModel{})

	rec := doJSON(s, http.MethodGet, "/debug/calendar", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "calendar authentication failed")
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{})

	rec := doJSON(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.Health().SetReady(false)
	rec = doJSON(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{})

	rec := doJSON(s, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(HeaderRequestID))
}

func TestNewAPIServerRequiresCollaborators(t *testing.T) {
	_, err := NewAPIServer(Config{})
	assert.Error(t, err)
}

func TestErrorHandlerUsesHTTPErrorMessage(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, &stubModel{})

	rec := doJSON(s, http.MethodPost, "/chat", `{"message":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "message is required", body["detail"])
}

func TestErrorHandlerSkipsCommittedResponse(t *testing.T) {
	// A handler that writes a response and then errors must not get a
	// second body appended by the error handler.
	s := newTestServer(t, &fakeGateway{}, &stubModel{output: "hola"})
	s.echo.GET("/committed", func(c *echo.Context) error {
		if err := c.JSON(http.StatusOK, map[string]string{"ok": "yes"}); err != nil {
			return err
		}
		return fmt.Errorf("late failure")
	})

	rec := doJSON(s, http.MethodGet, "/committed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}

func TestChatActionAuditsAttendeeDomains(t *testing.T) {
	gateway := &fakeGateway{}
	model := &stubModel{output: `{"action":"create","payload":{"summary":"Cena","start_datetime_str":"2024-06-01T21:00:00","end_datetime_str":"2024-06-01T23:00:00","attendees":["guest@example.com"]}}`}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	dispatcher := chat.NewDispatcher(gateway, "", "", nil)
	orchestrator := chat.NewOrchestrator(chat.NewLimiter(time.Nanosecond), model, dispatcher, nil)
	s, err := NewAPIServer(Config{
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Gateway:      gateway,
		Audit:        instrumentation.NewAuditLogger(logger, instrumentation.AuditLoggingConfig{Enabled: true}),
	})
	require.NoError(t, err)
	s.Health().SetReady(true)

	rec := doJSON(s, http.MethodPost, "/chat", `{"message":"reservá una cena"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	logged := buf.String()
	assert.Contains(t, logged, "action_dispatched")
	assert.Contains(t, logged, "attendee_domains")
	assert.Contains(t, logged, "example.com")
	assert.NotContains(t, logged, "guest@example.com")
}
