package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/indioreservas/indiobot/internal/google"
	"github.com/indioreservas/indiobot/internal/timeutil"
)

// Gateway is the calendar collaborator consumed by the dispatcher and the
// HTTP handlers. Implementations must make DeleteEvent idempotent: deleting
// an event that is already gone is success, not failure.
type Gateway interface {
	CreateEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error)
	ListEvents(ctx context.Context, calendarID string, query ListQuery) ([]EventSummary, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (*EventSummary, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	Verify(ctx context.Context) error
}

// Client implements Gateway against the Google Calendar v3 API.
type Client struct {
	svc *calendar.Service
	ts  oauth2.TokenSource
}

var _ Gateway = (*Client)(nil)

// NewClient creates a Calendar client authenticated with the given
// refresh-token credentials.
func NewClient(ctx context.Context, creds google.Credentials) (*Client, error) {
	ts, err := google.TokenSource(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to build token source: %w", err)
	}

	httpClient := google.HTTPClient(ctx, ts)
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, ts: ts}, nil
}

// Verify performs an authentication round trip without touching any event.
// Used by the debug endpoint to distinguish credential problems from
// operation-level failures.
func (c *Client) Verify(ctx context.Context) error {
	if _, err := c.ts.Token(); err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	return nil
}

// CreateEvent inserts a new event. Guests can see only their own
// invitation and cannot modify the event; this policy is fixed and not
// caller-configurable. Reminder overrides (email a day ahead, popup half an
// hour ahead) are likewise fixed.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error) {
	guestsCanInvite := false
	guestsCanSee := false

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start:       eventTime(input.Start),
		End:         eventTime(input.End),
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
		GuestsCanModify:         false,
		GuestsCanInviteOthers:   &guestsCanInvite,
		GuestsCanSeeOtherGuests: &guestsCanSee,
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// ListEvents lists events within a time window, ordered by start time.
// Recurring events are expanded to single occurrences.
func (c *Client) ListEvents(ctx context.Context, calendarID string, query ListQuery) ([]EventSummary, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(query.TimeMin.UTC().Format(time.RFC3339)).
		MaxResults(query.MaxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	if !query.TimeMax.IsZero() {
		call = call.TimeMax(query.TimeMax.UTC().Format(time.RFC3339))
	}
	if query.Query != "" {
		call = call.Q(query.Query)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}

	return summaries, nil
}

// GetEvent retrieves a specific event by id.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error) {
	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	summary := toEventSummary(event)
	return &summary, nil
}

// UpdateEvent applies a partial patch with fetch-merge-write semantics:
// the stored record is read, only the supplied fields are overlaid, and
// the merged record is written back.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (*EventSummary, error) {
	existing, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing event: %w", err)
	}

	if patch.Summary != nil {
		existing.Summary = *patch.Summary
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Start != nil {
		existing.Start = eventTime(*patch.Start)
	}
	if patch.End != nil {
		existing.End = eventTime(*patch.End)
	}

	updated, err := c.svc.Events.Update(calendarID, eventID, existing).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	summary := toEventSummary(updated)
	return &summary, nil
}

// DeleteEvent cancels an event. An event that no longer exists (HTTP 404)
// or was already cancelled (HTTP 410) counts as success.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if IsGone(err) {
			return nil
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// IsGone reports whether err is a Google API response indicating the
// resource no longer exists.
func IsGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusGone || gerr.Code == http.StatusNotFound
	}
	return false
}

// eventTime formats an instant for the wire in the fixed display timezone
// so the event renders at venue-local wall-clock time.
func eventTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.In(timeutil.DisplayLocation()).Format(time.RFC3339),
		TimeZone: timeutil.DisplayTimeZone,
	}
}
