package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// DefaultCalendarID is the calendar used when none is configured.
const DefaultCalendarID = "primary"

// EventInput represents the input for creating a calendar event.
// Guest permissions and reminders are fixed policy applied by the client,
// not part of the input.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// EventPatch carries a partial update. Nil fields retain the stored value;
// the client performs a fetch-merge-write, never a replace-write.
type EventPatch struct {
	Summary     *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// ListQuery narrows an event listing to a time window and optional
// free-text query.
type ListQuery struct {
	TimeMin    time.Time
	TimeMax    time.Time // zero value means no upper bound
	Query      string
	MaxResults int64
}

// EventSummary is the simplified event record handed back to callers.
type EventSummary struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Status      string
}

// toEventSummary converts a Google Calendar event to an EventSummary.
func toEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}

	summary := EventSummary{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Status:      event.Status,
	}

	summary.Start = parseEventTime(event.Start)
	summary.End = parseEventTime(event.End)

	for _, att := range event.Attendees {
		summary.Attendees = append(summary.Attendees, att.Email)
	}

	return summary
}

// parseEventTime reads either a timed or an all-day boundary.
func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
