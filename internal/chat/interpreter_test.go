package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretEmptyOutput(t *testing.T) {
	interp := NewInterpreter(nil)

	for _, raw := range []string{"", "   ", "\n\t"} {
		outcome := interp.Interpret(raw)
		assert.False(t, outcome.IsAction())
		assert.Equal(t, ApologyReply, outcome.Reply, "input %q", raw)
	}
}

func TestInterpretActionEnvelope(t *testing.T) {
	interp := NewInterpreter(nil)

	outcome := interp.Interpret(`{"action":"create","payload":{"summary":"x"}}`)
	require.True(t, outcome.IsAction())
	assert.Equal(t, ActionCreate, outcome.Action.Kind)
	require.NotNil(t, outcome.Action.Create)
	assert.Equal(t, "x", outcome.Action.Create.Summary)
	assert.Equal(t, map[string]any{"summary": "x"}, outcome.Action.Raw)
}

func TestInterpretActionWithSurroundingProse(t *testing.T) {
	interp := NewInterpreter(nil)

	outcome := interp.Interpret(`Sure, here you go {"action":"cancel","payload":{"event_id":"abc"}} thanks!`)
	require.True(t, outcome.IsAction())
	assert.Equal(t, ActionCancel, outcome.Action.Kind)
	require.NotNil(t, outcome.Action.Cancel)
	assert.Equal(t, "abc", outcome.Action.Cancel.EventID)
}

func TestInterpretReplyFallbacks(t *testing.T) {
	interp := NewInterpreter(nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "reply envelope is unwrapped",
			raw:  `{"reply":"hi"}`,
			want: "hi",
		},
		{
			name: "json without reply key is wrapped whole",
			raw:  `{"foo":"bar"}`,
			want: `{"foo":"bar"}`,
		},
		{
			name: "plain text passes through",
			raw:  "plain text",
			want: "plain text",
		},
		{
			name: "malformed json-looking text passes through",
			raw:  `{"reply": truncated`,
			want: `{"reply": truncated`,
		},
		{
			name: "stray brace in prose",
			raw:  "use the { key on your keyboard",
			want: "use the { key on your keyboard",
		},
		{
			name: "envelope missing payload falls back to reply tiers",
			raw:  `{"action":"create"}`,
			want: `{"action":"create"}`,
		},
		{
			name: "unknown action kind falls back to reply tiers",
			raw:  `{"action":"teleport","payload":{}}`,
			want: `{"action":"teleport","payload":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := interp.Interpret(tt.raw)
			require.False(t, outcome.IsAction())
			assert.Equal(t, tt.want, outcome.Reply)
		})
	}
}

func TestInterpretUpdateActionTypedPayload(t *testing.T) {
	interp := NewInterpreter(nil)

	outcome := interp.Interpret(`{"action":"update","payload":{"event_id":"e1","new_summary":"Cena"}}`)
	require.True(t, outcome.IsAction())
	require.NotNil(t, outcome.Action.Update)
	assert.Equal(t, "e1", outcome.Action.Update.EventID)
	require.NotNil(t, outcome.Action.Update.NewSummary)
	assert.Equal(t, "Cena", *outcome.Action.Update.NewSummary)
	assert.Nil(t, outcome.Action.Update.NewStart)
	assert.Nil(t, outcome.Action.Update.NewEnd)
	assert.Nil(t, outcome.Action.Update.NewDesc)
}

func TestInterpretFindAction(t *testing.T) {
	interp := NewInterpreter(nil)

	outcome := interp.Interpret(`{"action":"find","payload":{"time_min_str":"2024-05-01T00:00:00Z","query":"Demo"}}`)
	require.True(t, outcome.IsAction())
	require.NotNil(t, outcome.Action.Find)
	assert.Equal(t, "Demo", outcome.Action.Find.Query)
}

func TestInterpretCreateActionWithAttendees(t *testing.T) {
	interp := NewInterpreter(nil)

	outcome := interp.Interpret(`{"action":"create","payload":{"summary":"Demo","start_datetime_str":"2024-05-02T15:00:00","end_datetime_str":"2024-05-02T16:00:00","attendees":["guest@example.com"]}}`)
	require.True(t, outcome.IsAction())
	require.NotNil(t, outcome.Action.Create)
	assert.Equal(t, []string{"guest@example.com"}, outcome.Action.Create.Attendees)
}
