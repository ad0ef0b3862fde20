package chat

import "context"

// Turn roles. History ordering is chronological and significant.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one element of conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the input to one orchestration cycle. History is supplied by
// the caller on every request; nothing is persisted server-side.
type Request struct {
	Message string `json:"message"`
	History []Turn `json:"history"`
}

// ModelClient is the language-model collaborator. Each call is stateless;
// the full history travels with it.
type ModelClient interface {
	Generate(ctx context.Context, history []Turn, message string) (string, error)
}

// ActionKind identifies a calendar mutation requested by the model.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionFind   ActionKind = "find"
	ActionUpdate ActionKind = "update"
	ActionCancel ActionKind = "cancel"
)

// knownActionKinds gates which action values the interpreter accepts.
var knownActionKinds = map[ActionKind]bool{
	ActionCreate: true,
	ActionFind:   true,
	ActionUpdate: true,
	ActionCancel: true,
}

// CreatePayload carries the fields of a create action.
type CreatePayload struct {
	Summary     string   `json:"summary"`
	Start       string   `json:"start_datetime_str"`
	End         string   `json:"end_datetime_str"`
	Description string   `json:"description,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
}

// FindPayload carries the fields of a find action.
type FindPayload struct {
	TimeMin    string `json:"time_min_str,omitempty"`
	TimeMax    string `json:"time_max_str,omitempty"`
	Query      string `json:"query,omitempty"`
	MaxResults int64  `json:"max_results,omitempty"`
}

// UpdatePayload carries the fields of an update action. Optional fields
// are pointers so that "absent" and "set to empty" stay distinguishable
// through the partial-patch path.
type UpdatePayload struct {
	EventID     string  `json:"event_id"`
	NewStart    *string `json:"new_start_str,omitempty"`
	NewEnd      *string `json:"new_end_str,omitempty"`
	NewSummary  *string `json:"new_summary,omitempty"`
	NewDesc     *string `json:"new_description,omitempty"`
}

// CancelPayload carries the fields of a cancel action.
type CancelPayload struct {
	EventID string `json:"event_id"`
}

// Action is the typed form of a model-requested calendar mutation.
// Exactly one of the payload fields matching Kind is populated; Raw keeps
// the untyped payload for echoing back to the caller.
type Action struct {
	Kind ActionKind
	Raw  map[string]any

	Create *CreatePayload
	Find   *FindPayload
	Update *UpdatePayload
	Cancel *CancelPayload
}

// Outcome is the tagged result of interpreting a model response: either a
// plain reply or a typed action. Exactly one case is populated.
type Outcome struct {
	Reply  string
	Action *Action
}

// IsAction reports whether the outcome requests a calendar mutation.
func (o Outcome) IsAction() bool {
	return o.Action != nil
}
