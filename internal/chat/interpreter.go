package chat

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ApologyReply is returned when the model produces no text at all.
const ApologyReply = "Lo siento, no pude generar una respuesta. Por favor, intenta reformular tu pregunta."

// Interpreter turns raw model output into a typed Outcome. It never fails:
// anything it cannot make sense of degrades to a plain reply. The model is
// instructed to emit either prose or a control-JSON envelope, but cannot be
// trusted to do so cleanly, so every tier here is defensive against
// truncation, mixed prose+JSON, and stray braces.
type Interpreter struct {
	logger *slog.Logger
}

// NewInterpreter creates an Interpreter. A nil logger disables diagnostics.
func NewInterpreter(logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Interpreter{logger: logger}
}

// actionEnvelope is the control shape the model emits for mutations.
type actionEnvelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Interpret applies an ordered decision table:
//
//  1. empty text            -> fixed apology reply
//  2. embedded {...} JSON   -> action, when it has action+payload keys
//  3. whole text as JSON    -> reply, when it has a reply key
//  4. anything else         -> the raw text wrapped as a reply
func (i *Interpreter) Interpret(raw string) Outcome {
	if strings.TrimSpace(raw) == "" {
		return Outcome{Reply: ApologyReply}
	}

	if action, ok := i.extractAction(raw); ok {
		return Outcome{Action: action}
	}

	return Outcome{Reply: i.replyText(raw)}
}

// extractAction scans for the outermost brace pair and tries to read an
// action envelope out of it. Surrounding prose is discarded.
func (i *Interpreter) extractAction(raw string) (*Action, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, false
	}

	candidate := raw[start : end+1]

	var envelope actionEnvelope
	if err := json.Unmarshal([]byte(candidate), &envelope); err != nil {
		i.logger.Debug("embedded JSON did not parse", "error", err.Error())
		return nil, false
	}
	if envelope.Action == "" || envelope.Payload == nil {
		return nil, false
	}

	action, err := decodeAction(ActionKind(envelope.Action), envelope.Payload)
	if err != nil {
		i.logger.Warn("model emitted an action the dispatcher cannot handle",
			"action", envelope.Action, "error", err.Error())
		return nil, false
	}

	return action, true
}

// replyText resolves the reply fallback tiers for non-action text.
func (i *Interpreter) replyText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return raw
	}

	// The whole text looks like a JSON object; honor an explicit reply key
	// and otherwise hand back the original text untouched.
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return raw
	}
	replyRaw, ok := parsed["reply"]
	if !ok {
		return raw
	}

	var reply string
	if err := json.Unmarshal(replyRaw, &reply); err != nil {
		return raw
	}
	return reply
}

// decodeAction validates the kind and converts the payload into its typed
// struct, so the dispatcher never sees untyped data.
func decodeAction(kind ActionKind, payload json.RawMessage) (*Action, error) {
	if !knownActionKinds[kind] {
		return nil, errUnknownAction(kind)
	}

	action := &Action{Kind: kind}
	if err := json.Unmarshal(payload, &action.Raw); err != nil {
		return nil, err
	}

	var err error
	switch kind {
	case ActionCreate:
		action.Create = &CreatePayload{}
		err = json.Unmarshal(payload, action.Create)
	case ActionFind:
		action.Find = &FindPayload{}
		err = json.Unmarshal(payload, action.Find)
	case ActionUpdate:
		action.Update = &UpdatePayload{}
		err = json.Unmarshal(payload, action.Update)
	case ActionCancel:
		action.Cancel = &CancelPayload{}
		err = json.Unmarshal(payload, action.Cancel)
	}
	if err != nil {
		return nil, err
	}

	return action, nil
}

type errUnknownAction ActionKind

func (e errUnknownAction) Error() string {
	return "unknown action kind " + string(e)
}
