package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/indioreservas/indiobot/internal/logging"
	"github.com/indioreservas/indiobot/internal/timeutil"
)

// Response is the outbound contract of one orchestration cycle. Reply is
// set for conversational outcomes; Action/Payload/Result are set when the
// model requested a calendar mutation and it was dispatched.
type Response struct {
	Reply   string         `json:"reply,omitempty"`
	Action  string         `json:"action,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Result  any            `json:"result,omitempty"`
}

// MetricsRecorder receives orchestration timing measurements. It is
// satisfied by *instrumentation.Metrics.
type MetricsRecorder interface {
	RecordRateLimitWait(ctx context.Context, wait time.Duration)
	RecordModelCall(ctx context.Context, model, status string, duration time.Duration)
}

// Orchestrator runs one chat cycle: admit the client through the rate
// limiter, build the prompt with temporal context, call the model,
// interpret its output, and dispatch any requested calendar action.
type Orchestrator struct {
	limiter     *Limiter
	model       ModelClient
	interpreter *Interpreter
	dispatcher  *Dispatcher
	logger      *slog.Logger
	now         func() time.Time

	metrics   MetricsRecorder
	modelName string
}

// NewOrchestrator wires the orchestration cycle together. All
// collaborators are owned by the caller; a nil logger disables
// diagnostics.
func NewOrchestrator(limiter *Limiter, model ModelClient, dispatcher *Dispatcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		limiter:     limiter,
		model:       model,
		interpreter: NewInterpreter(logger),
		dispatcher:  dispatcher,
		logger:      logging.WithComponent(logger, "orchestrator"),
		now:         time.Now,
	}
}

// WithMetrics attaches a metrics recorder. The model name labels model
// call metrics; it is passed here because ModelClient does not expose it.
func (o *Orchestrator) WithMetrics(metrics MetricsRecorder, modelName string) *Orchestrator {
	o.metrics = metrics
	o.modelName = modelName
	return o
}

// Handle processes one chat request for the given client identity. The
// only error it returns is a cancelled wait; model failures degrade to the
// apology reply and gateway failures come back inside Result.
func (o *Orchestrator) Handle(ctx context.Context, clientKey string, req Request) (Response, error) {
	delay, err := o.limiter.Admit(ctx, clientKey)
	if err != nil {
		return Response{}, err
	}
	if o.metrics != nil {
		o.metrics.RecordRateLimitWait(ctx, delay)
	}
	if delay > 0 {
		o.logger.Info("request throttled",
			logging.ClientHash(clientKey),
			slog.Duration(logging.KeyDuration, delay))
	}

	prompt := BuildPrompt(req.Message, o.now().In(timeutil.DisplayLocation()))

	modelStart := time.Now()
	raw, err := o.model.Generate(ctx, req.History, prompt)
	if o.metrics != nil {
		status := logging.StatusSuccess
		if err != nil {
			status = logging.StatusError
		}
		o.metrics.RecordModelCall(ctx, o.modelName, status, time.Since(modelStart))
	}
	if err != nil {
		// Model output is inherently unreliable; a failed call is treated
		// the same as empty output and degrades to the apology reply.
		o.logger.Warn("model call failed", logging.ClientHash(clientKey), logging.Err(err))
		raw = ""
	}

	outcome := o.interpreter.Interpret(raw)
	if !outcome.IsAction() {
		return Response{Reply: outcome.Reply}, nil
	}

	action := outcome.Action
	o.logger.Info("dispatching action",
		logging.ClientHash(clientKey), logging.Action(string(action.Kind)))

	result := o.dispatcher.Dispatch(ctx, action)
	return Response{
		Action:  string(action.Kind),
		Payload: action.Raw,
		Result:  result,
	}, nil
}
