// Package planner drives a trip planning session: intent extraction with a
// local fallback, itinerary generation, and chat-driven itinerary edits.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/nomadplan/events"
	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/itinerary"
	"github.com/c360studio/nomadplan/metrics"
	"github.com/c360studio/nomadplan/tripapi"
	"github.com/c360studio/nomadplan/weather"
)

// Precondition errors. Neither mutates the session.
var (
	ErrEmptyPrompt  = errors.New("planner: prompt is empty")
	ErrEmptyMessage = errors.New("planner: message is empty")
)

// ChatFailureReply is appended to the chat log when the chat service fails.
const ChatFailureReply = "Something went wrong calling the AI."

// defaultPlanError is shown when a failure carries no text of its own.
const defaultPlanError = "Failed to extract intent."

// DefaultEnrichTimeout bounds the forecast and route lookups of a plan run.
const DefaultEnrichTimeout = 10 * time.Second

// Services is the remote side of a session. *tripapi.Client implements it.
type Services interface {
	RequestIntent(ctx context.Context, prompt string) (intent.Intent, error)
	RequestItinerary(ctx context.Context, in intent.Intent, weatherByDay weather.Forecast) (itinerary.Itinerary, error)
	SendChatMessage(ctx context.Context, message string, cc tripapi.ChatContext) (tripapi.ChatReply, error)
}

// Forecaster looks up the weather at a place. *weather.Client implements it.
type Forecaster interface {
	Forecast(ctx context.Context, place string, days int) (weather.Forecast, error)
}

// Locator geocodes a place name. *geocode.Client implements it.
type Locator interface {
	Lookup(ctx context.Context, q string) (geocode.Point, error)
}

// Recorder counts session outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordPlan(outcome string)
	RecordChat(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPlan(string) {}
func (nopRecorder) RecordChat(string) {}

// Orchestrator owns one planning session. All methods are safe for
// concurrent use; the session lock is never held across a remote call.
type Orchestrator struct {
	svc           Services
	forecaster    Forecaster
	locator       Locator
	publisher     events.Publisher
	recorder      Recorder
	logger        *slog.Logger
	sessionID     string
	serialChat    bool
	enrichTimeout time.Duration

	mu       sync.Mutex
	state    State
	chatTail chan struct{} // closed when the latest queued serial chat finishes
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithForecaster enables destination forecasts during plan runs.
func WithForecaster(f Forecaster) Option {
	return func(o *Orchestrator) {
		o.forecaster = f
	}
}

// WithLocator enables route geocoding during plan runs.
func WithLocator(l Locator) Option {
	return func(o *Orchestrator) {
		o.locator = l
	}
}

// WithPublisher publishes session events to p.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithMetrics records plan and chat outcomes.
func WithMetrics(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithSessionID sets the session identifier used in snapshots and events.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) {
		o.sessionID = id
	}
}

// WithSerialChat sends chat messages one at a time, in submission order.
// Each message then sees the itinerary as edited by the one before it.
func WithSerialChat() Option {
	return func(o *Orchestrator) {
		o.serialChat = true
	}
}

// WithEnrichTimeout bounds forecast and route lookups.
func WithEnrichTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.enrichTimeout = d
	}
}

// New creates an orchestrator for a fresh session.
func New(svc Services, opts ...Option) *Orchestrator {
	closed := make(chan struct{})
	close(closed)

	o := &Orchestrator{
		svc:           svc,
		publisher:     events.NopPublisher{},
		recorder:      nopRecorder{},
		logger:        slog.Default(),
		sessionID:     uuid.New().String(),
		enrichTimeout: DefaultEnrichTimeout,
		state:         NewState(),
		chatTail:      closed,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SessionID returns the session identifier.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Snapshot returns a copy of the current session.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return newSnapshot(o.sessionID, o.state)
}

// Plan runs the intent → itinerary pipeline for text. Remote failures never
// surface here: a failed intent call falls back to local extraction and a
// failed itinerary call leaves the itinerary empty. The fallback path also
// clears the previous itinerary, weather and route rather than keeping them
// beside the locally extracted intent. Only internal errors are returned. A
// newer Plan call supersedes this one, and this run's results are then
// discarded.
func (o *Orchestrator) Plan(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPrompt
	}

	o.mu.Lock()
	next, err := beginPlan(o.state)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = next
	epoch := next.Epoch
	o.mu.Unlock()

	o.publish(ctx, events.KindPhase, map[string]Phase{"phase": PhaseGenerating})
	o.logger.Debug("Plan started", "session", o.sessionID, "epoch", epoch)

	in, err := o.svc.RequestIntent(ctx, text)
	if err != nil {
		planErr := planErrorText(err)
		o.logger.Warn("Intent service failed, using local extraction",
			"session", o.sessionID,
			"epoch", epoch,
			"error", err)

		fallback := intent.ExtractFallback(text)
		return o.commitPlan(ctx, epoch, metrics.PlanFallback, func(s State) (State, error) {
			return planFellBack(s, fallback, planErr)
		})
	}

	wx, route := o.enrich(ctx, in)

	it, err := o.svc.RequestItinerary(ctx, in, wx)
	if err != nil {
		o.logger.Warn("Itinerary generation failed",
			"session", o.sessionID,
			"epoch", epoch,
			"error", err)
		it = itinerary.Itinerary{}
	}

	return o.commitPlan(ctx, epoch, metrics.PlanRemote, func(s State) (State, error) {
		return planSucceeded(s, in, it, wx, route)
	})
}

// commitPlan applies finish to the session unless the run was superseded.
func (o *Orchestrator) commitPlan(ctx context.Context, epoch uint64, outcome string, finish func(State) (State, error)) error {
	o.mu.Lock()
	if o.state.Epoch != epoch {
		current := o.state.Epoch
		o.mu.Unlock()
		o.logger.Debug("Discarding superseded plan run",
			"session", o.sessionID,
			"epoch", epoch,
			"current_epoch", current)
		o.recorder.RecordPlan(metrics.PlanSuperseded)
		return nil
	}
	next, err := finish(o.state)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = next
	snap := newSnapshot(o.sessionID, next)
	o.mu.Unlock()

	o.recorder.RecordPlan(outcome)
	o.publish(ctx, events.KindIntent, snap.Intent)
	o.publish(ctx, events.KindItinerary, snap.Itinerary)
	o.publish(ctx, events.KindPhase, map[string]any{"phase": snap.Phase, "planError": snap.PlanError})
	return nil
}

// SendChat sends text to the chat service and applies the reply. The user
// message is logged immediately; the reply is logged when it arrives, and
// any itinerary patch is merged into the itinerary current at that moment.
// A failed chat call logs ChatFailureReply and leaves the itinerary alone.
func (o *Orchestrator) SendChat(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	userMsg := Message{Role: RoleUser, Content: text}

	o.mu.Lock()
	o.state = appendMessage(o.state, userMsg)
	o.state.ChatPending++
	var prev, done chan struct{}
	if o.serialChat {
		prev = o.chatTail
		done = make(chan struct{})
		o.chatTail = done
	}
	o.mu.Unlock()

	o.publish(ctx, events.KindMessage, userMsg)

	if done != nil {
		select {
		case <-prev:
			defer close(done)
		case <-ctx.Done():
			// Give up our turn, but release successors only after the
			// predecessor finishes so calls stay single-flight.
			go func() {
				<-prev
				close(done)
			}()
		}
	}

	o.mu.Lock()
	cc := tripapi.ChatContext{
		Intent:    o.state.Intent.Clone(),
		Weather:   o.state.Weather.Clone(),
		Itinerary: o.state.Itinerary.Clone(),
	}
	o.mu.Unlock()

	var reply tripapi.ChatReply
	err := ctx.Err()
	if err == nil {
		reply, err = o.svc.SendChatMessage(ctx, text, cc)
	}

	if err != nil {
		o.logger.Warn("Chat service failed",
			"session", o.sessionID,
			"error", err)
		o.finishChat(ctx, Message{Role: RoleAssistant, Content: ChatFailureReply}, nil)
		o.recorder.RecordChat(metrics.ChatFailed)
		return nil
	}

	o.finishChat(ctx, Message{Role: RoleAssistant, Content: reply.Reply}, reply.Patch)
	if reply.HasPatch() {
		o.recorder.RecordChat(metrics.ChatPatched)
	} else {
		o.recorder.RecordChat(metrics.ChatReplied)
	}
	return nil
}

func (o *Orchestrator) finishChat(ctx context.Context, reply Message, patch itinerary.Patch) {
	o.mu.Lock()
	o.state = appendMessage(o.state, reply)
	if patch != nil {
		o.state = applyPatch(o.state, patch)
	}
	o.state.ChatPending--
	var it itinerary.Itinerary
	if patch != nil {
		it = o.state.Itinerary.Clone()
	}
	o.mu.Unlock()

	o.publish(ctx, events.KindMessage, reply)
	if patch != nil {
		o.publish(ctx, events.KindItinerary, it)
	}
}

// publish sends an event, surviving cancellation of the caller's context.
func (o *Orchestrator) publish(ctx context.Context, kind events.Kind, data any) {
	ev, err := events.New(o.sessionID, kind, data)
	if err != nil {
		o.logger.Warn("Failed to build session event", "kind", kind, "error", err)
		return
	}
	if err := o.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		o.logger.Warn("Failed to publish session event", "kind", kind, "error", err)
	}
}

// planErrorText turns an intent service failure into text for the user.
func planErrorText(err error) string {
	var ce *tripapi.CallError
	if !errors.As(err, &ce) {
		if msg := err.Error(); msg != "" {
			return msg
		}
		return defaultPlanError
	}

	switch ce.Kind {
	case tripapi.FailureTransport:
		if errors.Is(ce, context.DeadlineExceeded) {
			return "The intent service timed out."
		}
		if errors.Is(ce, context.Canceled) {
			return "Planning was cancelled."
		}
	case tripapi.FailureStatus:
		var body tripapi.ErrorResponse
		if json.Unmarshal([]byte(ce.Message), &body) == nil && body.Error != "" {
			return body.Error
		}
	}
	if ce.Message != "" {
		return ce.Message
	}
	return defaultPlanError
}
