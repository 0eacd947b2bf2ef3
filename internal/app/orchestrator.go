package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mathfly-quiz-service/internal/domain"
)

// Phase is the display state of a quiz screen.
type Phase string

const (
	PhaseIntro   Phase = "intro"
	PhaseLoading Phase = "loading"
	PhasePlaying Phase = "playing"
	PhaseResults Phase = "results"
)

// Event types emitted by the orchestrator.
const (
	EventPhase    = "phase"
	EventQuestion = "question"
	EventTick     = "tick"
	EventFeedback = "feedback"
	EventResults  = "results"
	EventLocked   = "locked"
	EventError    = "error"
)

// Event is one message for the client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type PhasePayload struct {
	Phase Phase       `json:"phase"`
	Tier  domain.Tier `json:"tier"`
}

type QuestionPayload struct {
	Index    int            `json:"index"`
	Total    int            `json:"total"`
	ID       string         `json:"id"`
	Prompt   string         `json:"prompt"`
	Options  domain.Options `json:"options"`
	TimeLeft int            `json:"timeLeft"`
}

type TickPayload struct {
	TimeLeft int `json:"timeLeft"`
}

type ResultsPayload struct {
	Results           domain.Results `json:"results"`
	NewMaxTier        domain.Tier    `json:"newMaxTier"`
	UnlockedNewTier   bool           `json:"unlockedNewTier"`
	NextTierAvailable bool           `json:"nextTierAvailable"`
}

type LockedPayload struct {
	Tier    domain.Tier `json:"tier"`
	MaxTier domain.Tier `json:"maxTier"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Ticker is the countdown source; time.Ticker in production.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// TierGate decides whether a user may enter a tier.
type TierGate interface {
	CanPlay(ctx context.Context, userID string, tier domain.Tier) (bool, domain.Tier)
}

// OrchestratorOptions configures an Orchestrator. Zero values pick defaults.
type OrchestratorOptions struct {
	QuestionCount int
	NewTicker     func(time.Duration) Ticker
	Logger        *zap.Logger
}

// Orchestrator sequences engine calls against the countdown and user input.
// Every method must be called from the same goroutine; the countdown is read
// through Timer and fed back through Tick.
type Orchestrator struct {
	engine    *Engine
	gate      TierGate
	identity  domain.Identity
	tier      domain.Tier
	count     int
	newTicker func(time.Duration) Ticker
	logger    *zap.Logger

	phase        Phase
	ticker       Ticker
	generation   uint64
	timeLeft     int
	awaitingNext bool
}

func NewOrchestrator(engine *Engine, gate TierGate, identity domain.Identity, tier domain.Tier, opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		engine:    engine,
		gate:      gate,
		identity:  identity,
		tier:      tier,
		count:     opts.QuestionCount,
		newTicker: opts.NewTicker,
		logger:    opts.Logger,
		phase:     PhaseIntro,
	}
	if o.count <= 0 {
		o.count = DefaultQuestionCount
	}
	if o.newTicker == nil {
		o.newTicker = NewTicker
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

func (o *Orchestrator) Phase() Phase { return o.phase }

// TimeLeft is the remaining seconds for the current question.
func (o *Orchestrator) TimeLeft() int { return o.timeLeft }

// Timer returns the live countdown channel and the generation it belongs to.
// The channel is nil whenever no countdown is running.
func (o *Orchestrator) Timer() (<-chan time.Time, uint64) {
	if o.ticker == nil {
		return nil, o.generation
	}
	return o.ticker.C(), o.generation
}

// Enter checks access and shows the intro screen.
func (o *Orchestrator) Enter(ctx context.Context) []Event {
	if locked := o.checkAccess(ctx); locked != nil {
		return locked
	}
	return []Event{o.setPhase(PhaseIntro)}
}

// Start loads a session and shows its first question.
func (o *Orchestrator) Start(ctx context.Context) []Event {
	if o.phase == PhasePlaying || o.phase == PhaseLoading {
		return nil
	}
	if locked := o.checkAccess(ctx); locked != nil {
		return locked
	}

	events := []Event{o.setPhase(PhaseLoading)}
	if _, err := o.engine.Start(ctx, o.tier, o.count); err != nil {
		o.logger.Warn("start session failed", zap.String("user_id", o.identity.UserID), zap.Error(err))
		return append(events,
			Event{Type: EventError, Payload: ErrorPayload{Message: err.Error()}},
			o.setPhase(PhaseIntro),
		)
	}
	events = append(events, o.setPhase(PhasePlaying))
	return append(events, o.showQuestion()...)
}

// Answer submits key for the current question and shows feedback.
func (o *Orchestrator) Answer(key string) []Event {
	if o.phase != PhasePlaying || o.awaitingNext {
		return nil
	}
	outcome := o.engine.SubmitAnswer(key)
	if outcome == nil {
		return nil
	}
	o.stopTimer()
	o.awaitingNext = true
	return []Event{{Type: EventFeedback, Payload: *outcome}}
}

// Tick advances the countdown for generation. Ticks from a stale generation
// are dropped. Reaching zero submits a timeout.
func (o *Orchestrator) Tick(generation uint64) []Event {
	if o.phase != PhasePlaying || o.awaitingNext || o.ticker == nil || generation != o.generation {
		return nil
	}
	o.timeLeft--
	events := []Event{{Type: EventTick, Payload: TickPayload{TimeLeft: max(o.timeLeft, 0)}}}
	if o.timeLeft <= 0 {
		events = append(events, o.Answer(domain.TimeoutAnswer)...)
	}
	return events
}

// Next leaves the feedback screen: either the following question or the results.
func (o *Orchestrator) Next(ctx context.Context) []Event {
	if o.phase != PhasePlaying || !o.awaitingNext {
		return nil
	}
	session, ok := o.engine.Advance()
	if !ok {
		return nil
	}
	o.awaitingNext = false
	if session.Index < session.Total() {
		return o.showQuestion()
	}

	events := []Event{o.setPhase(PhaseLoading)}
	outcome := o.engine.Finish(ctx)
	if outcome == nil {
		return append(events, o.setPhase(PhaseIntro))
	}

	payload := ResultsPayload{
		Results:         outcome.Results,
		NewMaxTier:      outcome.Progress.NewMaxTier,
		UnlockedNewTier: outcome.Progress.UnlockedNewTier,
	}
	maxTier := payload.NewMaxTier
	if !outcome.Synced || !maxTier.Valid() {
		_, maxTier = o.gate.CanPlay(ctx, o.identity.UserID, o.tier)
		payload.NewMaxTier = maxTier
	}
	if next, ok := o.tier.Next(); ok && next <= maxTier {
		payload.NextTierAvailable = true
	}
	events = append(events, o.setPhase(PhaseResults))
	return append(events, Event{Type: EventResults, Payload: payload})
}

// Reset abandons any session and returns to the intro screen.
func (o *Orchestrator) Reset() []Event {
	o.stopTimer()
	o.engine.Reset()
	o.awaitingNext = false
	return []Event{o.setPhase(PhaseIntro)}
}

// Close stops the countdown when the client goes away.
func (o *Orchestrator) Close() {
	o.stopTimer()
	o.engine.Reset()
}

func (o *Orchestrator) checkAccess(ctx context.Context) []Event {
	ok, maxTier := o.gate.CanPlay(ctx, o.identity.UserID, o.tier)
	if ok {
		return nil
	}
	o.stopTimer()
	return []Event{{Type: EventLocked, Payload: LockedPayload{Tier: o.tier, MaxTier: maxTier}}}
}

func (o *Orchestrator) showQuestion() []Event {
	session, ok := o.engine.Session()
	if !ok {
		return nil
	}
	question, ok := session.Current()
	if !ok {
		return nil
	}
	o.startTimer()
	return []Event{{Type: EventQuestion, Payload: QuestionPayload{
		Index:    session.Index,
		Total:    session.Total(),
		ID:       question.ID,
		Prompt:   question.Prompt,
		Options:  question.Options,
		TimeLeft: o.timeLeft,
	}}}
}

func (o *Orchestrator) setPhase(p Phase) Event {
	if p != PhasePlaying {
		o.stopTimer()
	}
	o.phase = p
	return Event{Type: EventPhase, Payload: PhasePayload{Phase: p, Tier: o.tier}}
}

func (o *Orchestrator) startTimer() {
	o.stopTimer()
	o.timeLeft = o.tier.MaxSeconds()
	o.ticker = o.newTicker(time.Second)
}

// stopTimer bumps the generation so ticks already in flight are ignored.
func (o *Orchestrator) stopTimer() {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
	}
	o.generation++
}
