package app

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/metrics"
)

// DefaultQuestionCount is the batch size used when a caller asks for zero questions.
const DefaultQuestionCount = 5

// timeBonusStep is the number of seconds that buys one bonus point.
const timeBonusStep = 5.0

// QuestionProvider samples questions for a tier.
type QuestionProvider interface {
	FetchQuestions(ctx context.Context, tier domain.Tier, count int) []domain.Question
}

// ResultRecorder merges a finished session into the user's progress.
type ResultRecorder interface {
	Reconcile(ctx context.Context, userID string, results domain.Results) (domain.Reconciliation, error)
}

// OfflineQueue is the local durable log used when remote persistence fails.
type OfflineQueue interface {
	Enqueue(ctx context.Context, entry domain.PendingResult) error
	Pending(ctx context.Context) ([]domain.PendingResult, error)
	MarkSynced(ctx context.Context, id int64) error
}

// QueueFlusher replays queued results.
type QueueFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// SessionState is the engine's coarse lifecycle position.
type SessionState int

const (
	StateAbsent SessionState = iota
	StateActive
	StateCompleting
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleting:
		return "completing"
	default:
		return "absent"
	}
}

// Session is a snapshot of one quiz attempt.
type Session struct {
	ID        string
	Tier      domain.Tier
	Questions []domain.Question
	Index     int
	Answers   []string
	Score     int
	StartedAt time.Time
}

// Total is the fixed number of questions in the session.
func (s Session) Total() int {
	return len(s.Questions)
}

// Current returns the question at Index, if any.
func (s Session) Current() (domain.Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.Index], true
}

// CurrentAnswered reports whether an answer is already recorded for Index.
func (s Session) CurrentAnswered() bool {
	return len(s.Answers) > s.Index
}

// Complete reports whether every question has an answer.
func (s Session) Complete() bool {
	return len(s.Questions) > 0 && len(s.Answers) == len(s.Questions)
}

func (s Session) clone() Session {
	c := s
	c.Questions = append([]domain.Question(nil), s.Questions...)
	c.Answers = append([]string(nil), s.Answers...)
	return c
}

// FinishOutcome is returned once per finished session.
type FinishOutcome struct {
	Results  domain.Results
	Progress domain.Reconciliation
	// Synced is false when the results were queued locally instead of persisted.
	Synced bool
}

// EngineDeps wires the engine's collaborators. Resync, Logger and Now are optional.
type EngineDeps struct {
	Questions QuestionProvider
	Recorder  ResultRecorder
	Queue     OfflineQueue
	Resync    QueueFlusher
	Logger    *zap.Logger
	Now       func() time.Time
}

// Engine owns at most one live session for a single user. It is not safe for
// concurrent use; callers serialize operations on one goroutine.
type Engine struct {
	identity  domain.Identity
	questions QuestionProvider
	recorder  ResultRecorder
	queue     OfflineQueue
	resync    QueueFlusher
	logger    *zap.Logger
	now       func() time.Time

	session *Session
	lastErr error
}

func NewEngine(identity domain.Identity, deps EngineDeps) *Engine {
	e := &Engine{
		identity:  identity,
		questions: deps.Questions,
		recorder:  deps.Recorder,
		queue:     deps.Queue,
		resync:    deps.Resync,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Start fetches questions and replaces any live session with a fresh one.
func (e *Engine) Start(ctx context.Context, tier domain.Tier, count int) (Session, error) {
	e.lastErr = nil
	if !e.identity.Authenticated() {
		e.lastErr = domain.ErrNotAuthenticated
		return Session{}, e.lastErr
	}
	if !tier.Valid() {
		e.lastErr = domain.ErrInvalidTier
		return Session{}, e.lastErr
	}
	if count <= 0 {
		count = DefaultQuestionCount
	}

	questions := e.questions.FetchQuestions(ctx, tier, count)
	if len(questions) == 0 {
		e.lastErr = domain.ErrNoQuestionsAvailable
		return Session{}, e.lastErr
	}

	e.session = &Session{
		ID:        uuid.NewString(),
		Tier:      tier,
		Questions: questions,
		Answers:   make([]string, 0, len(questions)),
		StartedAt: e.now(),
	}
	metrics.SessionsStarted.WithLabelValues(tier.String()).Inc()
	e.logger.Debug("session started",
		zap.String("session_id", e.session.ID),
		zap.String("user_id", e.identity.UserID),
		zap.Stringer("tier", tier),
		zap.Int("questions", len(questions)),
	)
	return e.session.clone(), nil
}

// Session returns a copy of the live session.
func (e *Engine) Session() (Session, bool) {
	if e.session == nil {
		return Session{}, false
	}
	return e.session.clone(), true
}

// State reports where the engine is in the session lifecycle.
func (e *Engine) State() SessionState {
	switch {
	case e.session == nil:
		return StateAbsent
	case e.session.Complete():
		return StateCompleting
	default:
		return StateActive
	}
}

// Err returns the last start failure, cleared by Reset or a new Start.
func (e *Engine) Err() error {
	return e.lastErr
}

// SubmitAnswer records key for the current question. It returns nil when there
// is no live session, the session is exhausted, or the current question was
// already answered. An empty key is a timeout and always scores zero.
func (e *Engine) SubmitAnswer(key string) *domain.AnswerOutcome {
	s := e.session
	if s == nil {
		return nil
	}
	question, ok := s.Current()
	if !ok || s.CurrentAnswered() || len(s.Answers) != s.Index {
		return nil
	}

	correct := key != domain.TimeoutAnswer && key == question.Answer
	points := questionPoints(s.Tier, correct, s.StartedAt, e.now(), len(s.Answers))

	s.Answers = append(s.Answers, key)
	s.Score += points

	outcome := "incorrect"
	switch {
	case key == domain.TimeoutAnswer:
		outcome = "timeout"
	case correct:
		outcome = "correct"
	}
	metrics.AnswersTotal.WithLabelValues(s.Tier.String(), outcome).Inc()

	return &domain.AnswerOutcome{
		IsCorrect:      correct,
		CorrectAnswer:  question.Answer,
		PointsAwarded:  points,
		IsLastQuestion: len(s.Answers) == len(s.Questions),
		Score:          s.Score,
	}
}

// Advance moves to the next question once the current one is answered.
func (e *Engine) Advance() (Session, bool) {
	s := e.session
	if s == nil || s.Index >= len(s.Questions) || !s.CurrentAnswered() {
		return Session{}, false
	}
	s.Index++
	return s.clone(), true
}

// Finish closes a session whose questions are all answered. Persistence
// failures are absorbed into the offline queue; the results are always returned.
func (e *Engine) Finish(ctx context.Context) *FinishOutcome {
	s := e.session
	if s == nil || !s.Complete() {
		return nil
	}
	e.session = nil

	results := buildResults(*s, e.now())
	out := &FinishOutcome{Results: results}
	metrics.SessionsFinished.WithLabelValues(s.Tier.String()).Inc()

	progress, err := e.recorder.Reconcile(ctx, e.identity.UserID, results)
	if err != nil {
		e.logger.Warn("persist results failed, queueing locally",
			zap.String("session_id", s.ID),
			zap.String("user_id", e.identity.UserID),
			zap.Error(err),
		)
		metrics.PersistenceFallbacks.Inc()
		e.enqueue(ctx, results)
		return out
	}

	out.Progress = progress
	out.Synced = true
	if e.resync != nil {
		if n, err := e.resync.Flush(ctx); err != nil {
			e.logger.Warn("offline resync stopped", zap.Int("synced", n), zap.Error(err))
		}
	}
	return out
}

// Reset discards any live session and clears the last error.
func (e *Engine) Reset() {
	e.session = nil
	e.lastErr = nil
}

func (e *Engine) enqueue(ctx context.Context, results domain.Results) {
	if e.queue == nil {
		return
	}
	entry := domain.PendingResult{
		UserID:   e.identity.UserID,
		Results:  results,
		QueuedAt: e.now(),
	}
	if err := e.queue.Enqueue(ctx, entry); err != nil {
		e.logger.Error("offline enqueue failed", zap.String("user_id", e.identity.UserID), zap.Error(err))
	}
}

// questionPoints scores one answer. The window for the n-th answer is assumed
// to open at start + n*maxTime rather than at the real moment it was shown.
func questionPoints(tier domain.Tier, correct bool, startedAt, now time.Time, answered int) int {
	if !correct {
		return 0
	}
	windowStart := startedAt.Add(time.Duration(answered) * tier.MaxTime())
	elapsed := math.Max(0, now.Sub(windowStart).Seconds())
	bonus := int(math.Max(0, math.Floor((tier.MaxTime().Seconds()-elapsed)/timeBonusStep)))
	return tier.BasePoints() + bonus
}

func buildResults(s Session, finishedAt time.Time) domain.Results {
	correct := 0
	for i, answer := range s.Answers {
		if answer != domain.TimeoutAnswer && answer == s.Questions[i].Answer {
			correct++
		}
	}
	total := len(s.Questions)
	return domain.Results{
		Score:          s.Score,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Accuracy:       float64(correct) / float64(total) * 100,
		TimeSpent:      int(finishedAt.Sub(s.StartedAt) / time.Second),
		Tier:           s.Tier,
		FinishedAt:     finishedAt,
	}
}
