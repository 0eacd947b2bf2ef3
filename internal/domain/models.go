package domain

import "time"

// Option keys for the four answer choices.
const (
	KeyA = "a"
	KeyB = "b"
	KeyC = "c"
	KeyD = "d"
)

// TimeoutAnswer is recorded when the countdown expires; it never matches a correct key.
const TimeoutAnswer = ""

// OptionKeys lists the answer keys in display order.
func OptionKeys() []string {
	return []string{KeyA, KeyB, KeyC, KeyD}
}

// Options holds the four labelled answer texts.
type Options struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
	C string `json:"c" yaml:"c"`
	D string `json:"d" yaml:"d"`
}

// Question models a multiple-choice question with exactly one correct key.
type Question struct {
	ID      string  `json:"id" yaml:"id"`
	Prompt  string  `json:"prompt" yaml:"prompt"`
	Options Options `json:"options" yaml:"options"`
	Answer  string  `json:"answer" yaml:"answer"`
	Tier    Tier    `json:"tier" yaml:"tier"`
}

// Valid reports whether the correct key is one of a..d.
func (q Question) Valid() bool {
	switch q.Answer {
	case KeyA, KeyB, KeyC, KeyD:
		return q.ID != "" && q.Tier.Valid()
	}
	return false
}

// Identity is the caller as reported by the identity provider.
type Identity struct {
	UserID string
	Name   string
}

// Authenticated reports whether the identity carries a user id.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// AnswerOutcome is returned by the engine for each accepted answer.
type AnswerOutcome struct {
	IsCorrect      bool   `json:"isCorrect"`
	CorrectAnswer  string `json:"correctAnswer"`
	PointsAwarded  int    `json:"points"`
	IsLastQuestion bool   `json:"isLastQuestion"`
	Score          int    `json:"score"`
}

// Results is the immutable summary of a finished session.
type Results struct {
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	Accuracy       float64   `json:"accuracy"`
	TimeSpent      int       `json:"timeSpent"` // seconds
	Tier           Tier      `json:"tier"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// UserProgress is the persisted per-user aggregate.
type UserProgress struct {
	UserID       string    `json:"userId"`
	MaxTier      Tier      `json:"maxTier"`
	TotalCorrect int       `json:"totalCorrect"`
	TotalPoints  int       `json:"totalPoints"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DefaultProgress is the progress assumed for a user without a row.
func DefaultProgress(userID string) UserProgress {
	return UserProgress{UserID: userID, MaxTier: TierFacil}
}

// PhaseResult is one append-only history row per finished session.
type PhaseResult struct {
	UserID         string    `json:"userId"`
	Tier           Tier      `json:"tier"`
	CorrectAnswers int       `json:"correctAnswers"`
	PointsEarned   int       `json:"pointsEarned"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Reconciliation reports the progression outcome of a finished session.
type Reconciliation struct {
	NewMaxTier      Tier `json:"newMaxTier"`
	UnlockedNewTier bool `json:"unlockedNewTier"`
}

// PendingResult is a local fallback queue entry awaiting resync.
type PendingResult struct {
	ID       int64     `json:"id"`
	UserID   string    `json:"userId"`
	Results  Results   `json:"results"`
	QueuedAt time.Time `json:"timestamp"`
	Synced   bool      `json:"synced"`
}

// RankingEntry is one row of the global ranking.
type RankingEntry struct {
	Name      string    `json:"name"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStats summarises a user's history for the dashboard.
type UserStats struct {
	TotalScore      int       `json:"totalScore"`
	TotalGames      int       `json:"totalGames"`
	AverageAccuracy float64   `json:"averageAccuracy"`
	MaxTier         Tier      `json:"maxTier"`
	LastPlayed      time.Time `json:"lastPlayed"`
}

// Performance is a PhaseResult annotated with its accuracy.
type Performance struct {
	PhaseResult
	Accuracy float64 `json:"accuracy"`
}

// PhaseCompleted is published after a session has been reconciled.
type PhaseCompleted struct {
	PhaseResult
	Reconciliation
}
