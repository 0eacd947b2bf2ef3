package domain

import "errors"

var (
	// ErrNoQuestionsAvailable is returned when neither the store nor the bundled set has questions for a tier.
	ErrNoQuestionsAvailable = errors.New("no questions available for tier")
	// ErrNotAuthenticated is returned when a session is started without a user identity.
	ErrNotAuthenticated = errors.New("user not authenticated")
	// ErrInvalidStateTransition marks an engine operation called in the wrong session state.
	ErrInvalidStateTransition = errors.New("invalid session state transition")
	// ErrPersistenceUnavailable indicates the progress store could not be reached.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrInvalidTier indicates a tier outside 1..4.
	ErrInvalidTier = errors.New("invalid tier")
	// ErrTierLocked is returned when a user tries to play a tier above their max unlocked tier.
	ErrTierLocked = errors.New("tier locked")
	// ErrInvalidToken indicates a bearer token could not be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrProgressNotFound indicates no progress row exists for the user.
	ErrProgressNotFound = errors.New("progress not found")
)
