package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a request is missing required fields
	// or the answers value is not a proper sequence.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrSessionNotFound is returned when no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidToken is returned when the supplied token does not match the
	// session's stored token.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrAlreadySubmitted is returned on any submit after the first; repeated
	// submits are errors, not no-ops.
	ErrAlreadySubmitted = errors.New("session already submitted")
	// ErrAnswersLengthMismatch is returned when the answer count does not
	// equal the quiz's question count.
	ErrAnswersLengthMismatch = errors.New("answers length mismatch")
	// ErrQuizNotFound indicates the quiz id references no known quiz.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoQuestions indicates the quiz's question set could not be loaded
	// at submit time.
	ErrNoQuestions = errors.New("quiz questions could not be loaded")
	// ErrQuizFormat indicates quiz content that does not match the canonical
	// schema; structurally different input is rejected, never guessed at.
	ErrQuizFormat = errors.New("malformed quiz content")
	// ErrUserExists is returned when registering an already-taken username.
	ErrUserExists = errors.New("username already exists")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")
)
