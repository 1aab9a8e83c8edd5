package domain

import "errors"

// Domain errors
var (
	ErrInvalidScore     = errors.New("invalid score value")
	ErrInvalidPlayer    = errors.New("invalid player name")
	ErrInvalidSession   = errors.New("invalid session id")
	ErrInvalidRequest   = errors.New("invalid input data")
	ErrInternalError    = errors.New("internal server error")
	ErrStoreUnavailable = errors.New("score store unavailable")
	ErrCacheMiss        = errors.New("leaderboard cache miss")
)

// IsValidationError reports whether err rejects client input rather than
// signalling an infrastructure failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, ErrInvalidPlayer) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrInvalidRequest)
}
