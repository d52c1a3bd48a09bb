package session

import "errors"

// Error kinds shared by the store client and the progress tracker. Callers match
// them with errors.Is; the wrapped message carries the detail.
var (
	// ErrNotFound means the session or step does not exist. Not retryable.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the credential is missing, expired or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransientIO covers network failures and 5xx/429 answers. Retryable.
	ErrTransientIO = errors.New("transient io failure")
	// ErrBusy is returned while another submission for the session is pending.
	ErrBusy = errors.New("submission already in flight")
	// ErrValidation marks a bad choice label or index. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a mutation attempted in a state that forbids it.
	ErrConflict = errors.New("state conflict")
)

// Retryable reports whether err may succeed when repeated unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientIO) || errors.Is(err, ErrBusy)
}
