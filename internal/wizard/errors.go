package wizard

import (
	"errors"
	"strings"
)

var (
	ErrBusy      = errors.New("wizard: a request is already in progress")
	ErrWrongStep = errors.New("wizard: action not available at this step")
	ErrClosed    = errors.New("wizard: closed")
)

// LeaderNotice replaces any server message about leader accounts.
// Leader accounts cannot reset their own password.
const LeaderNotice = "Leaders cannot reset their password through this system. Please contact an administrator."

// ValidationError is raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// RemoteRejection is a non-success response carrying a server message.
type RemoteRejection struct {
	Status     int
	Message    string
	Restricted bool
}

func (e *RemoteRejection) Error() string { return e.Message }

// RemoteUnavailable is a transport or decode failure.
type RemoteUnavailable struct {
	Message string
	Err     error
}

func (e *RemoteUnavailable) Error() string { return e.Message + ": " + e.Err.Error() }

func (e *RemoteUnavailable) Unwrap() error { return e.Err }

// Retryable reports whether err leaves the wizard interactive. Only closing
// the wizard or cancelling the caller's context is terminal.
func Retryable(err error) bool {
	if err == nil {
		return true
	}
	var (
		v *ValidationError
		r *RemoteRejection
		u *RemoteUnavailable
	)
	switch {
	case errors.As(err, &v), errors.As(err, &r), errors.As(err, &u):
		return true
	case errors.Is(err, ErrBusy), errors.Is(err, ErrWrongStep):
		return true
	}
	return false
}

// applyLeaderPolicy returns the message to show for a server message and
// whether it was rewritten.
func applyLeaderPolicy(msg string) (string, bool) {
	if strings.Contains(msg, "Leaders cannot reset") || strings.Contains(msg, "leader") {
		return LeaderNotice, true
	}
	return msg, false
}
