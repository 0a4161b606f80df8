package wizard

import (
	"fmt"

	"cleancharcoal/internal/countdown"
)

// EventKind identifies what changed.
type EventKind int

const (
	// EventStepChanged carries the new Step.
	EventStepChanged EventKind = iota + 1
	// EventSubmitting toggles the submit control; Busy is true while a request is out.
	EventSubmitting
	// EventFieldInvalid carries a ValidationError's Field and Message.
	EventFieldInvalid
	// EventNotice is a transient message with Level, Title and Message.
	EventNotice
	// EventExpiryTick carries the code expiry countdown.
	EventExpiryTick
	// EventCodeDisabled fires when the code input becomes unusable after expiry.
	EventCodeDisabled
	// EventResendTick carries the resend cooldown.
	EventResendTick
	// EventResendEnabled fires when the resend action becomes available.
	EventResendEnabled
	// EventCodeCleared fires when the code input is emptied and re-enabled after a resend.
	EventCodeCleared
)

// Level of an EventNotice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is emitted to listeners on the wizard's loop goroutine.
type Event struct {
	Kind EventKind
	Step Step

	Busy bool

	Field   string
	Level   Level
	Title   string
	Message string

	Remaining int
	Display   string
	Expiring  bool
}

// Listener receives events in emission order. It runs on the wizard's loop
// and must not call back into the Controller synchronously.
type Listener func(Event)

// expiringThreshold is the remaining time from which the expiry display is
// highlighted.
const expiringThreshold = 60

// ExpiryDisplay renders the code expiry countdown.
func ExpiryDisplay(remaining int) string {
	if remaining <= 0 {
		return "Expired!"
	}
	return countdown.FormatClock(remaining)
}

// ResendDisplay renders the resend cooldown sentence.
func ResendDisplay(remaining int) string {
	if remaining <= 0 {
		return "You can now resend the code"
	}
	return fmt.Sprintf("You can resend in %d seconds", remaining)
}
