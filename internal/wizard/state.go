package wizard

// Step is the wizard's position in the reset flow.
type Step int

const (
	StepEmail    Step = 1
	StepCode     Step = 2
	StepPassword Step = 3
	StepSuccess  Step = 4
)

func (s Step) String() string {
	switch s {
	case StepEmail:
		return "awaiting-email"
	case StepCode:
		return "awaiting-code"
	case StepPassword:
		return "awaiting-new-password"
	case StepSuccess:
		return "success"
	}
	return "unknown"
}

// State is a snapshot of the wizard. Email and Code are kept for the final
// submission once entered.
type State struct {
	Step            Step
	Email           string
	Code            string
	CodeDisabled    bool
	Submitting      bool
	ExpiryRemaining int
	ExpiryRunning   bool
	ResendRemaining int
	ResendRunning   bool
}

// CanResend reports whether the resend action is currently permitted.
func (s State) CanResend() bool {
	return s.Step == StepCode && s.ResendRemaining <= 0 && !s.Submitting
}
