// Package console is the terminal front end of the reset wizard.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"cleancharcoal/internal/wizard"
)

// SyncWriter serializes writes to w. The presenter writes from the wizard's
// loop while prompts are written from the caller's goroutine.
func SyncWriter(w io.Writer) io.Writer {
	if sw, ok := w.(*syncWriter); ok {
		return sw
	}
	return &syncWriter{w: w}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var stepHeaders = map[wizard.Step]string{
	wizard.StepEmail:    "Step 1/3: enter the email address of your account.",
	wizard.StepCode:     "Step 2/3: enter the 5-digit code we sent to your email.",
	wizard.StepPassword: "Step 3/3: choose a new password.",
	wizard.StepSuccess:  "All done. You can now sign in with your new password.",
}

// Presenter renders wizard events as lines of text.
type Presenter struct {
	out     io.Writer
	verbose bool
}

// NewPresenter writes to out. Unless verbose is set, countdowns are printed
// at milestones only.
func NewPresenter(out io.Writer, verbose bool) *Presenter {
	return &Presenter{out: SyncWriter(out), verbose: verbose}
}

func (p *Presenter) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Handle is a wizard.Listener.
func (p *Presenter) Handle(e wizard.Event) {
	switch e.Kind {
	case wizard.EventStepChanged:
		if h, ok := stepHeaders[e.Step]; ok {
			p.printf("\n== %s", h)
		}
	case wizard.EventSubmitting:
		if e.Busy {
			p.printf("... please wait")
		}
	case wizard.EventFieldInvalid:
		p.printf("  ! %s", e.Message)
	case wizard.EventNotice:
		p.printf("[%s] %s: %s", strings.ToUpper(string(e.Level)), e.Title, e.Message)
	case wizard.EventExpiryTick:
		if p.verbose || expiryMilestone(e.Remaining) {
			p.printf("  code expires in %s%s", e.Display, expiringMark(e))
		}
	case wizard.EventCodeDisabled:
		p.printf("  the code can no longer be used; type 'resend' for a new one")
	case wizard.EventResendTick:
		if p.verbose || e.Remaining > 0 && e.Remaining%30 == 0 {
			p.printf("  %s", e.Display)
		}
	case wizard.EventResendEnabled:
		p.printf("  %s (type 'resend')", wizard.ResendDisplay(0))
	case wizard.EventCodeCleared:
		p.printf("  previous code discarded")
	}
}

func expiryMilestone(rem int) bool {
	switch {
	case rem <= 0:
		return false // reported by EventCodeDisabled and its notice
	case rem%60 == 0:
		return true
	case rem == 30 || rem == 10:
		return true
	}
	return false
}

func expiringMark(e wizard.Event) string {
	if e.Expiring {
		return " (expiring soon)"
	}
	return ""
}

// Status prints the current state in one block.
func (p *Presenter) Status(s wizard.State) {
	var b strings.Builder
	fmt.Fprintf(&b, "  step: %s", s.Step)
	if s.Email != "" {
		fmt.Fprintf(&b, ", email: %s", s.Email)
	}
	if s.Step == wizard.StepCode {
		fmt.Fprintf(&b, "\n  code: %s", wizard.ExpiryDisplay(s.ExpiryRemaining))
		if s.CodeDisabled {
			b.WriteString(" (disabled)")
		}
		fmt.Fprintf(&b, "\n  %s", wizard.ResendDisplay(s.ResendRemaining))
	}
	p.printf("%s", b.String())
}
