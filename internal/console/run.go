package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"cleancharcoal/internal/wizard"
)

// ErrAborted is returned when the user quits before finishing.
var ErrAborted = errors.New("console: aborted")

// Prompter reads one answer per call.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	// ReadSecret reads without echo when the input is a terminal.
	ReadSecret(prompt string) (string, error)
}

type linePrompter struct {
	r   *bufio.Reader
	out io.Writer
	fd  int
}

// NewPrompter reads lines from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) Prompter {
	p := &linePrompter{r: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

func (p *linePrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *linePrompter) ReadSecret(prompt string) (string, error) {
	if p.fd < 0 {
		return p.ReadLine(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Run drives w from p until the password is reset, the user quits, or
// input ends. Validation and server errors are shown by the presenter and
// the step is asked again.
func Run(ctx context.Context, w *wizard.Controller, p Prompter, pres *Presenter) error {
	for {
		s, err := w.Snapshot(ctx)
		if err != nil {
			return err
		}

		switch s.Step {
		case wizard.StepSuccess:
			return nil

		case wizard.StepEmail:
			line, err := p.ReadLine("Email: ")
			if err != nil {
				return fmt.Errorf("read email: %w", err)
			}
			if isQuit(line) {
				return ErrAborted
			}
			err = w.SubmitEmail(ctx, line)
			if err := settle(err); err != nil {
				return err
			}

		case wizard.StepCode:
			line, err := p.ReadLine("Code (or resend, status, quit): ")
			if err != nil {
				return fmt.Errorf("read code: %w", err)
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "quit", "exit":
				return ErrAborted
			case "status":
				now, err := w.Snapshot(ctx)
				if err != nil {
					return err
				}
				pres.Status(now)
				continue
			case "resend":
				err = w.Resend(ctx)
			default:
				err = w.SubmitCode(ctx, line)
			}
			if err := settle(err); err != nil {
				return err
			}

		case wizard.StepPassword:
			pw, err := p.ReadSecret("New password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			confirm, err := p.ReadSecret("Confirm new password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			err = w.SubmitPassword(ctx, pw, confirm)
			if err := settle(err); err != nil {
				return err
			}
		}
	}
}

func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "quit", "exit":
		return true
	}
	return false
}

// settle drops errors the presenter has already shown and that leave the
// wizard usable.
func settle(err error) error {
	if wizard.Retryable(err) {
		return nil
	}
	return err
}
