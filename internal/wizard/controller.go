// Package wizard drives the three-step password reset flow: request a code
// by email, enter the code, choose a new password.
//
// All state lives on a single loop goroutine. User actions are executed on
// that loop, timer ticks are received by it, and remote calls run on the
// caller's goroutine so the countdowns keep moving while a request is out.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cleancharcoal/internal/countdown"
	"cleancharcoal/internal/models"
)

// Default countdowns, in seconds.
const (
	DefaultCodeTTL        = 300
	DefaultResendCooldown = 60
)

// API is the backend the wizard talks to. Rejections are reported as
// *models.APIError; anything else is treated as the service being unreachable.
type API interface {
	RequestCode(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
}

type Option func(*Controller)

// WithClock replaces the wall clock that drives both countdowns.
func WithClock(clock countdown.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.log = logger }
}

// WithDurations overrides the code expiry and resend cooldown in seconds.
func WithDurations(codeTTL, resendCooldown int) Option {
	return func(c *Controller) {
		c.codeTTL = codeTTL
		c.cooldown = resendCooldown
	}
}

type operation struct {
	name     string
	field    string
	fallback string
	retry    string
}

var (
	opSendCode = operation{
		name:     "send-code",
		field:    "email",
		fallback: "Failed to send verification code",
		retry:    "Failed to send verification code. Please try again.",
	}
	opResend = operation{
		name:     "resend-code",
		fallback: "Failed to resend verification code",
		retry:    "Failed to resend code. Please try again.",
	}
	opReset = operation{
		name:     "reset-password",
		fallback: "Failed to reset password",
		retry:    "Failed to reset password. Please try again.",
	}
)

const codeExpiredMessage = "The verification code has expired. Please request a new one."

// Controller is one run of the reset wizard.
type Controller struct {
	api      API
	clock    countdown.Clock
	log      zerolog.Logger
	codeTTL  int
	cooldown int

	mu        sync.Mutex
	listeners []Listener
	started   bool

	cmds      chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	state  State
	expiry *countdown.Timer
	resend *countdown.Timer
}

// NewController returns a wizard at the email step. Call Start before use.
func NewController(api API, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		clock:    countdown.RealClock(),
		log:      zerolog.Nop(),
		codeTTL:  DefaultCodeTTL,
		cooldown: DefaultResendCooldown,
		cmds:     make(chan func()),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().
		Str("component", "wizard").
		Str("session", uuid.NewString()).
		Logger()
	c.state.Step = StepEmail
	c.expiry = countdown.New(c.clock, c.codeTTL)
	c.resend = countdown.New(c.clock, c.cooldown)
	return c
}

// Subscribe registers a listener. Listeners added before Start also receive
// the initial step event.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Start runs the loop until ctx is done or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	go c.loop(ctx)
}

// Close stops the loop and both timers. Responses to requests still in
// flight are discarded and their callers get ErrClosed.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	c.mu.Lock()
	started := c.started
	c.started = true
	c.mu.Unlock()
	if !started {
		close(c.stopped)
		return
	}
	<-c.stopped
}

// Done is closed once the loop has exited.
func (c *Controller) Done() <-chan struct{} { return c.stopped }

func (c *Controller) loop(ctx context.Context) {
	defer close(c.stopped)
	defer func() {
		c.expiry.Cancel()
		c.resend.Cancel()
	}()

	c.log.Debug().Msg("wizard started")
	c.emit(Event{Kind: EventStepChanged, Step: c.state.Step})
	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Err(ctx.Err()).Msg("wizard stopped")
			return
		case <-c.quit:
			c.log.Debug().Msg("wizard closed")
			return
		case fn := <-c.cmds:
			fn()
		case <-c.expiry.C():
			c.onExpiryTick()
		case <-c.resend.C():
			c.onResendTick()
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case c.cmds <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrClosed
	}
	<-done
	return nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (State, error) {
	var s State
	err := c.do(ctx, func() { s = c.snapshot() })
	return s, err
}

func (c *Controller) snapshot() State {
	s := c.state
	s.ExpiryRemaining = c.expiry.Remaining()
	s.ExpiryRunning = c.expiry.Running()
	s.ResendRemaining = c.resend.Remaining()
	s.ResendRunning = c.resend.Running()
	return s
}

// SubmitEmail validates the address, asks the server to send a code and,
// on success, moves to the code step with both countdowns started.
func (c *Controller) SubmitEmail(ctx context.Context, raw string) error {
	var (
		email string
		verr  error
	)
	err := c.do(ctx, func() {
		if verr = c.ready(StepEmail); verr != nil {
			return
		}
		if email, verr = ValidateEmail(raw); verr != nil {
			c.invalid(verr)
			return
		}
		c.setSubmitting(true)
	})
	if err != nil {
		return err
	}
	if verr != nil {
		return verr
	}

	c.log.Info().Str("email", email).Msg("requesting reset code")
	callErr := c.api.RequestCode(ctx, email)

	var result error
	err = c.do(context.Background(), func() {
		c.setSubmitting(false)
		if callErr != nil {
			result = c.fail(opSendCode, callErr)
			return
		}
		c.state.Email = email
		c.notice(LevelSuccess, "Code Sent", "Verification code sent to "+email)
		c.enter(StepCode)
	})
	if err != nil {
		return err
	}
	return result
}

// SubmitCode checks the code format and moves to the password step. The
// code is not sent to the server until the new password is submitted.
func (c *Controller) SubmitCode(ctx context.Context, raw string) error {
	var verr error
	err := c.do(ctx, func() {
		if c.state.Step != StepCode {
			verr = ErrWrongStep
			return
		}
		if c.state.CodeDisabled {
			verr = &ValidationError{Field: "code", Message: codeExpiredMessage}
			c.invalid(verr)
			return
		}
		code, err := ValidateCode(raw)
		if err != nil {
			verr = err
			c.invalid(err)
			return
		}
		c.state.Code = code
		c.notice(LevelSuccess, "Success", "Code accepted. Please set your new password.")
		c.enter(StepPassword)
	})
	if err != nil {
		return err
	}
	return verr
}

// Resend asks for a new code once the resend cooldown is over. On success
// both countdowns restart, the code input is cleared and enabled again.
func (c *Controller) Resend(ctx context.Context) error {
	var (
		email string
		verr  error
	)
	err := c.do(ctx, func() {
		if c.state.Step != StepCode {
			verr = ErrWrongStep
			return
		}
		if rem := c.resend.Remaining(); rem > 0 {
			msg := fmt.Sprintf("You can resend the code in %d seconds", rem)
			verr = &ValidationError{Field: "resend", Message: msg}
			c.notice(LevelWarning, "Please Wait", msg)
			return
		}
		if c.state.Submitting {
			verr = ErrBusy
			return
		}
		email = c.state.Email
		c.setSubmitting(true)
	})
	if err != nil {
		return err
	}
	if verr != nil {
		return verr
	}

	c.log.Info().Str("email", email).Msg("resending reset code")
	callErr := c.api.RequestCode(ctx, email)

	var result error
	err = c.do(context.Background(), func() {
		c.setSubmitting(false)
		if callErr != nil {
			result = c.fail(opResend, callErr)
			return
		}
		if c.state.Step != StepCode {
			c.log.Debug().Stringer("step", c.state.Step).Msg("discarding resend result")
			return
		}
		c.state.Code = ""
		c.startTimers()
		c.emit(Event{Kind: EventCodeCleared, Step: StepCode})
		c.notice(LevelSuccess, "Code Resent", "A new verification code has been sent to your email")
	})
	if err != nil {
		return err
	}
	return result
}

// SubmitPassword sends email, code and the new password to the server,
// which verifies the code. On success the wizard reaches StepSuccess.
func (c *Controller) SubmitPassword(ctx context.Context, newPassword, confirm string) error {
	var (
		req  models.ResetPasswordRequest
		verr error
	)
	err := c.do(ctx, func() {
		if verr = c.ready(StepPassword); verr != nil {
			return
		}
		if verr = ValidatePasswords(newPassword, confirm); verr != nil {
			c.invalid(verr)
			return
		}
		req = models.ResetPasswordRequest{
			Email:           c.state.Email,
			OTP:             c.state.Code,
			NewPassword:     newPassword,
			ConfirmPassword: confirm,
		}
		c.setSubmitting(true)
	})
	if err != nil {
		return err
	}
	if verr != nil {
		return verr
	}

	c.log.Info().Str("email", req.Email).Msg("submitting new password")
	callErr := c.api.ResetPassword(ctx, req)

	var result error
	err = c.do(context.Background(), func() {
		c.setSubmitting(false)
		if callErr != nil {
			result = c.fail(opReset, callErr)
			return
		}
		c.log.Info().Str("email", req.Email).Msg("password reset")
		c.enter(StepSuccess)
		c.notice(LevelSuccess, "Success", "Your password has been reset successfully!")
	})
	if err != nil {
		return err
	}
	return result
}

func (c *Controller) ready(step Step) error {
	if c.state.Step != step {
		return ErrWrongStep
	}
	if c.state.Submitting {
		return ErrBusy
	}
	return nil
}

func (c *Controller) enter(step Step) {
	c.state.Step = step
	c.emit(Event{Kind: EventStepChanged, Step: step})
	if step == StepCode {
		c.startTimers()
		return
	}
	c.expiry.Cancel()
	c.resend.Cancel()
}

func (c *Controller) startTimers() {
	c.state.CodeDisabled = false
	c.expiry.Start()
	c.resend.Start()
	c.emitExpiry(c.expiry.Remaining())
	c.emitResend(c.resend.Remaining())
}

func (c *Controller) onExpiryTick() {
	rem, zero := c.expiry.Tick()
	c.emitExpiry(rem)
	if !zero {
		return
	}
	c.state.CodeDisabled = true
	c.log.Info().Msg("reset code expired")
	c.emit(Event{Kind: EventCodeDisabled, Step: c.state.Step})
	c.notice(LevelError, "Code Expired", codeExpiredMessage)
}

func (c *Controller) onResendTick() {
	rem, zero := c.resend.Tick()
	c.emitResend(rem)
	if zero {
		c.emit(Event{Kind: EventResendEnabled, Step: c.state.Step})
	}
}

func (c *Controller) emitExpiry(rem int) {
	c.emit(Event{
		Kind:      EventExpiryTick,
		Step:      c.state.Step,
		Remaining: rem,
		Display:   ExpiryDisplay(rem),
		Expiring:  rem > 0 && rem <= expiringThreshold,
	})
}

func (c *Controller) emitResend(rem int) {
	c.emit(Event{
		Kind:      EventResendTick,
		Step:      c.state.Step,
		Remaining: rem,
		Display:   ResendDisplay(rem),
	})
}

func (c *Controller) setSubmitting(busy bool) {
	c.state.Submitting = busy
	c.emit(Event{Kind: EventSubmitting, Step: c.state.Step, Busy: busy})
}

func (c *Controller) invalid(err error) {
	var v *ValidationError
	if errors.As(err, &v) {
		c.emit(Event{Kind: EventFieldInvalid, Step: c.state.Step, Field: v.Field, Message: v.Message})
	}
}

func (c *Controller) notice(level Level, title, msg string) {
	c.emit(Event{Kind: EventNotice, Step: c.state.Step, Level: level, Title: title, Message: msg})
}

// fail turns a remote error into the wizard's error taxonomy and reports it.
// The state is left as it was before the request.
func (c *Controller) fail(op operation, err error) error {
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		c.log.Error().Err(err).Str("op", op.name).Msg("request failed")
		c.notice(LevelError, "Error", op.retry)
		return &RemoteUnavailable{Message: op.retry, Err: err}
	}

	raw := apiErr.Message
	if raw == "" {
		raw = op.fallback
	}
	msg, restricted := applyLeaderPolicy(raw)
	c.log.Warn().
		Str("op", op.name).
		Int("status", apiErr.StatusCode).
		Str("message", raw).
		Msg("request rejected")

	title := "Error"
	if restricted {
		title = "Access Restricted"
	}
	c.notice(LevelError, title, msg)
	if op.field != "" {
		c.emit(Event{Kind: EventFieldInvalid, Step: c.state.Step, Field: op.field, Message: msg})
	}
	return &RemoteRejection{Status: apiErr.StatusCode, Message: msg, Restricted: restricted}
}

func (c *Controller) emit(e Event) {
	c.mu.Lock()
	ls := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range ls {
		l(e)
	}
}
