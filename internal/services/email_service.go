package services

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendPasswordResetCode(email, code string, ttl time.Duration) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
	dryRun bool
	log    zerolog.Logger
}

// NewEmailService sends through SMTP. With dryRun set, or without an SMTP
// host, the code is written to the log instead.
func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, dryRun bool, log zerolog.Logger) EmailService {
	return &emailService{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
		dryRun: dryRun || smtpHost == "",
		log:    log.With().Str("component", "email").Logger(),
	}
}

func (s *emailService) SendPasswordResetCode(email, code string, ttl time.Duration) error {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if s.dryRun {
		// Development only: this is how the code reaches the developer.
		s.log.Info().Str("to", email).Str("code", code).Int("valid_minutes", minutes).Msg("dry-run: password reset code")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your cleancharcoal password reset code")
	m.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s.\nIt expires in %d minutes.\nIf you did not ask to reset your password, ignore this email.\n",
		code, minutes,
	))
	m.AddAlternative("text/html", fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>Your verification code is <strong>%s</strong>.</p>
		<p>It expires in %d minutes.</p>
		<p>If you did not ask to reset your password, you can ignore this email.</p>
	`, code, minutes))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	s.log.Info().Str("to", email).Msg("password reset code sent")
	return nil
}
