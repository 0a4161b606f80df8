package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cleancharcoal/internal/authz"
	"cleancharcoal/internal/models"
	"cleancharcoal/internal/repositories"
	"cleancharcoal/internal/utils"
)

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrUserNotFound     = errors.New("user not found")
	ErrLeaderAccount    = errors.New("leader accounts cannot self-service reset")
	ErrResendThrottled  = errors.New("resend throttled")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrCodeInvalid      = errors.New("code invalid")
	ErrCodeExpired      = errors.New("code expired")
	ErrTooManyAttempts  = errors.New("too many attempts")
)

const (
	defaultCodeTTL      = 5 * time.Minute
	defaultResendWindow = time.Minute
	defaultMaxAttempts  = 5
	codeDigits          = 5
)

type PasswordResetService interface {
	// RequestReset issues a fresh code for email and delivers it.
	RequestReset(ctx context.Context, email string) error
	// ResetPassword checks the code and stores the new password.
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
}

type PasswordResetOptions struct {
	CodeTTL time.Duration
	// ResendWindow is the minimum gap between two codes; zero disables it.
	ResendWindow time.Duration
	MaxAttempts  int
	Now          func() time.Time
	Logger       zerolog.Logger
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	repo     repositories.PasswordResetRepository
	emails   EmailService
	auth     AuthService

	codeTTL      time.Duration
	resendWindow time.Duration
	maxAttempts  int
	now          func() time.Time
	log          zerolog.Logger
}

func NewPasswordResetService(
	userRepo repositories.UserRepository,
	repo repositories.PasswordResetRepository,
	emails EmailService,
	auth AuthService,
	opts PasswordResetOptions,
) PasswordResetService {
	s := &passwordResetService{
		userRepo:     userRepo,
		repo:         repo,
		emails:       emails,
		auth:         auth,
		codeTTL:      opts.CodeTTL,
		resendWindow: opts.ResendWindow,
		maxAttempts:  opts.MaxAttempts,
		now:          opts.Now,
		log:          opts.Logger.With().Str("component", "password-reset").Logger(),
	}
	if s.codeTTL <= 0 {
		s.codeTTL = defaultCodeTTL
	}
	if s.resendWindow < 0 {
		s.resendWindow = defaultResendWindow
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lookup finds the account and applies the role policy.
func (s *passwordResetService) lookup(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !authz.CanSelfServiceReset(user.Role) {
		return nil, ErrLeaderAccount
	}
	return user, nil
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		s.log.Info().Str("email", email).Err(err).Msg("reset request refused")
		return err
	}

	now := s.now()
	if s.resendWindow > 0 {
		cnt, err := s.repo.CountRecentSends(ctx, user.ID, now.Add(-s.resendWindow))
		if err != nil {
			return err
		}
		if cnt > 0 {
			return ErrResendThrottled
		}
	}

	code, err := utils.GenerateOTP(codeDigits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	codeHash, err := s.auth.HashPassword(code)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	if err := s.repo.InvalidateForUser(ctx, user.ID, now); err != nil {
		return err
	}
	pr, err := s.repo.Create(ctx, user.ID, codeHash, now, now.Add(s.codeTTL))
	if err != nil {
		return err
	}

	if err := s.emails.SendPasswordResetCode(user.Email, code, s.codeTTL); err != nil {
		s.log.Error().Err(err).Int("user_id", user.ID).Msg("code delivery failed")
		return err
	}
	s.log.Info().Int("user_id", user.ID).Int("reset_id", pr.ID).Msg("reset code issued")
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	email := normalizeEmail(req.Email)
	code := strings.TrimSpace(req.OTP)
	if email == "" {
		return ErrEmailRequired
	}
	if strings.TrimSpace(req.NewPassword) == "" {
		return ErrPasswordRequired
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}

	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}

	pr, err := s.repo.GetLatestByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	if pr == nil || pr.UsedAt != nil {
		return ErrCodeInvalid
	}
	now := s.now()
	if !now.Before(pr.ExpiresAt) {
		return ErrCodeExpired
	}

	if !s.auth.CheckPassword(pr.CodeHash, code) {
		attempts, err := s.repo.IncrementAttempts(ctx, pr.ID)
		if err != nil {
			return err
		}
		s.log.Info().Int("user_id", user.ID).Int("attempts", attempts).Msg("wrong reset code")
		if attempts >= s.maxAttempts {
			if err := s.repo.ExpireNow(ctx, pr.ID, now); err != nil {
				s.log.Error().Err(err).Int("reset_id", pr.ID).Msg("expire code")
			}
			return ErrTooManyAttempts
		}
		return ErrCodeInvalid
	}

	hash, err := s.auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.repo.MarkUsed(ctx, pr.ID, now); err != nil {
		return err
	}
	s.log.Info().Int("user_id", user.ID).Msg("password reset")
	return nil
}

// SeedUser creates an account with a hashed password unless the email is
// already registered.
func SeedUser(ctx context.Context, users repositories.UserRepository, auth AuthService, email, fullName, role, password string) error {
	if !authz.IsKnown(role) {
		return fmt.Errorf("seed %s: unknown role %q", email, role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	err = users.Create(ctx, &models.User{
		Email:        normalizeEmail(email),
		FullName:     fullName,
		PasswordHash: hash,
		Role:         strings.ToLower(strings.TrimSpace(role)),
	})
	if errors.Is(err, repositories.ErrDuplicateEmail) {
		return nil
	}
	return err
}
