package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleancharcoal/internal/models"
)

// PasswordResetRepository stores issued reset codes. Every send is a new row;
// only the latest one per user is ever checked.
type PasswordResetRepository interface {
	Create(ctx context.Context, userID int, codeHash string, sentAt, expiresAt time.Time) (*models.PasswordReset, error)
	// GetLatestByUserID returns nil, nil when the user never asked for a code.
	GetLatestByUserID(ctx context.Context, userID int) (*models.PasswordReset, error)
	// CountRecentSends counts codes sent strictly after since.
	CountRecentSends(ctx context.Context, userID int, since time.Time) (int, error)
	// IncrementAttempts adds one failed attempt and returns the new total.
	IncrementAttempts(ctx context.Context, id int) (int, error)
	ExpireNow(ctx context.Context, id int, now time.Time) error
	MarkUsed(ctx context.Context, id int, at time.Time) error
	// InvalidateForUser marks every unused code of the user as used.
	InvalidateForUser(ctx context.Context, userID int, at time.Time) error
}

type passwordResetRepository struct {
	DB *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{DB: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, userID int, codeHash string, sentAt, expiresAt time.Time) (*models.PasswordReset, error) {
	const q = `
		INSERT INTO password_resets (user_id, code_hash, sent_at, expires_at, attempts)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id
	`
	pr := &models.PasswordReset{UserID: userID, CodeHash: codeHash, SentAt: sentAt, ExpiresAt: expiresAt}
	if err := r.DB.QueryRowContext(ctx, q, userID, codeHash, sentAt, expiresAt).Scan(&pr.ID); err != nil {
		return nil, fmt.Errorf("password_reset create: %w", err)
	}
	return pr, nil
}

func (r *passwordResetRepository) GetLatestByUserID(ctx context.Context, userID int) (*models.PasswordReset, error) {
	const q = `
		SELECT id, user_id, code_hash, sent_at, expires_at, attempts, used_at
		FROM password_resets
		WHERE user_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT 1
	`
	pr := &models.PasswordReset{}
	var usedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, q, userID).Scan(
		&pr.ID, &pr.UserID, &pr.CodeHash, &pr.SentAt, &pr.ExpiresAt, &pr.Attempts, &usedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("password_reset latest: %w", err)
	}
	if usedAt.Valid {
		pr.UsedAt = &usedAt.Time
	}
	return pr, nil
}

func (r *passwordResetRepository) CountRecentSends(ctx context.Context, userID int, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM password_resets
		WHERE user_id = $1 AND sent_at > $2
	`
	var c int
	if err := r.DB.QueryRowContext(ctx, q, userID, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("password_reset count recent: %w", err)
	}
	return c, nil
}

func (r *passwordResetRepository) IncrementAttempts(ctx context.Context, id int) (int, error) {
	const q = `
		UPDATE password_resets
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("password_reset increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *passwordResetRepository) ExpireNow(ctx context.Context, id int, now time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE password_resets SET expires_at = $2 WHERE id = $1`, id, now)
	return err
}

func (r *passwordResetRepository) MarkUsed(ctx context.Context, id int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE password_resets SET used_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *passwordResetRepository) InvalidateForUser(ctx context.Context, userID int, at time.Time) error {
	const q = `
		UPDATE password_resets
		SET used_at = $2
		WHERE user_id = $1 AND used_at IS NULL
	`
	_, err := r.DB.ExecContext(ctx, q, userID, at)
	return err
}
