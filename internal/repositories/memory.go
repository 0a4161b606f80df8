package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"cleancharcoal/internal/models"
)

var (
	_ UserRepository          = (*MemoryUserRepository)(nil)
	_ PasswordResetRepository = (*MemoryPasswordResetRepository)(nil)
)

// MemoryUserRepository keeps users in process memory. Used when no
// database is configured and in tests.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]models.User
	now    func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[int]models.User{}, now: time.Now}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.byID {
		if u.Email == email {
			return ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.Email = email
	user.CreatedAt = r.now()
	r.byID[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, userID int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	r.byID[userID] = u
	return nil
}

// MemoryPasswordResetRepository keeps reset codes in process memory.
type MemoryPasswordResetRepository struct {
	mu     sync.Mutex
	nextID int
	rows   []models.PasswordReset
}

func NewMemoryPasswordResetRepository() *MemoryPasswordResetRepository {
	return &MemoryPasswordResetRepository{}
}

func (r *MemoryPasswordResetRepository) Create(_ context.Context, userID int, codeHash string, sentAt, expiresAt time.Time) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	pr := models.PasswordReset{
		ID:        r.nextID,
		UserID:    userID,
		CodeHash:  codeHash,
		SentAt:    sentAt,
		ExpiresAt: expiresAt,
	}
	r.rows = append(r.rows, pr)
	return &pr, nil
}

func (r *MemoryPasswordResetRepository) GetLatestByUserID(_ context.Context, userID int) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.PasswordReset
	for i := range r.rows {
		row := r.rows[i]
		if row.UserID != userID {
			continue
		}
		if latest == nil || !row.SentAt.Before(latest.SentAt) {
			latest = &row
		}
	}
	return latest, nil
}

func (r *MemoryPasswordResetRepository) CountRecentSends(_ context.Context, userID int, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.UserID == userID && row.SentAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryPasswordResetRepository) IncrementAttempts(_ context.Context, id int) (int, error) {
	var attempts int
	err := r.update(id, func(pr *models.PasswordReset) {
		pr.Attempts++
		attempts = pr.Attempts
	})
	return attempts, err
}

func (r *MemoryPasswordResetRepository) ExpireNow(_ context.Context, id int, now time.Time) error {
	return r.update(id, func(pr *models.PasswordReset) { pr.ExpiresAt = now })
}

func (r *MemoryPasswordResetRepository) MarkUsed(_ context.Context, id int, at time.Time) error {
	return r.update(id, func(pr *models.PasswordReset) { pr.UsedAt = &at })
}

func (r *MemoryPasswordResetRepository) InvalidateForUser(_ context.Context, userID int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].UserID == userID && r.rows[i].UsedAt == nil {
			t := at
			r.rows[i].UsedAt = &t
		}
	}
	return nil
}

func (r *MemoryPasswordResetRepository) update(id int, fn func(*models.PasswordReset)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			fn(&r.rows[i])
			return nil
		}
	}
	return ErrNotFound
}
