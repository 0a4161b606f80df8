package models

import "time"

// PasswordReset is one issued one-time code. Only the bcrypt hash of the
// code is kept.
type PasswordReset struct {
	ID        int        `json:"id"`
	UserID    int        `json:"user_id"`
	CodeHash  string     `json:"-"`
	SentAt    time.Time  `json:"sent_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Attempts  int        `json:"attempts"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
