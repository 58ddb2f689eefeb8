package entity

import (
	"database/sql"
	"time"
)

type User struct {
	ID                  uint64
	FirstName           string
	LastName            string
	Email               string
	PasswordHash        string
	Role                string
	IsVerified          bool
	FailedLoginAttempts int
	LastLoginAt         sql.NullTime
	Deleted             bool
	DeletedAt           sql.NullTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Token is a single-use credential tied to one user. It is valid until it
// is consumed or expires, whichever comes first; neither state is ever
// reverted.
type Token struct {
	ID        uint64
	UserID    uint64
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Token) IsValid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
