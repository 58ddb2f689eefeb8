package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-tracker/app/entity"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, password, role, is_verified,
		       failed_login_attempts, last_login_at, deleted, deleted_at, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (first_name, last_name, email, password, role, is_verified,
		                   failed_login_attempts, last_login_at, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsVerified,
		user.FailedLoginAttempts,
		user.LastLoginAt,
		user.Deleted,
		user.DeletedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*entity.User, error) {
	user := &entity.User{}
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsVerified,
		&user.FailedLoginAttempts,
		&user.LastLoginAt,
		&user.Deleted,
		&user.DeletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail only sees non-deleted users; a soft-deleted account is
// invisible to authentication and uniqueness checks.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE email = ? AND deleted = 0
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// FindByID returns the user regardless of deletion state; callers that
// must not see soft-deleted accounts check the Deleted flag themselves.
func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE id = ?
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND deleted = 0)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdatePassword also clears the failed-login counter in the same
// statement: completing a reset proves control of the account, so a
// prior lockout must not outlive the old password.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint64, passwordHash string, now time.Time) error {
	query := `
		UPDATE users SET password = ?, failed_login_attempts = 0, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	_, err := r.db.ExecContext(ctx, query, passwordHash, now, userID)
	return err
}

// IncrementFailedLogins is a single atomic UPDATE so concurrent failed
// attempts never lose counts to a read-modify-write race.
func (r *UserRepository) IncrementFailedLogins(ctx context.Context, userID uint64, now time.Time) error {
	query := `
		UPDATE users SET failed_login_attempts = failed_login_attempts + 1, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	_, err := r.db.ExecContext(ctx, query, now, userID)
	return err
}

func (r *UserRepository) ResetFailedLogins(ctx context.Context, userID uint64, lastLogin time.Time) error {
	query := `
		UPDATE users SET failed_login_attempts = 0, last_login_at = ?, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	_, err := r.db.ExecContext(ctx, query, lastLogin, lastLogin, userID)
	return err
}

func (r *UserRepository) SetVerified(ctx context.Context, userID uint64, now time.Time) error {
	query := `
		UPDATE users SET is_verified = 1, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	_, err := r.db.ExecContext(ctx, query, now, userID)
	return err
}

// SoftDelete is idempotent: a second call matches no rows and reports
// zero affected, which callers treat as success.
func (r *UserRepository) SoftDelete(ctx context.Context, userID uint64, now time.Time) (int64, error) {
	query := `
		UPDATE users SET deleted = 1, deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	result, err := r.db.ExecContext(ctx, query, now, now, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
