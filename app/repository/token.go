package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-tracker/app/entity"
)

type TokenRepository struct {
	db DBTX
}

func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *entity.Token) error {
	query := `
		INSERT INTO tokens (user_id, token, expires_at, used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
		token.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

func (r *TokenRepository) FindByToken(ctx context.Context, tokenString string) (*entity.Token, error) {
	query := `
		SELECT id, user_id, token, expires_at, used, created_at, updated_at
		FROM tokens WHERE token = ?
	`
	token := &entity.Token{}
	err := r.db.QueryRowContext(ctx, query, tokenString).Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.ExpiresAt,
		&token.Used,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Consume flips the used flag with a single conditional UPDATE. Under
// concurrent consumption of the same token string exactly one caller sees
// one affected row; everyone else sees zero and must inspect the row to
// learn why.
func (r *TokenRepository) Consume(ctx context.Context, tokenString string, now time.Time) (int64, error) {
	query := `
		UPDATE tokens SET used = 1, updated_at = ?
		WHERE token = ? AND used = 0 AND expires_at > ?
	`
	result, err := r.db.ExecContext(ctx, query, now, tokenString, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InvalidateAllForUser marks every outstanding token of a user as used,
// e.g. after a credential change or a fresh reset request.
func (r *TokenRepository) InvalidateAllForUser(ctx context.Context, userID uint64, now time.Time) error {
	query := `
		UPDATE tokens SET used = 1, updated_at = ?
		WHERE user_id = ? AND used = 0 AND expires_at > ?
	`
	_, err := r.db.ExecContext(ctx, query, now, userID, now)
	return err
}

// DeleteExpired is storage hygiene only; validity is always evaluated at
// consume time, so correctness never depends on this running.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM tokens WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
