package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vibast-solutions/ms-go-tracker/app/entity"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenAlreadyUsed = errors.New("token already used")
	ErrTokenExpired     = errors.New("token expired")
)

type tokenRepository interface {
	Create(ctx context.Context, token *entity.Token) error
	FindByToken(ctx context.Context, tokenString string) (*entity.Token, error)
	Consume(ctx context.Context, tokenString string, now time.Time) (int64, error)
	InvalidateAllForUser(ctx context.Context, userID uint64, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenService manages the single-use token ledger backing email
// verification, password resets and refresh-token rotation.
type TokenService struct {
	tokenRepo tokenRepository
}

func NewTokenService(tokenRepo tokenRepository) *TokenService {
	return &TokenService{tokenRepo: tokenRepo}
}

// mintToken builds an unused opaque token; callers persist it through
// whatever DBTX they hold, inside or outside a transaction.
func mintToken(userID uint64, ttl time.Duration, now time.Time) *entity.Token {
	return &entity.Token{
		UserID:    userID,
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(ttl),
		Used:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Issue mints an opaque single-use token for the user with the given
// lifetime and persists it unused.
func (s *TokenService) Issue(ctx context.Context, userID uint64, ttl time.Duration) (*entity.Token, error) {
	token := mintToken(userID, ttl, time.Now().UTC())
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Consume atomically marks the token used. Exactly one caller can win
// for a given token string; everyone else gets a classification error.
// An expired token reports ErrTokenExpired even when it was also used.
func (s *TokenService) Consume(ctx context.Context, tokenString string) (*entity.Token, error) {
	now := time.Now().UTC()

	rows, err := s.tokenRepo.Consume(ctx, tokenString, now)
	if err != nil {
		return nil, err
	}

	token, err := s.tokenRepo.FindByToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrTokenNotFound
	}

	if rows == 1 {
		return token, nil
	}

	if !now.Before(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return nil, ErrTokenAlreadyUsed
}

// InvalidateAllForUser burns every outstanding token of the user.
func (s *TokenService) InvalidateAllForUser(ctx context.Context, userID uint64) error {
	return s.tokenRepo.InvalidateAllForUser(ctx, userID, time.Now().UTC())
}

// PurgeExpired deletes ledger rows whose lifetime has passed and
// returns how many were removed.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokenRepo.DeleteExpired(ctx, time.Now().UTC())
}
