package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vibast-solutions/ms-go-tracker/app/dto"
	httpdto "github.com/vibast-solutions/ms-go-tracker/app/dto/http"
	"github.com/vibast-solutions/ms-go-tracker/app/entity"
	"github.com/vibast-solutions/ms-go-tracker/app/repository"
	"github.com/vibast-solutions/ms-go-tracker/config"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountDeleted     = errors.New("account has been deleted")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
)

const mysqlDuplicateEntry = 1062

type Claims struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, userID uint64, passwordHash string, now time.Time) error
	IncrementFailedLogins(ctx context.Context, userID uint64, now time.Time) error
	ResetFailedLogins(ctx context.Context, userID uint64, lastLogin time.Time) error
	SetVerified(ctx context.Context, userID uint64, now time.Time) error
	SoftDelete(ctx context.Context, userID uint64, now time.Time) (int64, error)
}

type tokenLedger interface {
	Issue(ctx context.Context, userID uint64, ttl time.Duration) (*entity.Token, error)
	Consume(ctx context.Context, tokenString string) (*entity.Token, error)
	InvalidateAllForUser(ctx context.Context, userID uint64) error
}

type UserAuthService interface {
	Register(ctx context.Context, req *httpdto.RegisterRequest) (*dto.RegisterResult, error)
	Login(ctx context.Context, req *httpdto.LoginRequest) (*dto.LoginResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (*dto.LoginResult, error)
	Me(ctx context.Context, userID uint64) (*entity.User, error)
	VerifyEmail(ctx context.Context, tokenString string) error
	ForgotPassword(ctx context.Context, email string) (*dto.RequestPasswordResetResult, error)
	ResetPassword(ctx context.Context, tokenString, newPassword string) error
	SoftDelete(ctx context.Context, userID uint64) error
	ValidateAccessToken(tokenString string) (*Claims, error)
}

type AsyncRunner func(task func())

type UserAuthServiceOption func(*userAuthService)

type userAuthService struct {
	db          *sql.DB
	userRepo    userRepository
	tokens      tokenLedger
	mailer      Mailer
	cfg         *config.Config
	asyncRunner AsyncRunner
}

func NewUserAuthService(
	db *sql.DB,
	userRepo userRepository,
	tokens tokenLedger,
	mailer Mailer,
	cfg *config.Config,
	opts ...UserAuthServiceOption,
) UserAuthService {
	svc := &userAuthService{
		db:       db,
		userRepo: userRepo,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) UserAuthServiceOption {
	return func(s *userAuthService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

func (s *userAuthService) Register(ctx context.Context, req *httpdto.RegisterRequest) (*dto.RegisterResult, error) {
	email := NormalizeEmail(req.Email)
	if !IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	if err := s.cfg.Password.Policy.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &entity.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         entity.RoleUser,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The account row and its verification token commit together, so a
	// failed token insert never strands an account nobody can verify.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err = repository.NewUserRepository(tx).Create(ctx, user); err != nil {
		// Two concurrent registrations can both pass the existence
		// check; the unique index on the active email breaks the tie.
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return nil, ErrUserExists
		}
		return nil, err
	}

	verifyToken := mintToken(user.ID, s.cfg.Tokens.VerifyTTL, now)
	if err = repository.NewTokenRepository(tx).Create(ctx, verifyToken); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	s.asyncRunner(func() {
		if sendErr := s.mailer.SendVerificationEmail(user.Email, user.FirstName, verifyToken.Token, verifyToken.ExpiresAt); sendErr != nil {
			logrus.WithError(sendErr).WithField("user_id", user.ID).Error("failed to send verification email")
		}
	})

	return &dto.RegisterResult{
		User:        user,
		VerifyToken: verifyToken.Token,
	}, nil
}

func (s *userAuthService) Login(ctx context.Context, req *httpdto.LoginRequest) (*dto.LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if !s.isLocked(user, now) {
			if incErr := s.userRepo.IncrementFailedLogins(ctx, user.ID, now); incErr != nil {
				logrus.WithError(incErr).WithField("user_id", user.ID).Error("failed to record failed login")
			}
		}
		return nil, ErrInvalidCredentials
	}

	if s.isLocked(user, now) {
		return nil, ErrAccountLocked
	}

	if err = s.userRepo.ResetFailedLogins(ctx, user.ID, now); err != nil {
		return nil, err
	}

	refreshTTL := s.cfg.JWT.RefreshTokenTTL
	if req.RememberMe {
		refreshTTL = s.cfg.JWT.RememberMeTokenTTL
	}

	return s.issueSession(ctx, user, refreshTTL)
}

// isLocked reports whether the failed-login counter has tripped the
// lockout and the cooldown window has not yet elapsed. A zero lockout
// duration means the lock only clears on a counter reset.
func (s *userAuthService) isLocked(user *entity.User, now time.Time) bool {
	if s.cfg.Lockout.Threshold <= 0 || user.FailedLoginAttempts < s.cfg.Lockout.Threshold {
		return false
	}
	if s.cfg.Lockout.Duration <= 0 {
		return true
	}
	return now.Sub(user.UpdatedAt) < s.cfg.Lockout.Duration
}

func (s *userAuthService) issueSession(ctx context.Context, user *entity.User, refreshTTL time.Duration) (*dto.LoginResult, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.Issue(ctx, user.ID, refreshTTL)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *userAuthService) RefreshSession(ctx context.Context, refreshToken string) (*dto.LoginResult, error) {
	token, err := s.tokens.Consume(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenAlreadyUsed):
			return nil, ErrInvalidToken
		case errors.Is(err, ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, err
		}
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Deleted {
		return nil, ErrInvalidToken
	}

	// Rotation must not shorten the session horizon: a remember-me
	// token carries its remaining lifetime into the replacement when
	// that exceeds the standard refresh TTL.
	ttl := s.cfg.JWT.RefreshTokenTTL
	if remaining := time.Until(token.ExpiresAt); remaining > ttl {
		ttl = remaining
	}

	return s.issueSession(ctx, user, ttl)
}

func (s *userAuthService) Me(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Deleted {
		return nil, ErrAccountDeleted
	}

	return user, nil
}

func (s *userAuthService) VerifyEmail(ctx context.Context, tokenString string) error {
	token, err := s.tokens.Consume(ctx, tokenString)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenAlreadyUsed):
			return ErrInvalidToken
		default:
			return err
		}
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	if user == nil || user.Deleted {
		return ErrInvalidToken
	}

	return s.userRepo.SetVerified(ctx, user.ID, time.Now().UTC())
}

func (s *userAuthService) ForgotPassword(ctx context.Context, email string) (*dto.RequestPasswordResetResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err = s.tokens.InvalidateAllForUser(ctx, user.ID); err != nil {
		return nil, err
	}

	resetToken, err := s.tokens.Issue(ctx, user.ID, s.cfg.Tokens.ResetTTL)
	if err != nil {
		return nil, err
	}

	s.asyncRunner(func() {
		if sendErr := s.mailer.SendPasswordResetEmail(user.Email, user.FirstName, resetToken.Token, resetToken.ExpiresAt); sendErr != nil {
			logrus.WithError(sendErr).WithField("user_id", user.ID).Error("failed to send password reset email")
		}
	})

	return &dto.RequestPasswordResetResult{ResetToken: resetToken.Token}, nil
}

func (s *userAuthService) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	if err := s.cfg.Password.Policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	token, err := s.tokens.Consume(ctx, tokenString)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenAlreadyUsed):
			return ErrInvalidToken
		default:
			return err
		}
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	if user == nil || user.Deleted {
		return ErrInvalidToken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err = s.userRepo.UpdatePassword(ctx, user.ID, string(hashedPassword), time.Now().UTC()); err != nil {
		return err
	}

	// Burn any remaining reset or refresh tokens so old sessions and
	// stale reset links die with the old password.
	return s.tokens.InvalidateAllForUser(ctx, user.ID)
}

func (s *userAuthService) SoftDelete(ctx context.Context, userID uint64) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Deleted {
		return nil
	}

	if _, err = s.userRepo.SoftDelete(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}

	return s.tokens.InvalidateAllForUser(ctx, userID)
}

func (s *userAuthService) generateAccessToken(user *entity.User) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

func (s *userAuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
