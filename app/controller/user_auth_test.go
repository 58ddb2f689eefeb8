package controller_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-tracker/app/controller"
	"github.com/vibast-solutions/ms-go-tracker/app/entity"
	"github.com/vibast-solutions/ms-go-tracker/app/repository"
	"github.com/vibast-solutions/ms-go-tracker/app/service"
	"github.com/vibast-solutions/ms-go-tracker/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	findUserByEmailQuery = `(?s)SELECT id, first_name, last_name, email, password, role, is_verified,\s+failed_login_attempts, last_login_at, deleted, deleted_at, created_at, updated_at\s+FROM users WHERE email = \? AND deleted = 0`
	findUserByIDQuery    = `(?s)SELECT id, first_name, last_name, email, password, role, is_verified,\s+failed_login_attempts, last_login_at, deleted, deleted_at, created_at, updated_at\s+FROM users WHERE id = \?`
	existsByEmailQuery   = `(?s)SELECT EXISTS\(SELECT 1 FROM users WHERE email = \? AND deleted = 0\)`
	insertUserQuery      = `(?s)INSERT INTO users \(first_name, last_name, email, password, role, is_verified,\s+failed_login_attempts, last_login_at, deleted, deleted_at, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?, \?\)`
	resetFailedQuery     = `(?s)UPDATE users SET failed_login_attempts = 0, last_login_at = \?, updated_at = \?\s+WHERE id = \? AND deleted = 0`
	insertTokenQuery     = `(?s)INSERT INTO tokens \(user_id, token, expires_at, used, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?\)`
	consumeTokenQuery    = `(?s)UPDATE tokens SET used = 1, updated_at = \?\s+WHERE token = \? AND used = 0 AND expires_at > \?`
	findByTokenQuery     = `(?s)SELECT id, user_id, token, expires_at, used, created_at, updated_at\s+FROM tokens WHERE token = \?`
	setVerifiedQuery     = `(?s)UPDATE users SET is_verified = 1, updated_at = \?\s+WHERE id = \? AND deleted = 0`
)

var userColumns = []string{
	"id",
	"first_name",
	"last_name",
	"email",
	"password",
	"role",
	"is_verified",
	"failed_login_attempts",
	"last_login_at",
	"deleted",
	"deleted_at",
	"created_at",
	"updated_at",
}

var tokenColumns = []string{
	"id",
	"user_id",
	"token",
	"expires_at",
	"used",
	"created_at",
	"updated_at",
}

type controllerFacade struct {
	user *controller.UserAuthController
	app  *controller.ApplicationController
}

func newControllerWithMock(t *testing.T) (*controllerFacade, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    7 * 24 * time.Hour,
			RememberMeTokenTTL: 30 * 24 * time.Hour,
		},
		Tokens: config.TokenConfig{
			VerifyTTL: 24 * time.Hour,
			ResetTTL:  10 * time.Minute,
		},
		Lockout: config.LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		Password: config.PasswordConfig{
			Policy: config.PasswordPolicy{MinLength: 8},
		},
	}

	tokens := service.NewTokenService(repository.NewTokenRepository(db))
	userAuthService := service.NewUserAuthService(
		db,
		repository.NewUserRepository(db),
		tokens,
		service.NewMailer(cfg),
		cfg,
		service.WithAsyncRunner(func(task func()) { task() }),
	)
	applicationService := service.NewApplicationService(db, repository.NewApplicationRepository(db))

	facade := &controllerFacade{
		user: controller.NewUserAuthController(userAuthService),
		app:  controller.NewApplicationController(applicationService),
	}
	return facade, mock, func() { _ = db.Close() }
}

func newJSONRequest(t *testing.T, method, path string, body any) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestRegister_Success(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	mock.ExpectQuery(existsByEmailQuery).
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(insertUserQuery).
		WithArgs(
			"Jane", "Doe", "jane@example.com",
			sqlmock.AnyArg(), entity.RoleUser, false,
			0, sqlmock.AnyArg(), false, sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertTokenQuery).
		WithArgs(uint64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/user/register", map[string]string{
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jane@example.com",
		"password":   "password123",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.Register(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if body["email"] != "jane@example.com" {
		t.Fatalf("unexpected email: %v", body["email"])
	}
	if body["verify_token"] == "" {
		t.Fatal("expected verify_token to be set")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	facade, _, cleanup := newControllerWithMock(t)
	defer cleanup()

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/user/register", map[string]string{
		"email":    "jane@example.com",
		"password": "password123",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.Register(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "first_name") {
		t.Fatalf("expected first_name error, got %s", rec.Body.String())
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	mock.ExpectQuery(existsByEmailQuery).
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/user/register", map[string]string{
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jane@example.com",
		"password":   "password123",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.Register(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func expectLoginUser(t *testing.T, mock sqlmock.Sqlmock, email, password string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs(email).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			uint64(1), "Jane", "Doe", email, string(hash), entity.RoleUser,
			true, 0, nil, false, nil, now, now,
		))
}

func TestLogin_Success(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	expectLoginUser(t, mock, "jane@example.com", "password123")
	mock.ExpectExec(resetFailedQuery).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTokenQuery).
		WithArgs(uint64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(10, 1))

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/login", map[string]any{
		"email":    "jane@example.com",
		"password": "password123",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.Login(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatalf("expected tokens in response, got %s", rec.Body.String())
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("jane@example.com").
		WillReturnError(sql.ErrNoRows)

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email":    "jane@example.com",
		"password": "bad-password",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.Login(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestLogin_Locked(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	now := time.Now()
	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			uint64(1), "Jane", "Doe", "jane@example.com", string(hash), entity.RoleUser,
			true, 5, nil, false, nil, now, now,
		))

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email":    "jane@example.com",
		"password": "password123",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.Login(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestVerifyEmail_Success(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectExec(consumeTokenQuery).
		WithArgs(sqlmock.AnyArg(), "verify-token", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(findByTokenQuery).
		WithArgs("verify-token").
		WillReturnRows(sqlmock.NewRows(tokenColumns).AddRow(
			uint64(9), uint64(1), "verify-token", now.Add(time.Hour), true, now, now,
		))
	mock.ExpectQuery(findUserByIDQuery).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			uint64(1), "Jane", "Doe", "jane@example.com", "hash", entity.RoleUser,
			false, 0, nil, false, nil, now, now,
		))
	mock.ExpectExec(setVerifiedQuery).
		WithArgs(sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/verify-email", map[string]string{
		"token": "verify-token",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.VerifyEmail(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestForgotPassword_MasksUnknownEmail(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	req, rec := newJSONRequest(t, http.MethodPost, "/api/v1/forgot-password", map[string]string{
		"email": "ghost@example.com",
	})
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.ForgotPassword(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "not found") {
		t.Fatalf("response must not reveal unknown emails: %s", rec.Body.String())
	}
}

func TestMe_Unauthorized(t *testing.T) {
	facade, _, cleanup := newControllerWithMock(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	rec := httptest.NewRecorder()
	e := echo.New()
	ctx := e.NewContext(req, rec)

	if err := facade.user.Me(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestMe_Success(t *testing.T) {
	facade, mock, cleanup := newControllerWithMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(findUserByIDQuery).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			uint64(1), "Jane", "Doe", "jane@example.com", "hash", entity.RoleUser,
			true, 0, now, false, nil, now, now,
		))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	rec := httptest.NewRecorder()
	e := echo.New()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", uint64(1))

	if err := facade.user.Me(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if body["email"] != "jane@example.com" || body["role"] != entity.RoleUser {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
