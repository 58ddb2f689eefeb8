package http

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	var body RegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return errors.New("first_name and last_name are required")
	}
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Password) == "" {
		return errors.New("email and password are required")
	}

	return nil
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Password) == "" {
		return errors.New("email and password are required")
	}

	return nil
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func NewRefreshTokenRequestFromContext(ctx echo.Context) (*RefreshTokenRequest, error) {
	var body RefreshTokenRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *RefreshTokenRequest) Validate() error {
	if strings.TrimSpace(r.RefreshToken) == "" {
		return errors.New("refresh_token is required")
	}

	return nil
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func NewVerifyEmailRequestFromContext(ctx echo.Context) (*VerifyEmailRequest, error) {
	var body VerifyEmailRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *VerifyEmailRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}

	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func NewForgotPasswordRequestFromContext(ctx echo.Context) (*ForgotPasswordRequest, error) {
	var body ForgotPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ForgotPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}

	return nil
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" || strings.TrimSpace(r.NewPassword) == "" {
		return errors.New("token and new_password are required")
	}

	return nil
}

type CreateApplicationRequest struct {
	Company         string  `json:"company"`
	Position        string  `json:"position"`
	Website         *string `json:"website,omitempty"`
	ApplicationType string  `json:"application_type"`
}

func NewCreateApplicationRequestFromContext(ctx echo.Context) (*CreateApplicationRequest, error) {
	var body CreateApplicationRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *CreateApplicationRequest) Validate() error {
	if strings.TrimSpace(r.Company) == "" || strings.TrimSpace(r.Position) == "" {
		return errors.New("company and position are required")
	}
	if strings.TrimSpace(r.ApplicationType) == "" {
		return errors.New("application_type is required")
	}

	return nil
}

type UpdateApplicationRequest struct {
	Company         string  `json:"company"`
	Position        string  `json:"position"`
	Website         *string `json:"website,omitempty"`
	ApplicationType string  `json:"application_type"`
}

func NewUpdateApplicationRequestFromContext(ctx echo.Context) (*UpdateApplicationRequest, error) {
	var body UpdateApplicationRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *UpdateApplicationRequest) Validate() error {
	if strings.TrimSpace(r.Company) == "" || strings.TrimSpace(r.Position) == "" {
		return errors.New("company and position are required")
	}
	if strings.TrimSpace(r.ApplicationType) == "" {
		return errors.New("application_type is required")
	}

	return nil
}

type AppendStatusRequest struct {
	ApplicationID uint64  `json:"application_id"`
	StatusType    string  `json:"status_type"`
	TestType      *string `json:"test_type,omitempty"`
	InterviewType *string `json:"interview_type,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

func NewAppendStatusRequestFromContext(ctx echo.Context) (*AppendStatusRequest, error) {
	var body AppendStatusRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *AppendStatusRequest) Validate() error {
	if r.ApplicationID == 0 {
		return errors.New("application_id is required")
	}
	if strings.TrimSpace(r.StatusType) == "" {
		return errors.New("status_type is required")
	}

	return nil
}

type ListApplicationsRequest struct {
	Search string
	Status string
	From   *time.Time
	To     *time.Time
	Page   int
	Size   int
}

// NewListApplicationsRequestFromContext reads the list filters from the
// query string. Dates use the 2006-01-02 layout.
func NewListApplicationsRequestFromContext(ctx echo.Context) (*ListApplicationsRequest, error) {
	req := &ListApplicationsRequest{
		Search: strings.TrimSpace(ctx.QueryParam("search")),
		Status: strings.TrimSpace(ctx.QueryParam("status")),
		Page:   1,
		Size:   20,
	}

	if raw := ctx.QueryParam("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, errors.New("from must be a date in YYYY-MM-DD format")
		}
		req.From = &from
	}
	if raw := ctx.QueryParam("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, errors.New("to must be a date in YYYY-MM-DD format")
		}
		req.To = &to
	}

	if raw := ctx.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return nil, errors.New("page must be a positive integer")
		}
		req.Page = page
	}
	if raw := ctx.QueryParam("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return nil, errors.New("size must be a positive integer")
		}
		req.Size = size
	}

	return req, nil
}

func (r *ListApplicationsRequest) Validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return errors.New("to must not be before from")
	}

	return nil
}
