package http

type RegisterResponse struct {
	UserID      uint64 `json:"user_id"`
	Email       string `json:"email"`
	VerifyToken string `json:"verify_token"`
	Message     string `json:"message"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type MeResponse struct {
	UserID      uint64  `json:"user_id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	IsVerified  bool    `json:"is_verified"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type VerifyEmailResponse struct {
	Message string `json:"message"`
}

type ForgotPasswordResponse struct {
	Message string `json:"message"`
}

type ResetPasswordResponse struct {
	Message string `json:"message"`
}

type DeleteAccountResponse struct {
	Message string `json:"message"`
}

type ApplicationResponse struct {
	ID              uint64          `json:"id"`
	Company         string          `json:"company"`
	Position        string          `json:"position"`
	Website         *string         `json:"website,omitempty"`
	ApplicationType string          `json:"application_type"`
	CurrentStatus   *StatusResponse `json:"current_status,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

type StatusResponse struct {
	ID            uint64  `json:"id"`
	ApplicationID uint64  `json:"application_id"`
	StatusType    string  `json:"status_type"`
	TestType      *string `json:"test_type,omitempty"`
	InterviewType *string `json:"interview_type,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type ApplicationListResponse struct {
	Applications []*ApplicationResponse `json:"applications"`
	Total        int64                  `json:"total"`
	Page         int                    `json:"page"`
	Size         int                    `json:"size"`
}

type StatusHistoryResponse struct {
	ApplicationID uint64            `json:"application_id"`
	History       []*StatusResponse `json:"history"`
}

type DeleteApplicationResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
