package controller

import (
	"errors"
	"net/http"
	"time"

	httpdto "github.com/vibast-solutions/ms-go-tracker/app/dto/http"
	"github.com/vibast-solutions/ms-go-tracker/app/entity"
	"github.com/vibast-solutions/ms-go-tracker/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type UserAuthController struct {
	userAuthService service.UserAuthService
}

func NewUserAuthController(userAuthService service.UserAuthService) *UserAuthController {
	return &UserAuthController{userAuthService: userAuthService}
}

func (c *UserAuthController) Register(ctx echo.Context) error {
	req, err := httpdto.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	result, err := c.userAuthService.Register(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			logrus.WithField("email", req.Email).Warn("Register failed: user already exists")
			return ctx.JSON(http.StatusConflict, httpdto.ErrorResponse{Error: "user already exists"})
		}
		if errors.Is(err, service.ErrInvalidEmail) {
			logrus.WithField("email", req.Email).Warn("Register failed: invalid email")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid email address"})
		}
		if errors.Is(err, service.ErrWeakPassword) {
			logrus.WithField("email", req.Email).Warn("Register failed: weak password")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": result.User.ID,
		"email":   result.User.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, &httpdto.RegisterResponse{
		UserID:      result.User.ID,
		Email:       result.User.Email,
		VerifyToken: result.VerifyToken,
		Message:     "registration successful, please verify your email",
	})
}

func (c *UserAuthController) Login(ctx echo.Context) error {
	req, err := httpdto.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	result, err := c.userAuthService.Login(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "invalid credentials"})
		}
		if errors.Is(err, service.ErrAccountLocked) {
			logrus.WithField("email", req.Email).Warn("Login failed: account locked")
			return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "account is temporarily locked"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Login successful")
	return ctx.JSON(http.StatusOK, &httpdto.LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	})
}

func (c *UserAuthController) RefreshToken(ctx echo.Context) error {
	req, err := httpdto.NewRefreshTokenRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind refresh token request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Refresh token validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.userAuthService.RefreshSession(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Refresh token failed: invalid or expired token")
			return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "invalid or expired refresh token"})
		}
		logrus.WithError(err).Error("Refresh token failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, &httpdto.RefreshTokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	})
}

func (c *UserAuthController) Me(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Me failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	user, err := c.userAuthService.Me(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("user_id", userID).Warn("Me failed: user not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "user not found"})
		}
		if errors.Is(err, service.ErrAccountDeleted) {
			logrus.WithField("user_id", userID).Warn("Me failed: account deleted")
			return ctx.JSON(http.StatusGone, httpdto.ErrorResponse{Error: "account has been deleted"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Me failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, toMeResponse(user))
}

func (c *UserAuthController) VerifyEmail(ctx echo.Context) error {
	req, err := httpdto.NewVerifyEmailRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind verify email request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Verify email validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	if err = c.userAuthService.VerifyEmail(ctx.Request().Context(), req.Token); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.Warn("Verify email failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid or already used token"})
		}
		if errors.Is(err, service.ErrTokenExpired) {
			logrus.Warn("Verify email failed: token expired")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "token has expired"})
		}
		logrus.WithError(err).Error("Verify email failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, &httpdto.VerifyEmailResponse{Message: "email verified successfully"})
}

func (c *UserAuthController) ForgotPassword(ctx echo.Context) error {
	req, err := httpdto.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Forgot password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	// Unknown addresses get the same response as known ones so the
	// endpoint cannot be used to probe which emails are registered.
	response := &httpdto.ForgotPasswordResponse{Message: "if the email is registered, a reset link has been sent"}

	if _, err = c.userAuthService.ForgotPassword(ctx.Request().Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("email", req.Email).Info("Forgot password for unknown email")
			return ctx.JSON(http.StatusOK, response)
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Forgot password failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Password reset token issued")
	return ctx.JSON(http.StatusOK, response)
}

func (c *UserAuthController) ResetPassword(ctx echo.Context) error {
	req, err := httpdto.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Reset password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	if err = c.userAuthService.ResetPassword(ctx.Request().Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			logrus.Warn("Reset password failed: weak password")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, service.ErrTokenExpired):
			logrus.Warn("Reset password failed: token expired")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "token has expired"})
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrTokenAlreadyUsed):
			logrus.Warn("Reset password failed: invalid token")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid or already used token"})
		default:
			logrus.WithError(err).Error("Reset password failed")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
	}

	return ctx.JSON(http.StatusOK, &httpdto.ResetPasswordResponse{Message: "password reset successfully"})
}

func (c *UserAuthController) DeleteAccount(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Delete account failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	logrus.WithField("user_id", userID).Info("Delete account request received")
	if err := c.userAuthService.SoftDelete(ctx.Request().Context(), userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("user_id", userID).Warn("Delete account failed: user not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Delete account failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("user_id", userID).Info("Account deleted")
	return ctx.JSON(http.StatusOK, &httpdto.DeleteAccountResponse{Message: "account deleted successfully"})
}

func toMeResponse(user *entity.User) *httpdto.MeResponse {
	res := &httpdto.MeResponse{
		UserID:     user.ID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		Role:       user.Role,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
	}
	if user.LastLoginAt.Valid {
		lastLogin := user.LastLoginAt.Time.Format(time.RFC3339)
		res.LastLoginAt = &lastLogin
	}
	return res
}
