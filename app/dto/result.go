package dto

import "github.com/vibast-solutions/ms-go-tracker/app/entity"

type RegisterResult struct {
	User        *entity.User
	VerifyToken string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type RequestPasswordResetResult struct {
	ResetToken string
}

type ApplicationResult struct {
	Application   *entity.Application
	CurrentStatus *entity.ApplicationStatus
}

type ApplicationListResult struct {
	Applications []*ApplicationResult
	Total        int64
	Page         int
	Size         int
}
