package httpapi

import (
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type twoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type twoFactorLoginRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,maxbytes=72"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func newUserResponse(u *models.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{ID: u.ID, Email: u.Email}
}

type sessionResponse struct {
	User              *userResponse `json:"user,omitempty"`
	AccessToken       string        `json:"accessToken,omitempty"`
	RefreshToken      string        `json:"refreshToken,omitempty"`
	TwoFactorRequired bool          `json:"twoFactorRequired,omitempty"`
	UserID            string        `json:"userId,omitempty"`
}

func newSessionResponse(res *services.LoginResult) sessionResponse {
	if res.TwoFactorRequired {
		var id string
		if res.User != nil {
			id = res.User.ID
		}
		return sessionResponse{TwoFactorRequired: true, UserID: id}
	}

	out := sessionResponse{User: newUserResponse(res.User)}
	if res.Tokens != nil {
		out.AccessToken = res.Tokens.AccessToken
		out.RefreshToken = res.Tokens.RefreshToken
	}
	return out
}

type twoFactorSecretResponse struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauthUrl"`
}

type twoFactorEnabledResponse struct {
	Enabled bool `json:"enabled"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
