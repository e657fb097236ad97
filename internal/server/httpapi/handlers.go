package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/oauth"
)

// forgotPasswordMessage is returned for every well-formed forgot-password
// request, whether or not the email belongs to an account.
const forgotPasswordMessage = "If the email is registered, a password reset link has been sent."

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	current, _ := userFromContext(r.Context())

	user, err := s.users.Profile(r.Context(), current.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Info(r.Context(), "login failed", "email", req.Email)
		}
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) generateTwoFactor(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	secret, err := s.sessions.GenerateTwoFactorSecret(r.Context(), user.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, twoFactorSecretResponse{Secret: secret.Secret, OtpauthURL: secret.EnrollmentURL})
}

func (s *Server) turnOnTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorCodeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, _ := userFromContext(r.Context())

	ok, err := s.sessions.EnableTwoFactor(r.Context(), user.ID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, common.ErrInvalidCode)
		return
	}

	writeJSON(w, http.StatusOK, twoFactorEnabledResponse{Enabled: true})
}

func (s *Server) authenticateTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorLoginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.sessions.LoginWithTwoFactor(r.Context(), req.UserID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

func (s *Server) googleRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.Issue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, s.google.AuthURL(state), http.StatusFound)
}

func (s *Server) googleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		s.logger.Info(ctx, "google login cancelled", "reason", errParam)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Google authentication failed"})
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing code or state"})
		return
	}

	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid oauth state"})
		return
	}

	email, err := s.google.VerifiedEmail(ctx, code)
	if err != nil {
		if !errors.Is(err, oauth.ErrEmailNotVerified) {
			s.logger.Warn(ctx, "google exchange failed", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Google authentication failed"})
		return
	}

	res, err := s.sessions.LoginWithGoogle(ctx, email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.sessions.ForgotPassword(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: forgotPasswordMessage})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.sessions.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset"})
}
