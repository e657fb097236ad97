package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

const (
	enrollmentSkew uint = 1
	loginSkew      uint = 0
)

// SessionDeps are the collaborators of a SessionService.
type SessionDeps struct {
	DB          dbx.DBTX
	Tx          dbx.Transactor
	Repomanager repomanager.RepositoryManager
	Hasher      PasswordHasher
	TOTP        TOTPEngine
	Tokens      AccessTokenIssuer
	Notifier    Notifier
	Logger      logging.Logger
}

// SessionService implements the credential and session lifecycle.
//
// Refresh tokens are single use: every successful refresh revokes the
// presented token and issues a successor that inherits the original
// SessionCreatedAt, so a chain is bounded both by the rolling
// refreshTokenValidityDuration and by maxSessionDuration.
type SessionService struct {
	SessionDeps

	refreshTokenValidityDuration  time.Duration
	maxSessionDuration            time.Duration
	passwordResetValidityDuration time.Duration
	appName                       string
	oauthActivatesUser            bool

	now func() time.Time
}

func NewSessionService(deps SessionDeps, cfg *config.Config) *SessionService {
	deps.Logger = deps.Logger.With("module", "sessions")
	return &SessionService{
		SessionDeps:                   deps,
		refreshTokenValidityDuration:  cfg.RefreshTokenValidityDuration,
		maxSessionDuration:            cfg.MaxSessionDuration,
		passwordResetValidityDuration: cfg.PasswordResetValidityDuration,
		appName:                       cfg.AppName,
		oauthActivatesUser:            cfg.OAuthActivatesUser,
		now:                           time.Now,
	}
}

// Login verifies email/password. Unknown emails, password-less accounts and
// wrong passwords all fail with common.ErrInvalidCredentials after exactly
// one hash comparison. Users with 2FA enabled get TwoFactorRequired and no
// tokens.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.Repomanager.Users(s.DB).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.Hasher.Verify(password, "")
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		return &LoginResult{User: user, TwoFactorRequired: true}, nil
	}

	return s.startSession(ctx, user)
}

// Refresh rotates refreshToken. Any invalid token (unknown, inactive,
// expired or older than the max session age) fails with
// common.ErrInvalidOrExpiredToken, and a token that still exists is revoked
// before the error is returned.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	now := s.now()
	repo := s.Repomanager.RefreshTokens(s.DB)

	stored, err := repo.FindByID(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if !stored.IsActive {
		s.Logger.Warn(ctx, "refresh token reuse", "user_id", stored.UserID)
		return nil, common.ErrInvalidOrExpiredToken
	}

	if stored.Expired(now) || stored.SessionAge(now) > s.maxSessionDuration {
		if _, err := repo.Revoke(ctx, stored.ID); err != nil {
			return nil, fmt.Errorf("error revoking refresh token: %w", err)
		}
		s.Logger.Info(ctx, "refresh token expired", "user_id", stored.UserID)
		return nil, common.ErrInvalidOrExpiredToken
	}

	var (
		user     *models.User
		tokens   *TokenPair
		inactive bool
	)
	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		revoked, err := s.Repomanager.RefreshTokens(tx).Revoke(ctx, stored.ID)
		if err != nil {
			return fmt.Errorf("error revoking refresh token: %w", err)
		}
		if !revoked {
			return common.ErrInvalidOrExpiredToken
		}

		user, err = s.Repomanager.Users(tx).FindByID(ctx, stored.UserID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching user: %w", err)
		}
		if user == nil || !user.IsActive {
			// Commit the revocation, then report the inactive account.
			inactive = true
			return nil
		}

		tokens, err = s.issueTokens(ctx, tx, user, now, stored.SessionCreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	if inactive {
		return nil, common.ErrInactiveUser
	}

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Logout revokes refreshToken. Unknown or already revoked tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	revoked, err := s.Repomanager.RefreshTokens(s.DB).Revoke(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	if revoked {
		s.Logger.Debug(ctx, "refresh token revoked by logout")
	}
	return nil
}

// GenerateTwoFactorSecret replaces the user's TOTP secret with a new one and
// returns it with its enrollment URL. The enabled flag is left untouched.
func (s *SessionService) GenerateTwoFactorSecret(ctx context.Context, email string) (*TwoFactorSecret, error) {
	repo := s.Repomanager.Users(s.DB)

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	secret, err := s.TOTP.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	url, err := s.TOTP.EnrollmentURL(secret, user.Email, s.appName)
	if err != nil {
		return nil, err
	}

	user.TwoFactorSecret = secret
	if _, err := repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("error saving user: %w", err)
	}

	return &TwoFactorSecret{Secret: secret, EnrollmentURL: url}, nil
}

// EnableTwoFactor turns on 2FA when code matches the provisioned secret
// within one step of drift. A missing user, a missing secret or a wrong code
// report false and change nothing.
func (s *SessionService) EnableTwoFactor(ctx context.Context, userID, code string) (bool, error) {
	repo := s.Repomanager.Users(s.DB)

	user, err := repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error searching user: %w", err)
	}

	if !user.HasTwoFactorSecret() || !s.TOTP.Verify(user.TwoFactorSecret, code, enrollmentSkew) {
		return false, nil
	}

	user.TwoFactorEnabled = true
	if _, err := repo.Save(ctx, user); err != nil {
		return false, fmt.Errorf("error saving user: %w", err)
	}

	s.Logger.Info(ctx, "2fa enabled", "user_id", user.ID)
	return true, nil
}

// LoginWithTwoFactor completes a login that Login answered with
// TwoFactorRequired. No drift tolerance is applied to code.
func (s *SessionService) LoginWithTwoFactor(ctx context.Context, userID, code string) (*LoginResult, error) {
	user, err := s.Repomanager.Users(s.DB).FindByID(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if user == nil || !user.TwoFactorEnabled || !user.HasTwoFactorSecret() {
		return nil, common.ErrTwoFactorNotEnabled
	}

	if !s.TOTP.Verify(user.TwoFactorSecret, code, loginSkew) {
		return nil, common.ErrInvalidCode
	}

	return s.startSession(ctx, user)
}

// LoginWithGoogle signs in the owner of an email address already verified
// by Google, creating a password-less account on first use.
func (s *SessionService) LoginWithGoogle(ctx context.Context, email string) (*LoginResult, error) {
	repo := s.Repomanager.Users(s.DB)

	user, err := repo.FindByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = repo.Create(ctx, &models.User{Email: email, IsActive: s.oauthActivatesUser})
		if errors.Is(err, common.ErrDuplicateAccount) {
			// Lost a race with a concurrent first login for the same email.
			user, err = repo.FindByEmail(ctx, email)
		} else if err == nil {
			s.Logger.Info(ctx, "user created from google login", "user_id", user.ID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("error resolving google user: %w", err)
	}

	return s.startSession(ctx, user)
}

// ForgotPassword issues a reset token for email and hands it to the
// Notifier. It reports true whether or not the account exists; only an
// existing account gets a token, and any earlier active token is revoked.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) (bool, error) {
	user, err := s.Repomanager.Users(s.DB).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("error searching user: %w", err)
	}

	now := s.now()
	token := &models.PasswordResetToken{
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.passwordResetValidityDuration),
		IsActive:  true,
	}
	if token.ID, err = common.NewTokenID(); err != nil {
		return false, common.ErrorInternal
	}

	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repomanager.ResetTokens(tx)

		prior, err := repo.FindActiveByUser(ctx, user.ID)
		switch {
		case err == nil:
			if _, err := repo.Revoke(ctx, prior.ID); err != nil {
				return fmt.Errorf("error revoking reset token: %w", err)
			}
		case !errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("error searching reset token: %w", err)
		}

		if err := repo.Create(ctx, token); err != nil {
			if errors.Is(err, common.ErrActiveResetToken) {
				return err
			}
			return fmt.Errorf("error creating reset token: %w", err)
		}
		return nil
	})
	if errors.Is(err, common.ErrActiveResetToken) {
		// A concurrent request for the same account issued and delivered a token.
		s.Logger.Debug(ctx, "password reset already in flight", "user_id", user.ID)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.Notifier.SendPasswordResetEmail(ctx, user, token.ID); err != nil {
		s.Logger.Error(ctx, "password reset delivery failed", "user_id", user.ID, "error", err)
	}

	return true, nil
}

// ResetPassword sets a new password using a reset token. Passwords bcrypt
// cannot hash are rejected before the token is looked up. The token is burned
// as soon as it is read as valid, so a concurrent duplicate submission fails
// even if the password write below does not complete. All refresh tokens of
// the account are revoked with the password change.
func (s *SessionService) ResetPassword(ctx context.Context, tokenID, newPassword string) (bool, error) {
	if len(newPassword) > common.MaxPasswordBytes {
		return false, common.ErrPasswordTooLong
	}

	now := s.now()
	resetRepo := s.Repomanager.ResetTokens(s.DB)

	token, err := resetRepo.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrInvalidOrExpiredToken
		}
		return false, fmt.Errorf("error searching reset token: %w", err)
	}

	revoked, err := resetRepo.Revoke(ctx, token.ID)
	if err != nil {
		return false, fmt.Errorf("error revoking reset token: %w", err)
	}
	if !revoked || token.Expired(now) {
		return false, common.ErrInvalidOrExpiredToken
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return false, fmt.Errorf("error hashing password: %w", err)
	}

	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.Repomanager.Users(tx)

		user, err := users.FindByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUserNotFound
			}
			return fmt.Errorf("error searching user: %w", err)
		}

		user.PasswordHash = hash
		if _, err := users.Save(ctx, user); err != nil {
			return fmt.Errorf("error saving user: %w", err)
		}

		n, err := s.Repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("error revoking sessions: %w", err)
		}
		s.Logger.Info(ctx, "password reset", "user_id", user.ID, "sessions_revoked", n)
		return nil
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

// startSession issues tokens for a fresh login; the new chain's
// SessionCreatedAt is now.
func (s *SessionService) startSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	now := s.now()
	tokens, err := s.issueTokens(ctx, s.DB, user, now, now)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *SessionService) issueTokens(ctx context.Context, db dbx.DBTX, user *models.User, now, sessionCreatedAt time.Time) (*TokenPair, error) {
	access, err := s.Tokens.Sign(user.ID, user.Email)
	if err != nil {
		return nil, common.ErrorInternal
	}

	id, err := common.NewTokenID()
	if err != nil {
		return nil, common.ErrorInternal
	}

	refresh := &models.RefreshToken{
		ID:               id,
		UserID:           user.ID,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTokenValidityDuration),
		SessionCreatedAt: sessionCreatedAt,
		IsActive:         true,
	}
	if err := s.Repomanager.RefreshTokens(db).Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("error creating refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: id}, nil
}
