package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// UserService manages accounts: registration, profile lookup, activation and
// resolving access-token subjects to active users.
type UserService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	logger      logging.Logger
}

func NewUserService(db dbx.DBTX, m repomanager.RepositoryManager, hasher PasswordHasher, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		logger:      logger.With("module", "users"),
	}
}

// Register creates an inactive account with a bcrypt password hash. An email
// that is already taken yields common.ErrDuplicateAccount before any hashing;
// a password longer than common.MaxPasswordBytes yields common.ErrPasswordTooLong.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if len(password) > common.MaxPasswordBytes {
		return nil, common.ErrPasswordTooLong
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, common.ErrDuplicateAccount
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Profile returns the user with the given id or common.ErrUserNotFound.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return user, nil
}

// SetActive flips the account's active flag. It is the only way a
// password account becomes active.
func (s *UserService) SetActive(ctx context.Context, email string, active bool) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if user.IsActive == active {
		return user, nil
	}

	user.IsActive = active
	if _, err := repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("error saving user: %w", err)
	}

	s.logger.Info(ctx, "user active flag changed", "user_id", user.ID, "active", active)
	return user, nil
}

// Authenticate resolves the subject of a verified access token. Missing and
// inactive accounts are both reported as common.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}
