package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ProjectPlatform/Server/internal/backend"
	"github.com/ProjectPlatform/Server/internal/models"
	"github.com/ProjectPlatform/Server/internal/repository"
)

// CodeIssuer is the verification-code capability backing registration
// confirmation.
type CodeIssuer interface {
	Issue(ctx context.Context, userID int64) (string, error)
	Confirm(ctx context.Context, userID int64, code string) error
}

// Users handles accounts: registration, confirmation, authentication, push
// tokens and deletion.
type Users struct {
	users  repository.UserRepository
	codes  CodeIssuer
	logger *zap.Logger
}

func NewUsers(users repository.UserRepository, codes CodeIssuer, logger *zap.Logger) *Users {
	return &Users{users: users, codes: codes, logger: logger}
}

// Register creates an unconfirmed account and issues its verification
// code. The code travels to the user out of band; it is returned here for
// the delivery channel to pick up.
func (s *Users) Register(ctx context.Context, nick, password, email, name string) (*models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user, err := s.users.Create(ctx, nick, name, email, string(hash))
	if err != nil {
		return nil, "", err
	}

	code, err := s.codes.Issue(ctx, user.ID)
	if err != nil {
		// The account exists; the user can request a fresh code.
		s.logger.Warn("verification code issue failed",
			zap.Int64("user_id", user.ID), zap.Error(err))
		return user, "", nil
	}

	return user, code, nil
}

// Confirm redeems a verification code and marks the account confirmed.
func (s *Users) Confirm(ctx context.Context, userID int64, code string) error {
	if err := s.codes.Confirm(ctx, userID, code); err != nil {
		return err
	}
	return s.users.SetConfirmed(ctx, userID)
}

// ReissueCode generates a fresh verification code for a still-unconfirmed
// account.
func (s *Users) ReissueCode(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", backend.ErrObjectNotFound
	}
	if user.Confirmed {
		return "", backend.ErrPermissionDenied
	}
	return s.codes.Issue(ctx, userID)
}

// Authenticate resolves nick+password to the account. Unknown nick and
// wrong password fail identically.
func (s *Users) Authenticate(ctx context.Context, nick, password string) (*models.User, error) {
	user, err := s.users.GetByNick(ctx, nick)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, backend.ErrAuthentication
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, backend.ErrAuthentication
	}
	return user, nil
}

// Get returns the account or ErrObjectNotFound.
func (s *Users) Get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, backend.ErrObjectNotFound
	}
	return user, nil
}

func (s *Users) AddDeviceToken(ctx context.Context, userID int64, token string) error {
	return s.users.AddDeviceToken(ctx, userID, token)
}

func (s *Users) RemoveDeviceToken(ctx context.Context, userID int64, token string) error {
	return s.users.RemoveDeviceToken(ctx, userID, token)
}

// Delete removes the account. Authored messages, created chats and uploads
// are reassigned to the deleted-user sentinel rather than erased.
func (s *Users) Delete(ctx context.Context, userID int64) error {
	if userID == backend.SystemUserID || userID == backend.DeletedUserID {
		return backend.ErrPermissionDenied
	}
	return s.users.Delete(ctx, userID, backend.DeletedUserID)
}
