package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xferlogic/gateway/internal/auth"
	"github.com/xferlogic/gateway/internal/store"
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	CreateUser(ctx context.Context, email, passwordHash string) (*store.User, error)
}

// UserService implements registration, login and profile lookup.
type UserService struct {
	users  UserStore
	tokens *auth.TokenService
	log    *logrus.Logger
}

func NewUserService(users UserStore, tokens *auth.TokenService, log *logrus.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		log:    log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, email, password string) (*store.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, hashedPassword)
	if err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login returns a signed token. Unknown email and wrong password produce the
// same error.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", err
	}

	s.log.WithField("user_id", user.ID).Info("User logged in")
	return token, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*store.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
