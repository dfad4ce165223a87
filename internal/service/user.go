package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campuslib/campuslib/internal/auth"
	"github.com/campuslib/campuslib/internal/domain"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/store"
	"github.com/campuslib/campuslib/internal/validation"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=8,max=1024"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,oneof=admin librarian student"`
}

// inactiveAfterYears is how long an account may go without borrowing before
// it is reported as inactive.
const inactiveAfterYears = 1

// UserService handles accounts.
type UserService struct {
	store     store.Store
	validator *validation.Validator
	clock     Clock
	logger    *slog.Logger

	hash func(password string) (string, error)
}

// NewUserService creates a new user service.
func NewUserService(st store.Store, v *validation.Validator, clock Clock, logger *slog.Logger) *UserService {
	if clock == nil {
		clock = SystemClock
	}
	return &UserService{
		store:     st,
		validator: v,
		clock:     clock,
		logger:    logger,
		hash:      auth.HashPassword,
	}
}

// Register creates an account. The role defaults to student.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	role := domain.RoleStudent
	if req.Role != "" {
		role = domain.Role(req.Role)
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        domain.NormalizeEmail(req.Email),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.clock().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists(fmt.Sprintf("account %s already exists", user.Email))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "email", user.Email, "role", user.Role)
	return user, nil
}

// Authenticate checks an email and password. Unknown accounts and wrong
// passwords fail the same way.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("login failed: unknown account", "email", email)
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, password) {
		s.logger.Debug("login failed: wrong password", "email", email)
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}
	return user, nil
}

// GetUser returns one account.
func (s *UserService) GetUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.store.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("account %s not found", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// InactiveUsers lists accounts that have not borrowed anything for a year.
// Accounts that never borrowed count from their creation.
func (s *UserService) InactiveUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	cutoff := s.clock.today().AddDate(-inactiveAfterYears, 0, 0)
	inactive := make([]*domain.User, 0)
	for _, u := range users {
		if u.InactiveSince(cutoff) {
			inactive = append(inactive, u)
		}
	}
	return inactive, nil
}

