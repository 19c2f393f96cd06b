package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/auth"
	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/repository"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

// UserService coordinates account management and login.
type UserService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	tokens      *auth.TokenManager
	bcryptCost  int
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo       repository.UserRepository
	DepartmentRepo repository.DepartmentRepository
	TokenManager   *auth.TokenManager
	BcryptCost     int
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:       deps.UserRepo,
		departments: deps.DepartmentRepo,
		tokens:      deps.TokenManager,
		bcryptCost:  deps.BcryptCost,
	}
}

// UserCreateInput describes a registration payload.
type UserCreateInput struct {
	Username     string
	Password     string
	DepartmentID int64
	IsAdmin      bool
}

// UserUpdateInput is a partial account update; nil fields are untouched.
type UserUpdateInput struct {
	Username     *string
	Password     *string
	DepartmentID *int64
	IsAdmin      *bool
}

// Register creates an account. Only administrators register users.
func (s *UserService) Register(ctx context.Context, actor domain.Actor, input UserCreateInput) (*domain.User, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can register users")
	}
	return s.createUser(ctx, input)
}

// CreateFirstAdmin bootstraps the very first administrator account. It is
// refused once any admin exists.
func (s *UserService) CreateFirstAdmin(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	count, err := s.users.CountAdmins(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperrors.NewForbidden("an administrator already exists")
	}
	input.IsAdmin = true
	return s.createUser(ctx, input)
}

// Login verifies credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Me returns the authenticated actor's account.
func (s *UserService) Me(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": actor.ID})
		}
		return nil, err
	}
	return user, nil
}

// List returns every account. Admin only.
func (s *UserService) List(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can list users")
	}
	return s.users.List(ctx)
}

// Update modifies an account. Admin only; a supplied password is rehashed.
func (s *UserService) Update(ctx context.Context, actor domain.Actor, userID int64, input UserUpdateInput) (*domain.User, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can update users")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, apperrors.NewValidationError("username is required", map[string]any{"field": "username"})
		}
		user.Username = username
	}
	if input.Password != nil && *input.Password != "" {
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if input.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, *input.DepartmentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("department does not exist", map[string]any{"field": "department_id"})
			}
			return nil, err
		}
		user.DepartmentID = *input.DepartmentID
	}
	if input.IsAdmin != nil {
		user.IsAdmin = *input.IsAdmin
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account. Tickets the user filed survive with their
// requester reference cleared by the store; comments and history rows cascade.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, userID int64) error {
	if !actor.IsAdmin {
		return apperrors.NewForbidden("only administrators can delete users")
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return err
	}
	return nil
}

func (s *UserService) createUser(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.NewValidationError("username is required", map[string]any{"field": "username"})
	}
	if input.Password == "" {
		return nil, apperrors.NewValidationError("password is required", map[string]any{"field": "password"})
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"field": "username"})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if _, err := s.departments.GetByID(ctx, input.DepartmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("department does not exist", map[string]any{"field": "department_id"})
		}
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      input.IsAdmin,
		DepartmentID: input.DepartmentID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
