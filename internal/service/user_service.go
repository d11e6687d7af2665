package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/policy"
	"github.com/spec-kit/utility-crm/internal/repository"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

// UserService manages accounts. Everything except Me is ADMIN only.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// UserListFilter define listing parameters.
type UserListFilter struct {
	Roles      []domain.Role
	ActiveOnly bool
	SearchTerm *string
	Limit      int
	Offset     int
}

// UserCreateInput describes a user provisioned by an admin.
type UserCreateInput struct {
	Phone string
	Name  string
	Email string
	Role  domain.Role
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

func requireAdmin(actor policy.Actor) error {
	if !policy.CanManageUsers(actor) {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, actor policy.Actor) (*domain.User, error) {
	return s.load(ctx, actor.ID)
}

// ListUsers returns a page of users and the total count.
func (s *UserService) ListUsers(ctx context.Context, actor policy.Actor, filter UserListFilter) ([]domain.User, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	repoFilter := repository.UserFilter{
		Roles:      filter.Roles,
		ActiveOnly: filter.ActiveOnly,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	users, err := s.users.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.users.Count(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return users, total, nil
}

// CreateUser provisions an account with any role, typically staff.
func (s *UserService) CreateUser(ctx context.Context, actor policy.Actor, input UserCreateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(input.Role)})
	}
	email := strings.TrimSpace(input.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
		}
	}

	user := &domain.User{
		Phone:  phone,
		Name:   strings.TrimSpace(input.Name),
		Email:  email,
		Role:   input.Role,
		Active: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, apperrors.NewConflict("phone already registered", map[string]any{"phone": phone})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)), zap.Int64("actor_id", actor.ID))
	return user, nil
}

// ChangeRole sets a user's role. Admins cannot change their own role.
func (s *UserService) ChangeRole(ctx context.Context, actor policy.Actor, userID int64, role domain.Role) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	if userID == actor.ID {
		return nil, apperrors.NewConflict("cannot change own role", nil)
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	old := user.Role
	user.Role = role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user role changed",
		zap.Int64("user_id", user.ID),
		zap.String("from", string(old)),
		zap.String("to", string(role)),
		zap.Int64("actor_id", actor.ID),
	)
	return user, nil
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *UserService) SetActive(ctx context.Context, actor policy.Actor, userID int64, active bool) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if userID == actor.ID && !active {
		return nil, apperrors.NewConflict("cannot deactivate own account", nil)
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Active == active {
		return user, nil
	}
	user.Active = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user activation changed", zap.Int64("user_id", user.ID), zap.Bool("active", active), zap.Int64("actor_id", actor.ID))
	return user, nil
}

// EnsureAdmin makes sure phone belongs to an active ADMIN, creating the
// account when missing. It runs without an actor and is meant for startup.
func (s *UserService) EnsureAdmin(ctx context.Context, rawPhone, name string) (*domain.User, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		if user.Role == domain.RoleAdmin && user.Active {
			return user, nil
		}
		user.Role = domain.RoleAdmin
		user.Active = true
		if err := s.users.Update(ctx, user); err != nil {
			return nil, apperrors.MapError(err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		user = &domain.User{Phone: phone, Name: strings.TrimSpace(name), Role: domain.RoleAdmin, Active: true}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, apperrors.MapError(err)
		}
	default:
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("bootstrap admin ensured", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *UserService) load(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
