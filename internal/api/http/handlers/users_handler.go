package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/utility-crm/internal/api/dto"
	"github.com/spec-kit/utility-crm/internal/auth"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/service"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

// UsersHandler exposes admin user management.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	p := parsePage(c)
	filter := service.UserListFilter{
		SearchTerm: optionalQuery(c, "search"),
		ActiveOnly: strings.EqualFold(c.Query("active"), "true"),
		Limit:      p.Limit,
		Offset:     p.Offset(),
	}
	if filter.Roles, err = splitList(c.Query("role"), "role", domain.ParseRole); err != nil {
		return err
	}

	users, total, err := h.users.ListUsers(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return respondPage(c, "users", items, p, total)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "role"})
	}
	user, err := h.users.CreateUser(c.UserContext(), actor, service.UserCreateInput{
		Phone: req.Phone,
		Name:  req.Name,
		Email: req.Email,
		Role:  role,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "user created", dto.NewUserResponse(user))
}

// UpdateRole handles PUT /api/users/:id/role.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "role"})
	}
	user, err := h.users.ChangeRole(c.UserContext(), actor, id, role)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role updated", dto.NewUserResponse(user))
}

// UpdateActive handles PUT /api/users/:id/active.
func (h *UsersHandler) UpdateActive(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateActiveRequest
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return apperrors.NewValidationError("active flag required", map[string]any{"field": "active"})
	}
	user, err := h.users.SetActive(c.UserContext(), actor, id, *req.Active)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user updated", dto.NewUserResponse(user))
}
