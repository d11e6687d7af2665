package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/utility-crm/internal/api/dto"
	"github.com/spec-kit/utility-crm/internal/auth"
	"github.com/spec-kit/utility-crm/internal/service"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

// AuthHandler exposes phone login endpoints.
type AuthHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{auth: authService, users: userService}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Phone == "" {
		return apperrors.NewValidationError("phone required", map[string]any{"field": "phone"})
	}

	challenge, err := h.auth.RequestCode(c.UserContext(), req.Phone, req.Name)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "verification code sent", dto.LoginResponse{
		Phone:     challenge.Phone,
		ExpiresAt: challenge.ExpiresAt,
		IsNewUser: challenge.IsNewUser,
		Code:      challenge.DevCode,
	})
}

// Verify handles POST /api/auth/verify.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Phone == "" || req.Code == "" {
		return apperrors.NewValidationError("phone and code required", nil)
	}

	result, err := h.auth.VerifyCode(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "login successful", dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.NewUserResponse(result.User),
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.users.Me(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "current user", dto.NewUserResponse(user))
}
