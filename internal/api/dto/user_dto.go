package dto

import (
	"time"

	"github.com/spec-kit/utility-crm/internal/domain"
)

// LoginRequest starts phone login.
type LoginRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// VerifyRequest completes phone login.
type VerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// LoginResponse acknowledges an issued code.
type LoginResponse struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsNewUser bool      `json:"isNewUser"`
	Code      string    `json:"code,omitempty"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UpdateRoleRequest payload.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateActiveRequest payload.
type UpdateActiveRequest struct {
	Active *bool `json:"active"`
}

// UserResponse is the public user shape.
type UserResponse struct {
	ID          int64       `json:"id"`
	Phone       string      `json:"phone"`
	Name        string      `json:"name"`
	Email       string      `json:"email,omitempty"`
	Role        domain.Role `json:"role"`
	Active      bool        `json:"active"`
	LastLoginAt *time.Time  `json:"lastLoginAt"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// NewUserResponse maps a user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Phone:       user.Phone,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		Active:      user.Active,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
