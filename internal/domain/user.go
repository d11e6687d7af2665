package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates actor roles. It drives both visibility and transition rights.
type Role string

const (
	RoleClient   Role = "CLIENT"
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// AllRoles lists the closed role set.
var AllRoles = []Role{RoleClient, RoleEmployee, RoleManager, RoleAdmin}

// ParseRole normalizes and validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// IsElevated is true for every staff role.
func (r Role) IsElevated() bool {
	return r == RoleEmployee || r == RoleManager || r == RoleAdmin
}

// User is an actor of the system. Phone is the login credential and uniqueness key.
type User struct {
	ID          int64
	Phone       string
	Name        string
	Email       string
	Role        Role
	Active      bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
