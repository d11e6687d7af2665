package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/repository"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(6)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("len(code) = %d, want 6", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q contains non-digit", code)
		}
	}
}

func TestHashAndCompareCode(t *testing.T) {
	hashed, err := HashCode("123456", 4)
	if err != nil {
		t.Fatalf("HashCode() error = %v", err)
	}
	if err := CompareCode(hashed, "123456"); err != nil {
		t.Fatalf("CompareCode() error = %v", err)
	}
	if err := CompareCode(hashed, "654321"); err == nil {
		t.Fatalf("CompareCode() accepted wrong code")
	}
}

func TestMemoryCodeStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCodeStore()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if _, err := store.Get(ctx, "0912"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("Get() on empty store error = %v", err)
	}
	if err := store.Save(ctx, "0912", "hash", time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	attempts, err := store.IncrementAttempts(ctx, "0912")
	if err != nil || attempts != 1 {
		t.Fatalf("IncrementAttempts() = %d, %v", attempts, err)
	}
	got, err := store.Get(ctx, "0912")
	if err != nil || got.Hash != "hash" || got.Attempts != 1 {
		t.Fatalf("Get() = %+v, %v", got, err)
	}

	if err := store.Save(ctx, "0912", "hash2", time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _ = store.Get(ctx, "0912")
	if got.Attempts != 0 {
		t.Fatalf("re-save kept attempts = %d", got.Attempts)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "0912"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expired Get() error = %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expiresAt, err := tm.GenerateToken(42, domain.RoleManager)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt in the past")
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Role != domain.RoleManager || claims.Subject != "42" {
		t.Fatalf("claims = %+v", claims)
	}
	if _, err := NewTokenManager("other", 5).ParseToken(token); err == nil {
		t.Fatalf("ParseToken() accepted token signed with another secret")
	}
}

func newAuthApp(t *testing.T, users repository.UserRepository, tm *TokenManager, guards ...fiber.Handler) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	handlers := []fiber.Handler{NewAuthMiddleware(tm, users).Handle}
	handlers = append(handlers, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		actor, err := ActorFromContext(c)
		if err != nil {
			return err
		}
		return c.SendString(string(actor.Role))
	})
	app.Get("/", handlers...)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	active := &domain.User{Phone: "0912", Role: domain.RoleEmployee, Active: true}
	inactive := &domain.User{Phone: "0913", Role: domain.RoleEmployee, Active: false}
	_ = store.Users().Create(ctx, active)
	_ = store.Users().Create(ctx, inactive)

	tm := NewTokenManager("secret", 5)
	activeToken, _, _ := tm.GenerateToken(active.ID, active.Role)
	inactiveToken, _, _ := tm.GenerateToken(inactive.ID, inactive.Role)
	missingToken, _, _ := tm.GenerateToken(999, domain.RoleAdmin)

	tests := []struct {
		name   string
		header string
		guards []fiber.Handler
		want   int
	}{
		{"missing header", "", nil, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", nil, http.StatusUnauthorized},
		{"garbage token", "Bearer abc", nil, http.StatusUnauthorized},
		{"unknown user", "Bearer " + missingToken, nil, http.StatusUnauthorized},
		{"inactive user", "Bearer " + inactiveToken, nil, http.StatusUnauthorized},
		{"active user", "Bearer " + activeToken, nil, http.StatusOK},
		{"staff guard", "Bearer " + activeToken, []fiber.Handler{RequireStaff()}, http.StatusOK},
		{"admin guard", "Bearer " + activeToken, []fiber.Handler{RequireRole(domain.RoleAdmin)}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(t, store.Users(), tm, tt.guards...)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareUsesStoredRole(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	user := &domain.User{Phone: "0912", Role: domain.RoleClient, Active: true}
	_ = store.Users().Create(ctx, user)

	tm := NewTokenManager("secret", 5)
	token, _, _ := tm.GenerateToken(user.ID, domain.RoleClient)

	user.Role = domain.RoleAdmin
	_ = store.Users().Update(ctx, user)

	app := newAuthApp(t, store.Users(), tm, RequireRole(domain.RoleAdmin))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after promotion", resp.StatusCode)
	}
}
