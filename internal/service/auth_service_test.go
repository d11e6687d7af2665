package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/repository"
)

func newAuthService(env string) (*AuthService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	cfg := config.Config{
		App: config.AppConfig{Env: env},
		Auth: config.AuthConfig{
			JWTSecret:             "secret",
			AccessTokenTTLMinutes: 10,
			CodeTTLSeconds:        60,
			CodeLength:            6,
			MaxCodeAttempts:       3,
			BcryptCost:            4,
		},
	}
	return NewAuthService(cfg, AuthDependencies{UserRepo: store.Users()}), store
}

func TestRequestAndVerifyCode(t *testing.T) {
	svc, store := newAuthService("development")
	ctx := context.Background()

	challenge, err := svc.RequestCode(ctx, "0912 345 6789", "Sara")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	if !challenge.IsNewUser || challenge.Phone != "09123456789" || len(challenge.DevCode) != 6 {
		t.Fatalf("challenge = %+v", challenge)
	}
	user, err := store.Users().GetByPhone(ctx, "09123456789")
	if err != nil || user.Role != domain.RoleClient {
		t.Fatalf("registered user = %+v, %v", user, err)
	}

	result, err := svc.VerifyCode(ctx, "09123456789", challenge.DevCode)
	if err != nil {
		t.Fatalf("VerifyCode() error = %v", err)
	}
	claims, err := svc.TokenManager().ParseToken(result.Token)
	if err != nil || claims.UserID != user.ID || claims.Role != domain.RoleClient {
		t.Fatalf("claims = %+v, %v", claims, err)
	}
	if result.User.LastLoginAt == nil {
		t.Fatalf("last login not stamped")
	}

	if _, err := svc.VerifyCode(ctx, "09123456789", challenge.DevCode); statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("code reuse status = %d, want 401", statusOf(err))
	}

	again, _ := svc.RequestCode(ctx, "09123456789", "")
	if again.IsNewUser {
		t.Fatalf("second login registered a new user")
	}
}

func TestVerifyCodeAttemptLimit(t *testing.T) {
	svc, _ := newAuthService("development")
	ctx := context.Background()
	challenge, _ := svc.RequestCode(ctx, "09123456789", "")

	wrong := "000000"
	if challenge.DevCode == wrong {
		wrong = "111111"
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.VerifyCode(ctx, "09123456789", wrong); statusOf(err) != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i, statusOf(err))
		}
	}
	if _, err := svc.VerifyCode(ctx, "09123456789", challenge.DevCode); err == nil {
		t.Fatalf("code still valid after attempt limit")
	}
}

func TestProductionHidesCode(t *testing.T) {
	svc, _ := newAuthService("production")
	challenge, err := svc.RequestCode(context.Background(), "+989123456789", "")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	if challenge.DevCode != "" {
		t.Fatalf("production leaked code")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0912-345-6789", "09123456789", false},
		{"+98 (912) 345 6789", "+989123456789", false},
		{"12", "", true},
		{"09a23456789", "", true},
		{"0912+3456789", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("NormalizePhone(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestInactiveUserCannotLogin(t *testing.T) {
	svc, store := newAuthService("development")
	ctx := context.Background()
	_ = store.Users().Create(ctx, &domain.User{Phone: "09123456789", Role: domain.RoleEmployee, Active: false})
	if _, err := svc.RequestCode(ctx, "09123456789", ""); statusOf(err) != http.StatusForbidden {
		t.Fatalf("inactive login status = %d, want 403", statusOf(err))
	}
}
