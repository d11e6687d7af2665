package service

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/domain"
)

func TestUserAdministration(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.store.Users(), zap.NewNop())
	ctx := context.Background()

	if _, _, err := svc.ListUsers(ctx, f.manager, UserListFilter{}); statusOf(err) != http.StatusForbidden {
		t.Fatalf("manager list status = %d", statusOf(err))
	}
	users, total, err := svc.ListUsers(ctx, f.admin, UserListFilter{Roles: []domain.Role{domain.RoleClient}})
	if err != nil || total != 2 || len(users) != 2 {
		t.Fatalf("ListUsers() = %d, %v", total, err)
	}

	staff, err := svc.CreateUser(ctx, f.admin, UserCreateInput{Phone: "09129999999", Name: "Reza", Role: domain.RoleEmployee})
	if err != nil || !staff.Active {
		t.Fatalf("CreateUser() = %+v, %v", staff, err)
	}
	if _, err := svc.CreateUser(ctx, f.admin, UserCreateInput{Phone: "09129999999", Role: domain.RoleEmployee}); statusOf(err) != http.StatusConflict {
		t.Fatalf("duplicate phone status = %d", statusOf(err))
	}

	promoted, err := svc.ChangeRole(ctx, f.admin, staff.ID, domain.RoleManager)
	if err != nil || promoted.Role != domain.RoleManager {
		t.Fatalf("ChangeRole() = %+v, %v", promoted, err)
	}
	if _, err := svc.ChangeRole(ctx, f.admin, f.admin.ID, domain.RoleClient); statusOf(err) != http.StatusConflict {
		t.Fatalf("self demotion status = %d", statusOf(err))
	}

	disabled, err := svc.SetActive(ctx, f.admin, staff.ID, false)
	if err != nil || disabled.Active {
		t.Fatalf("SetActive() = %+v, %v", disabled, err)
	}
	if _, err := svc.SetActive(ctx, f.admin, 9999, true); statusOf(err) != http.StatusNotFound {
		t.Fatalf("missing user status = %d", statusOf(err))
	}

	me, err := svc.Me(ctx, f.client)
	if err != nil || me.ID != f.client.ID {
		t.Fatalf("Me() = %+v, %v", me, err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.store.Users(), zap.NewNop())
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "+98 912 000 0000", "Root")
	if err != nil || created.Role != domain.RoleAdmin || !created.Active {
		t.Fatalf("EnsureAdmin() create = %+v, %v", created, err)
	}
	again, err := svc.EnsureAdmin(ctx, "+989120000000", "")
	if err != nil || again.ID != created.ID {
		t.Fatalf("EnsureAdmin() repeat = %+v, %v", again, err)
	}

	client, err := f.store.Users().GetByID(ctx, f.client.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	promoted, err := svc.EnsureAdmin(ctx, client.Phone, "")
	if err != nil || promoted.ID != client.ID || promoted.Role != domain.RoleAdmin {
		t.Fatalf("EnsureAdmin() promote = %+v, %v", promoted, err)
	}
}
