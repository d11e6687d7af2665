package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/utility-crm/internal/domain"
)

func newTicket(author int64, status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		TicketNumber: "TCK-TEST",
		Title:        "No power",
		Content:      "Outage on 5th street",
		Status:       status,
		Priority:     domain.TicketPriorityMedium,
		Type:         domain.TicketTypeComplaint,
		AuthorID:     author,
		Customer:     domain.CustomerSnapshot{Name: "Sara", Phone: "0912000", Area: "north"},
	}
}

func TestMemoryTicketUpdateVersioning(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	tickets := store.Tickets()

	ticket := newTicket(1, domain.TicketStatusUnseen)
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ticket.Version != 1 {
		t.Fatalf("initial version = %d, want 1", ticket.Version)
	}

	ticket.Status = domain.TicketStatusInProgress
	if err := tickets.Update(ctx, ticket, 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if ticket.Version != 2 {
		t.Fatalf("version after update = %d, want 2", ticket.Version)
	}

	ticket.Status = domain.TicketStatusResolved
	if err := tickets.Update(ctx, ticket, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale Update() error = %v, want ErrVersionConflict", err)
	}
	if err := tickets.Update(ctx, ticket, 0); err != nil {
		t.Fatalf("unconditional Update() error = %v", err)
	}

	missing := &domain.Ticket{ID: 999}
	if err := tickets.Update(ctx, missing, 0); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("missing Update() error = %v, want ErrNoRows", err)
	}
}

func TestMemoryTicketFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	tickets := store.Tickets()

	assignee := int64(50)
	a := newTicket(1, domain.TicketStatusUnseen)
	b := newTicket(2, domain.TicketStatusInProgress)
	b.AssigneeID = &assignee
	b.Title = "Billing mismatch"
	c := newTicket(1, domain.TicketStatusClosed)
	for _, tk := range []*domain.Ticket{a, b, c} {
		if err := tickets.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	author := int64(1)
	got, _ := tickets.List(ctx, TicketFilter{AuthorID: &author})
	if len(got) != 2 {
		t.Fatalf("author filter returned %d tickets, want 2", len(got))
	}
	for _, tk := range got {
		if tk.AuthorID != 1 {
			t.Fatalf("author filter leaked ticket of author %d", tk.AuthorID)
		}
	}

	got, _ = tickets.List(ctx, TicketFilter{AssigneeID: &assignee})
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("assignee filter = %+v", got)
	}

	search := "billing"
	if n, _ := tickets.Count(ctx, TicketFilter{SearchTerm: &search}); n != 1 {
		t.Fatalf("search count = %d, want 1", n)
	}

	counts, _ := tickets.CountByStatus(ctx, TicketFilter{AuthorID: &author, Statuses: []domain.TicketStatus{domain.TicketStatusUnseen}})
	if counts[domain.TicketStatusUnseen] != 1 || counts[domain.TicketStatusClosed] != 1 {
		t.Fatalf("CountByStatus() = %v", counts)
	}

	paged, _ := tickets.List(ctx, TicketFilter{Limit: 2, Offset: 2})
	if len(paged) != 1 {
		t.Fatalf("page 2 size = %d, want 1", len(paged))
	}
}

func TestMemoryDeleteCascades(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	keep := newTicket(1, domain.TicketStatusUnseen)
	drop := newTicket(1, domain.TicketStatusUnseen)
	_ = store.Tickets().Create(ctx, keep)
	_ = store.Tickets().Create(ctx, drop)
	for _, id := range []int64{keep.ID, drop.ID, drop.ID} {
		if err := store.Activities().Create(ctx, &domain.TicketActivity{TicketID: id, Action: domain.ActivityCreated}); err != nil {
			t.Fatalf("activity Create() error = %v", err)
		}
	}
	_ = store.Comments().Create(ctx, &domain.TicketComment{TicketID: drop.ID, Body: "hi"})

	if err := store.Tickets().Delete(ctx, drop.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Tickets().GetByID(ctx, drop.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("deleted ticket still readable: %v", err)
	}
	if n, _ := store.Activities().Count(ctx, ActivityFilter{TicketID: &drop.ID}); n != 0 {
		t.Fatalf("orphan activities remain: %d", n)
	}
	if n, _ := store.Activities().Count(ctx, ActivityFilter{}); n != 1 {
		t.Fatalf("unrelated activities removed, remaining %d", n)
	}
	if comments, _ := store.Comments().ListByTicket(ctx, drop.ID); len(comments) != 0 {
		t.Fatalf("orphan comments remain: %d", len(comments))
	}
	if err := store.Tickets().Delete(ctx, drop.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("second Delete() error = %v, want ErrNoRows", err)
	}
}

func TestMemoryActivitiesNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	ticket := newTicket(1, domain.TicketStatusUnseen)
	_ = store.Tickets().Create(ctx, ticket)

	actions := []domain.ActivityAction{domain.ActivityCreated, domain.ActivityStatusChanged, domain.ActivityUpdated}
	for _, action := range actions {
		_ = store.Activities().Create(ctx, &domain.TicketActivity{TicketID: ticket.ID, Action: action})
	}
	got, _ := store.Activities().List(ctx, ActivityFilter{TicketID: &ticket.ID})
	if len(got) != 3 {
		t.Fatalf("List() returned %d entries", len(got))
	}
	for i, action := range []domain.ActivityAction{domain.ActivityUpdated, domain.ActivityStatusChanged, domain.ActivityCreated} {
		if got[i].Action != action {
			t.Fatalf("entry %d action = %s, want %s", i, got[i].Action, action)
		}
	}
}

func TestMemoryUsersUniquePhone(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Users().Create(ctx, &domain.User{Phone: "0912", Role: domain.RoleClient, Active: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Users().Create(ctx, &domain.User{Phone: "0912", Role: domain.RoleClient}); !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("duplicate Create() error = %v", err)
	}
	user, err := store.Users().GetByPhone(ctx, "0912")
	if err != nil || user.Role != domain.RoleClient {
		t.Fatalf("GetByPhone() = %+v, %v", user, err)
	}
}
