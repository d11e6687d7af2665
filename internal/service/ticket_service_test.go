package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/events"
	"github.com/spec-kit/utility-crm/internal/policy"
	"github.com/spec-kit/utility-crm/internal/repository"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

type fixture struct {
	store    *repository.MemoryStore
	svc      *TicketService
	client   policy.Actor
	other    policy.Actor
	employee policy.Actor
	manager  policy.Actor
	admin    policy.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	mk := func(phone string, role domain.Role) policy.Actor {
		user := &domain.User{Phone: phone, Name: string(role), Role: role, Active: true}
		if err := store.Users().Create(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}
		return policy.ActorFromUser(user)
	}
	f := &fixture{
		store:    store,
		client:   mk("09120000001", domain.RoleClient),
		other:    mk("09120000002", domain.RoleClient),
		employee: mk("09120000003", domain.RoleEmployee),
		manager:  mk("09120000004", domain.RoleManager),
		admin:    mk("09120000005", domain.RoleAdmin),
	}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:   store.Tickets(),
		CommentRepo:  store.Comments(),
		ActivityRepo: store.Activities(),
		UserRepo:     store.Users(),
		Dispatcher:   events.NewInMemoryDispatcher(zap.NewNop()),
		Logger:       zap.NewNop(),
	})
	return f
}

func (f *fixture) createTicket(t *testing.T, actor policy.Actor) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), actor, TicketCreateInput{
		Title:   "No power",
		Content: "Whole block has no electricity",
		Type:    domain.TicketTypeTechnical,
	})
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	return ticket
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return apperrors.ToDomainError(err).HTTPStatus
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.client)

	if ticket.Status != domain.TicketStatusUnseen {
		t.Fatalf("status = %s, want unseen", ticket.Status)
	}
	if ticket.Priority != domain.TicketPriorityMedium || ticket.AuthorID != f.client.ID {
		t.Fatalf("ticket = %+v", ticket)
	}
	if ticket.Customer.Phone != "09120000001" {
		t.Fatalf("customer phone not filled from profile: %q", ticket.Customer.Phone)
	}
	if len(ticket.TicketNumber) != len("TCK-")+8 {
		t.Fatalf("ticket number = %q", ticket.TicketNumber)
	}

	entries, _, _ := f.svc.TicketHistory(context.Background(), f.client, ticket.ID, 0, 0)
	if len(entries) != 1 || entries[0].Action != domain.ActivityCreated {
		t.Fatalf("history = %+v", entries)
	}
	if len(entries[0].Before) != 0 || entries[0].After["title"] != "No power" {
		t.Fatalf("created entry before/after = %v / %v", entries[0].Before, entries[0].After)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateTicket(context.Background(), f.client, TicketCreateInput{Title: "  ", Content: "x"})
	if statusOf(err) != http.StatusBadRequest {
		t.Fatalf("blank title status = %d", statusOf(err))
	}
	_, err = f.svc.CreateTicket(context.Background(), f.employee, TicketCreateInput{Title: "t", Content: "c"})
	if statusOf(err) != http.StatusBadRequest {
		t.Fatalf("staff ticket without customer phone status = %d", statusOf(err))
	}
}

func TestLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	if _, err := f.svc.ChangeStatus(ctx, f.employee, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress}); err != nil {
		t.Fatalf("employee unseen->in_progress error = %v", err)
	}

	_, err := f.svc.ChangeStatus(ctx, f.employee, ticket.ID, StatusChangeInput{Status: domain.TicketStatusClosed})
	if statusOf(err) != http.StatusForbidden {
		t.Fatalf("employee ->closed status = %d, want 403", statusOf(err))
	}
	details := apperrors.ToDomainError(err).Details
	if _, ok := details["allowed"]; !ok {
		t.Fatalf("403 does not expose allowed set: %v", details)
	}

	closed, err := f.svc.ChangeStatus(ctx, f.manager, ticket.ID, StatusChangeInput{Status: domain.TicketStatusClosed})
	if err != nil {
		t.Fatalf("manager in_progress->closed error = %v", err)
	}
	if closed.Status != domain.TicketStatusClosed {
		t.Fatalf("status = %s", closed.Status)
	}

	entries, total, err := f.svc.ActivityFeed(ctx, f.manager, ActivityFeedFilter{Actions: []domain.ActivityAction{domain.ActivityStatusChanged}})
	if err != nil {
		t.Fatalf("ActivityFeed() error = %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("status entries = %d, want 2", total)
	}
	// newest first
	newest, oldest := entries[0], entries[1]
	if oldest.Before["status"] != "unseen" || oldest.After["status"] != "in_progress" {
		t.Fatalf("first entry = %v -> %v", oldest.Before, oldest.After)
	}
	if newest.Before["status"] != "in_progress" || newest.After["status"] != "closed" {
		t.Fatalf("second entry = %v -> %v", newest.Before, newest.After)
	}
	if newest.Changes["updatedBy"] != string(domain.RoleManager) {
		t.Fatalf("updatedBy = %v", newest.Changes["updatedBy"])
	}
}

func TestEmployeeCannotReopenClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)
	if _, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, StatusChangeInput{Status: domain.TicketStatusClosed}); err != nil {
		t.Fatalf("admin close error = %v", err)
	}
	_, err := f.svc.ChangeStatus(ctx, f.employee, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress})
	if statusOf(err) != http.StatusForbidden {
		t.Fatalf("employee reopen status = %d", statusOf(err))
	}
	reopened, err := f.svc.ChangeStatus(ctx, f.manager, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress})
	if err != nil || reopened.Status != domain.TicketStatusInProgress {
		t.Fatalf("manager reopen = %v, %v", reopened, err)
	}
}

func TestClientCannotChangeStatus(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.client)
	_, err := f.svc.ChangeStatus(context.Background(), f.client, ticket.ID, StatusChangeInput{Status: domain.TicketStatusClosed})
	if statusOf(err) != http.StatusForbidden {
		t.Fatalf("client status change = %d, want 403", statusOf(err))
	}
	_, err = f.svc.ChangeStatus(context.Background(), f.other, ticket.ID, StatusChangeInput{Status: domain.TicketStatusClosed})
	if statusOf(err) != http.StatusNotFound {
		t.Fatalf("foreign client status change = %d, want 404", statusOf(err))
	}
}

func TestResolvedAtLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	resolved, _ := f.svc.ChangeStatus(ctx, f.employee, ticket.ID, StatusChangeInput{Status: domain.TicketStatusResolved})
	if resolved.ResolvedAt == nil {
		t.Fatalf("resolvedAt not set on resolve")
	}
	closed, _ := f.svc.ChangeStatus(ctx, f.employee, ticket.ID, StatusChangeInput{Status: domain.TicketStatusClosed})
	if closed.ResolvedAt == nil {
		t.Fatalf("resolvedAt dropped on close")
	}
	reopened, _ := f.svc.ChangeStatus(ctx, f.manager, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress})
	if reopened.ResolvedAt != nil {
		t.Fatalf("resolvedAt kept after reopen")
	}
}

func TestConcurrentStatusChangesBothSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	targets := []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusResolved}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target domain.TicketStatus) {
			defer wg.Done()
			_, errs[i] = f.svc.ChangeStatus(ctx, f.manager, ticket.ID, StatusChangeInput{Status: target})
		}(i, target)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d error = %v", i, err)
		}
	}
	entries, _, _ := f.svc.ActivityFeed(ctx, f.manager, ActivityFeedFilter{Actions: []domain.ActivityAction{domain.ActivityStatusChanged}})
	if len(entries) != 2 {
		t.Fatalf("status entries = %d, want 2", len(entries))
	}
}

func TestExpectedVersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	if _, err := f.svc.ChangeStatus(ctx, f.manager, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress, ExpectedVersion: ticket.Version}); err != nil {
		t.Fatalf("first conditional change error = %v", err)
	}
	_, err := f.svc.ChangeStatus(ctx, f.manager, ticket.ID, StatusChangeInput{Status: domain.TicketStatusResolved, ExpectedVersion: ticket.Version})
	if statusOf(err) != http.StatusConflict {
		t.Fatalf("stale change status = %d, want 409", statusOf(err))
	}
}

func TestClientListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createTicket(t, f.client)
	f.createTicket(t, f.client)
	f.createTicket(t, f.other)

	tickets, total, err := f.svc.ListTickets(ctx, f.client, TicketListFilter{})
	if err != nil {
		t.Fatalf("ListTickets() error = %v", err)
	}
	if total != 2 {
		t.Fatalf("client total = %d, want 2", total)
	}
	for _, ticket := range tickets {
		if ticket.AuthorID != f.client.ID {
			t.Fatalf("client saw ticket of author %d", ticket.AuthorID)
		}
	}

	_, total, _ = f.svc.ListTickets(ctx, f.employee, TicketListFilter{})
	if total != 3 {
		t.Fatalf("employee total = %d, want 3", total)
	}
}

func TestClientVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	if _, err := f.svc.GetTicket(ctx, f.other, ticket.ID); statusOf(err) != http.StatusNotFound {
		t.Fatalf("foreign GetTicket status = %d, want 404", statusOf(err))
	}
	if _, _, err := f.svc.TicketHistory(ctx, f.other, ticket.ID, 0, 0); statusOf(err) != http.StatusNotFound {
		t.Fatalf("foreign history status = %d, want 404", statusOf(err))
	}
	title := "Hijacked"
	if _, err := f.svc.UpdateContent(ctx, f.other, ticket.ID, TicketContentInput{Title: &title}); statusOf(err) != http.StatusForbidden {
		t.Fatalf("foreign edit status = %d, want 403", statusOf(err))
	}
	detail, err := f.svc.GetTicket(ctx, f.client, ticket.ID)
	if err != nil {
		t.Fatalf("own GetTicket error = %v", err)
	}
	if detail.Transitions == nil || len(detail.Transitions) != 0 {
		t.Fatalf("client transitions = %v, want empty", detail.Transitions)
	}
}

func TestUpdateContentDiff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	same := ticket.Title
	unchanged, err := f.svc.UpdateContent(ctx, f.client, ticket.ID, TicketContentInput{Title: &same})
	if err != nil || unchanged.Version != ticket.Version {
		t.Fatalf("no-op update = %+v, %v", unchanged, err)
	}

	content := "Power back but flickering"
	updated, err := f.svc.UpdateContent(ctx, f.client, ticket.ID, TicketContentInput{Title: &same, Content: &content})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	if updated.Content != content || updated.Version != ticket.Version+1 {
		t.Fatalf("updated = %+v", updated)
	}

	entries, _, _ := f.svc.TicketHistory(ctx, f.client, ticket.ID, 0, 0)
	if len(entries) != 2 || entries[0].Action != domain.ActivityUpdated {
		t.Fatalf("history = %+v", entries)
	}
	if _, ok := entries[0].Changes["title"]; ok {
		t.Fatalf("unchanged title recorded: %v", entries[0].Changes)
	}
	if _, ok := entries[0].Changes["content"]; !ok {
		t.Fatalf("content change missing: %v", entries[0].Changes)
	}

	if _, err := f.svc.UpdateContent(ctx, f.client, ticket.ID, TicketContentInput{}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("empty update status = %d", statusOf(err))
	}
	priority := domain.TicketPriorityUrgent
	if _, err := f.svc.UpdateContent(ctx, f.client, ticket.ID, TicketContentInput{Priority: &priority}); statusOf(err) != http.StatusForbidden {
		t.Fatalf("client priority change status = %d", statusOf(err))
	}
}

func TestDeleteTicketCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)
	_, _ = f.svc.AddComment(ctx, f.employee, ticket.ID, "looking into it")
	_, _ = f.svc.ChangeStatus(ctx, f.employee, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress})

	if err := f.svc.DeleteTicket(ctx, f.employee, ticket.ID); statusOf(err) != http.StatusForbidden {
		t.Fatalf("employee delete status = %d, want 403", statusOf(err))
	}
	if err := f.svc.DeleteTicket(ctx, f.admin, ticket.ID); err != nil {
		t.Fatalf("admin delete error = %v", err)
	}
	if n, _ := f.store.Activities().Count(ctx, repository.ActivityFilter{TicketID: &ticket.ID}); n != 0 {
		t.Fatalf("orphan activities = %d", n)
	}
	if err := f.svc.DeleteTicket(ctx, f.admin, ticket.ID); statusOf(err) != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", statusOf(err))
	}
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	if _, err := f.svc.Assign(ctx, f.employee, ticket.ID, AssignInput{AssigneeID: &f.manager.ID}); statusOf(err) != http.StatusForbidden {
		t.Fatalf("employee assigning other status = %d", statusOf(err))
	}
	assigned, err := f.svc.Assign(ctx, f.employee, ticket.ID, AssignInput{AssigneeID: &f.employee.ID})
	if err != nil || assigned.AssigneeID == nil || *assigned.AssigneeID != f.employee.ID {
		t.Fatalf("self assign = %+v, %v", assigned, err)
	}
	if _, err := f.svc.Assign(ctx, f.manager, ticket.ID, AssignInput{AssigneeID: &f.client.ID}); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("assigning client status = %d", statusOf(err))
	}

	mine, total, _ := f.svc.ListTickets(ctx, f.employee, TicketListFilter{AssigneeID: &f.employee.ID})
	if total != 1 || mine[0].ID != ticket.ID {
		t.Fatalf("assignee scope = %d tickets", total)
	}
	stats, err := f.svc.Stats(ctx, f.manager, &f.employee.ID)
	if err != nil || stats.Total != 1 || stats.ByStatus[domain.TicketStatusUnseen] != 1 {
		t.Fatalf("Stats() = %+v, %v", stats, err)
	}
	if _, ok := stats.ByStatus[domain.TicketStatusRejected]; !ok {
		t.Fatalf("stats missing zero bucket")
	}
}

func TestCommentsAndFeedGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)

	if _, err := f.svc.AddComment(ctx, f.other, ticket.ID, "hi"); statusOf(err) != http.StatusNotFound {
		t.Fatalf("foreign comment status = %d", statusOf(err))
	}
	if _, err := f.svc.AddComment(ctx, f.client, ticket.ID, "   "); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("blank comment status = %d", statusOf(err))
	}
	comment, err := f.svc.AddComment(ctx, f.client, ticket.ID, "any update?")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	comments, _ := f.svc.ListComments(ctx, f.client, ticket.ID)
	if len(comments) != 1 || comments[0].ID != comment.ID {
		t.Fatalf("comments = %+v", comments)
	}
	entries, _, _ := f.svc.TicketHistory(ctx, f.client, ticket.ID, 0, 0)
	if entries[0].Action != domain.ActivityCommentAdded || entries[0].Comment != "any update?" {
		t.Fatalf("latest entry = %+v", entries[0])
	}

	if _, _, err := f.svc.ActivityFeed(ctx, f.client, ActivityFeedFilter{}); statusOf(err) != http.StatusForbidden {
		t.Fatalf("client feed status = %d", statusOf(err))
	}
}

type failingActivities struct {
	repository.ActivityRepository
}

func (failingActivities) Create(context.Context, *domain.TicketActivity) error {
	return errors.New("audit store down")
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:   f.store.Tickets(),
		CommentRepo:  f.store.Comments(),
		ActivityRepo: failingActivities{f.store.Activities()},
		UserRepo:     f.store.Users(),
	})
	ctx := context.Background()
	ticket := f.createTicket(t, f.client)
	updated, err := f.svc.ChangeStatus(ctx, f.manager, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress})
	if err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	if updated.Status != domain.TicketStatusInProgress {
		t.Fatalf("status = %s", updated.Status)
	}
}
