// Package seed loads a demo data set: one account per role and a handful of
// tickets moved through the normal service layer so they carry audit entries.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/policy"
	"github.com/spec-kit/utility-crm/internal/repository"
	"github.com/spec-kit/utility-crm/internal/service"
)

// DemoUser is a fixture account.
type DemoUser struct {
	Phone string
	Name  string
	Role  domain.Role
}

// DemoUsers lists the fixture accounts, one per role.
var DemoUsers = []DemoUser{
	{Phone: "+989120000001", Name: "Sara Client", Role: domain.RoleClient},
	{Phone: "+989120000002", Name: "Ali Employee", Role: domain.RoleEmployee},
	{Phone: "+989120000003", Name: "Mina Manager", Role: domain.RoleManager},
	{Phone: "+989120000004", Name: "Omid Admin", Role: domain.RoleAdmin},
}

// Result summarizes what a run created.
type Result struct {
	Users   map[domain.Role]*domain.User
	Tickets []*domain.Ticket
}

// Run loads fixtures. Existing accounts are reused, so running twice adds a
// second batch of tickets but no duplicate users.
func Run(ctx context.Context, users repository.UserRepository, tickets *service.TicketService, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &Result{Users: make(map[domain.Role]*domain.User, len(DemoUsers))}
	for _, demo := range DemoUsers {
		user, err := ensureUser(ctx, users, demo)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", demo.Phone, err)
		}
		res.Users[demo.Role] = user
	}

	client := policy.ActorFromUser(res.Users[domain.RoleClient])
	employee := policy.ActorFromUser(res.Users[domain.RoleEmployee])
	manager := policy.ActorFromUser(res.Users[domain.RoleManager])

	outage, err := tickets.CreateTicket(ctx, client, service.TicketCreateInput{
		Title:    "Power outage on Azadi street",
		Content:  "No electricity in the whole building since this morning.",
		Priority: domain.TicketPriorityHigh,
		Type:     domain.TicketTypeTechnical,
		Customer: domain.CustomerSnapshot{Address: "Azadi st. 12", Area: "north", MeterNumber: "MTR-1001"},
	})
	if err != nil {
		return nil, fmt.Errorf("seed outage ticket: %w", err)
	}
	employeeID := employee.ID
	if outage, err = tickets.Assign(ctx, manager, outage.ID, service.AssignInput{AssigneeID: &employeeID}); err != nil {
		return nil, fmt.Errorf("assign outage ticket: %w", err)
	}
	if outage, err = tickets.ChangeStatus(ctx, employee, outage.ID, service.StatusChangeInput{
		Status:  domain.TicketStatusInProgress,
		Comment: "Crew dispatched",
	}); err != nil {
		return nil, fmt.Errorf("start outage ticket: %w", err)
	}
	res.Tickets = append(res.Tickets, outage)

	billing, err := tickets.CreateTicket(ctx, client, service.TicketCreateInput{
		Title:   "Bill higher than usual",
		Content: "The last invoice is twice the normal amount.",
		Type:    domain.TicketTypeBilling,
		Customer: domain.CustomerSnapshot{
			AccountNumber: "ACC-2002",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("seed billing ticket: %w", err)
	}
	if _, err := tickets.AddComment(ctx, employee, billing.ID, "Meter reading requested."); err != nil {
		return nil, fmt.Errorf("comment billing ticket: %w", err)
	}
	if billing, err = tickets.ChangeStatus(ctx, manager, billing.ID, service.StatusChangeInput{
		Status:  domain.TicketStatusResolved,
		Comment: "Reading corrected, invoice reissued",
	}); err != nil {
		return nil, fmt.Errorf("resolve billing ticket: %w", err)
	}
	res.Tickets = append(res.Tickets, billing)

	logger.Info("seed completed", zap.Int("users", len(res.Users)), zap.Int("tickets", len(res.Tickets)))
	return res, nil
}

func ensureUser(ctx context.Context, users repository.UserRepository, demo DemoUser) (*domain.User, error) {
	user, err := users.GetByPhone(ctx, demo.Phone)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	user = &domain.User{Phone: demo.Phone, Name: demo.Name, Role: demo.Role, Active: true}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
