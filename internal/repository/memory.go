package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/utility-crm/internal/domain"
)

// MemoryStore keeps every table in process memory. It backs demo mode when no
// Postgres DSN is configured and doubles as the test store. Missing rows are
// reported with pgx.ErrNoRows so callers handle both stores the same way.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	tickets    map[int64]domain.Ticket
	activities map[int64]domain.TicketActivity
	comments   map[int64]domain.TicketComment
	users      map[int64]domain.User
	seq        int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		tickets:    make(map[int64]domain.Ticket),
		activities: make(map[int64]domain.TicketActivity),
		comments:   make(map[int64]domain.TicketComment),
		users:      make(map[int64]domain.User),
	}
}

// Tickets exposes the ticket table.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Activities exposes the activity table.
func (s *MemoryStore) Activities() ActivityRepository { return memoryActivities{s} }

// Comments exposes the comment table.
func (s *MemoryStore) Comments() CommentRepository { return memoryComments{s} }

// Users exposes the user table.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

type memoryTickets struct{ s *MemoryStore }

func (m memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := m.s.now()
	ticket.ID = m.s.nextID()
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	m.s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (m memoryTickets) Update(_ context.Context, ticket *domain.Ticket, expectedVersion int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if expectedVersion > 0 && stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	stored.Title = ticket.Title
	stored.Content = ticket.Content
	stored.Status = ticket.Status
	stored.Priority = ticket.Priority
	stored.Type = ticket.Type
	stored.AssigneeID = ticket.AssigneeID
	stored.ResolvedAt = ticket.ResolvedAt
	stored.Version++
	stored.UpdatedAt = m.s.now()
	m.s.tickets[ticket.ID] = cloneTicket(stored)
	ticket.Version = stored.Version
	ticket.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m memoryTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	ticket, ok := m.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneTicket(ticket)
	return &out, nil
}

func (m memoryTickets) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, ticket := range m.s.tickets {
		if ticket.TicketNumber == number {
			out := cloneTicket(ticket)
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	matched := m.match(filter)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	return page(matched, limit, offset), nil
}

func (m memoryTickets) Count(_ context.Context, filter TicketFilter) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return len(m.match(filter)), nil
}

func (m memoryTickets) CountByStatus(_ context.Context, filter TicketFilter) (map[domain.TicketStatus]int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	filter.Statuses = nil
	counts := make(map[domain.TicketStatus]int, len(domain.AllTicketStatuses))
	for _, ticket := range m.match(filter) {
		counts[ticket.Status]++
	}
	return counts, nil
}

func (m memoryTickets) Delete(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	for activityID, activity := range m.s.activities {
		if activity.TicketID == id {
			delete(m.s.activities, activityID)
		}
	}
	for commentID, comment := range m.s.comments {
		if comment.TicketID == id {
			delete(m.s.comments, commentID)
		}
	}
	delete(m.s.tickets, id)
	return nil
}

func (m memoryTickets) match(filter TicketFilter) []domain.Ticket {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	result := []domain.Ticket{}
	for _, ticket := range m.s.tickets {
		if filter.AuthorID != nil && ticket.AuthorID != *filter.AuthorID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.AssigneeID == nil && filter.Unassigned && ticket.AssigneeID != nil {
			continue
		}
		if len(filter.Statuses) > 0 && !containsValue(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsValue(filter.Priorities, ticket.Priority) {
			continue
		}
		if len(filter.Types) > 0 && !containsValue(filter.Types, ticket.Type) {
			continue
		}
		if filter.Area != nil && strings.TrimSpace(*filter.Area) != "" && ticket.Customer.Area != strings.TrimSpace(*filter.Area) {
			continue
		}
		if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if search != "" && !ticketMatchesSearch(ticket, search) {
			continue
		}
		result = append(result, cloneTicket(ticket))
	}
	return result
}

func ticketMatchesSearch(ticket domain.Ticket, search string) bool {
	for _, field := range []string{ticket.Title, ticket.Content, ticket.TicketNumber, ticket.Customer.Name, ticket.Customer.Phone} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

type memoryActivities struct{ s *MemoryStore }

func (m memoryActivities) Create(_ context.Context, activity *domain.TicketActivity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	activity.ID = m.s.nextID()
	activity.CreatedAt = m.s.now()
	stored := *activity
	stored.Before = cloneMap(activity.Before)
	stored.After = cloneMap(activity.After)
	stored.Changes = cloneMap(activity.Changes)
	m.s.activities[activity.ID] = stored
	return nil
}

func (m memoryActivities) List(_ context.Context, filter ActivityFilter) ([]domain.TicketActivity, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	matched := m.match(filter)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	return page(matched, limit, offset), nil
}

func (m memoryActivities) Count(_ context.Context, filter ActivityFilter) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return len(m.match(filter)), nil
}

func (m memoryActivities) match(filter ActivityFilter) []domain.TicketActivity {
	result := []domain.TicketActivity{}
	for _, activity := range m.s.activities {
		ticket, ok := m.s.tickets[activity.TicketID]
		if !ok {
			continue
		}
		if filter.TicketID != nil && activity.TicketID != *filter.TicketID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.ActorID != nil && activity.ActorID != *filter.ActorID {
			continue
		}
		if len(filter.Actions) > 0 && !containsValue(filter.Actions, activity.Action) {
			continue
		}
		if filter.From != nil && activity.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && activity.CreatedAt.After(*filter.To) {
			continue
		}
		out := activity
		out.Before = cloneMap(activity.Before)
		out.After = cloneMap(activity.After)
		out.Changes = cloneMap(activity.Changes)
		result = append(result, out)
	}
	return result
}

type memoryComments struct{ s *MemoryStore }

func (m memoryComments) Create(_ context.Context, comment *domain.TicketComment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tickets[comment.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	comment.ID = m.s.nextID()
	comment.CreatedAt = m.s.now()
	m.s.comments[comment.ID] = *comment
	return nil
}

func (m memoryComments) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketComment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	result := []domain.TicketComment{}
	for _, comment := range m.s.comments {
		if comment.TicketID == ticketID {
			result = append(result, comment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.users {
		if existing.Phone == user.Phone {
			return ErrDuplicatePhone
		}
	}
	now := m.s.now()
	user.ID = m.s.nextID()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.s.users[user.ID] = *user
	return nil
}

func (m memoryUsers) Update(_ context.Context, user *domain.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Name = user.Name
	stored.Email = user.Email
	stored.Role = user.Role
	stored.Active = user.Active
	stored.LastLoginAt = user.LastLoginAt
	stored.UpdatedAt = m.s.now()
	m.s.users[user.ID] = stored
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	user, ok := m.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (m memoryUsers) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, user := range m.s.users {
		if user.Phone == phone {
			out := user
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	matched := m.match(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	return page(matched, limit, offset), nil
}

func (m memoryUsers) Count(_ context.Context, filter UserFilter) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return len(m.match(filter)), nil
}

func (m memoryUsers) match(filter UserFilter) []domain.User {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	result := []domain.User{}
	for _, user := range m.s.users {
		if len(filter.Roles) > 0 && !containsValue(filter.Roles, user.Role) {
			continue
		}
		if filter.ActiveOnly && !user.Active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(user.Name), search) &&
			!strings.Contains(user.Phone, search) && !strings.Contains(strings.ToLower(user.Email), search) {
			continue
		}
		result = append(result, user)
	}
	return result
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneTicket(ticket domain.Ticket) domain.Ticket {
	if ticket.AssigneeID != nil {
		id := *ticket.AssigneeID
		ticket.AssigneeID = &id
	}
	if ticket.ResolvedAt != nil {
		at := *ticket.ResolvedAt
		ticket.ResolvedAt = &at
	}
	return ticket
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
