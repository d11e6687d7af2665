package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/audit"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/events"
	"github.com/spec-kit/utility-crm/internal/observability"
	"github.com/spec-kit/utility-crm/internal/policy"
	"github.com/spec-kit/utility-crm/internal/repository"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

const (
	maxTitleLength   = 200
	maxContentLength = 5000
	maxCommentLength = 2000
)

// TicketService coordinates ticket workflows. Every mutation runs the access
// check, the transition check, the store write, the audit append and finally
// the event publish, in that order.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	activities repository.ActivityRepository
	users      repository.UserRepository
	recorder   *audit.Recorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.CommentRepository
	ActivityRepo repository.ActivityRepository
	UserRepo     repository.UserRepository
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title    string
	Content  string
	Priority domain.TicketPriority
	Type     domain.TicketType
	Customer domain.CustomerSnapshot
}

// TicketContentInput is a partial content edit. Nil fields are left alone.
type TicketContentInput struct {
	Title           *string
	Content         *string
	Priority        *domain.TicketPriority
	Type            *domain.TicketType
	ExpectedVersion int
}

// StatusChangeInput requests a lifecycle transition.
type StatusChangeInput struct {
	Status          domain.TicketStatus
	Comment         string
	ExpectedVersion int
}

// AssignInput sets or clears the assignee.
type AssignInput struct {
	AssigneeID      *int64
	ExpectedVersion int
}

// TicketListFilter describes listing filters accepted from callers.
type TicketListFilter struct {
	AssigneeID  *int64
	Unassigned  bool
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Types       []domain.TicketType
	Area        *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ActivityFeedFilter narrows the cross-ticket feed.
type ActivityFeedFilter struct {
	AssigneeID *int64
	ActorID    *int64
	Actions    []domain.ActivityAction
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// TicketDetail is a ticket with its thread and the caller's next statuses.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Comments    []domain.TicketComment
	Transitions []domain.TicketStatus
}

// TicketStats is a status histogram over the caller's visible tickets.
type TicketStats struct {
	Total    int
	ByStatus map[domain.TicketStatus]int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		activities: deps.ActivityRepo,
		users:      deps.UserRepo,
		recorder:   audit.NewRecorder(deps.ActivityRepo, logger, deps.Metrics),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateTicket opens a ticket authored by the actor. Clients get the customer
// snapshot filled from their own profile where left blank.
func (s *TicketService) CreateTicket(ctx context.Context, actor policy.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if !actor.Role.Valid() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	customer := trimCustomer(input.Customer)
	if actor.Role == domain.RoleClient {
		if err := s.fillCustomerFromProfile(ctx, actor, &customer); err != nil {
			return nil, err
		}
	}
	if customer.Phone == "" {
		return nil, apperrors.NewValidationError("customer phone is required", map[string]any{"field": "customerPhone"})
	}

	ticket := &domain.Ticket{
		TicketNumber: generateTicketKey(),
		Title:        title,
		Content:      content,
		Status:       domain.TicketStatusUnseen,
		Priority:     input.Priority,
		Type:         input.Type,
		AuthorID:     actor.ID,
		Customer:     customer,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Type == "" {
		ticket.Type = domain.TicketTypeComplaint
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recorder.Created(ctx, actor, ticket)
	s.metrics.RecordTicketCreated(string(ticket.Type))
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, eventActor(actor), events.TicketCreatedPayload{
		TicketNumber:  ticket.TicketNumber,
		Type:          ticket.Type,
		Priority:      ticket.Priority,
		Title:         ticket.Title,
		CustomerPhone: ticket.Customer.Phone,
	}))
	return ticket, nil
}

// ListTickets returns a page of visible tickets and the total match count.
// Clients are always restricted to their own tickets.
func (s *TicketService) ListTickets(ctx context.Context, actor policy.Actor, filter TicketListFilter) ([]domain.Ticket, int, error) {
	if !actor.Role.Valid() {
		return nil, 0, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter := s.scopedFilter(actor, filter)
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

// GetTicket returns the ticket with comments and available transitions.
func (s *TicketService) GetTicket(ctx context.Context, actor policy.Actor, ticketID int64) (*TicketDetail, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	transitions, err := policy.AvailableTransitions(ticket.Status, actor.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &TicketDetail{Ticket: ticket, Comments: comments, Transitions: transitions}, nil
}

// AvailableTransitions lists the statuses the actor may move the ticket to.
func (s *TicketService) AvailableTransitions(ctx context.Context, actor policy.Actor, ticketID int64) (*domain.Ticket, []domain.TicketStatus, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}
	transitions, err := policy.AvailableTransitions(ticket.Status, actor.Role)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return ticket, transitions, nil
}

// UpdateContent edits title, content, priority or type. The author or any
// staff member may edit; priority and type are staff only. An edit that
// changes nothing writes nothing.
func (s *TicketService) UpdateContent(ctx context.Context, actor policy.Actor, ticketID int64, input TicketContentInput) (*domain.Ticket, error) {
	if input.Title == nil && input.Content == nil && input.Priority == nil && input.Type == nil {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanEditContent(actor, ticket) {
		return nil, apperrors.NewForbidden("not allowed to edit this ticket")
	}
	if (input.Priority != nil || input.Type != nil) && !actor.Role.IsElevated() {
		return nil, apperrors.NewForbidden("only staff may change priority or type")
	}

	updated := *ticket
	if input.Title != nil {
		updated.Title = strings.TrimSpace(*input.Title)
		if err := validateTitle(updated.Title); err != nil {
			return nil, err
		}
	}
	if input.Content != nil {
		updated.Content = strings.TrimSpace(*input.Content)
		if err := validateContent(updated.Content); err != nil {
			return nil, err
		}
	}
	if input.Priority != nil {
		updated.Priority = *input.Priority
	}
	if input.Type != nil {
		updated.Type = *input.Type
	}

	diff := audit.ContentDiff(ticket, &updated)
	if diff.Empty() {
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, &updated, input.ExpectedVersion); err != nil {
		return nil, s.mapWriteError(err, ticket)
	}
	s.recorder.ContentUpdated(ctx, actor, updated.ID, diff)
	s.publishEvent(ctx, events.NewEvent(events.EventTicketUpdated, updated.ID, eventActor(actor), events.TicketUpdatedPayload{
		Fields: diff.Fields,
	}))
	return &updated, nil
}

// ChangeStatus moves the ticket through its lifecycle. A target outside the
// actor's allowed set is rejected with 403 carrying that set. Without an
// expected version the last write wins.
func (s *TicketService) ChangeStatus(ctx context.Context, actor policy.Actor, ticketID int64, input StatusChangeInput) (*domain.Ticket, error) {
	if !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(input.Status)})
	}
	comment := strings.TrimSpace(input.Comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, apperrors.NewValidationError("comment too long", map[string]any{"max": maxCommentLength})
	}

	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	allowed, err := policy.AvailableTransitions(ticket.Status, actor.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !containsStatus(allowed, input.Status) {
		return nil, apperrors.NewForbiddenWithDetails("status transition not allowed", map[string]any{
			"from":    string(ticket.Status),
			"to":      string(input.Status),
			"allowed": allowed,
		})
	}

	oldStatus := ticket.Status
	updated := *ticket
	updated.Status = input.Status
	switch input.Status {
	case domain.TicketStatusResolved:
		now := s.now()
		updated.ResolvedAt = &now
	case domain.TicketStatusInProgress, domain.TicketStatusUnseen:
		updated.ResolvedAt = nil
	}

	if err := s.tickets.Update(ctx, &updated, input.ExpectedVersion); err != nil {
		return nil, s.mapWriteError(err, ticket)
	}
	s.recorder.StatusChanged(ctx, actor, updated.ID, oldStatus, updated.Status, comment)
	s.metrics.RecordTransition(string(oldStatus), string(updated.Status), string(actor.Role))
	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, updated.ID, eventActor(actor), events.TicketStatusChangedPayload{
		TicketNumber:  updated.TicketNumber,
		OldStatus:     oldStatus,
		NewStatus:     updated.Status,
		Comment:       comment,
		AuthorID:      updated.AuthorID,
		CustomerPhone: updated.Customer.Phone,
	}))
	return &updated, nil
}

// Assign sets or clears the ticket assignee. Employees may only take a
// ticket themselves; the assignee must be an active staff member.
func (s *TicketService) Assign(ctx context.Context, actor policy.Actor, ticketID int64, input AssignInput) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAssign(actor, input.AssigneeID) {
		return nil, apperrors.NewForbidden("not allowed to assign this ticket")
	}
	if input.AssigneeID != nil {
		assignee, err := s.users.GetByID(ctx, *input.AssigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("assignee not found", map[string]any{"assigneeId": *input.AssigneeID})
			}
			return nil, apperrors.MapError(err)
		}
		if !policy.CanBeAssignee(assignee) {
			return nil, apperrors.NewValidationError("assignee must be active staff", map[string]any{"assigneeId": assignee.ID})
		}
	}
	if sameAssignee(ticket.AssigneeID, input.AssigneeID) {
		return ticket, nil
	}

	oldAssignee := ticket.AssigneeID
	updated := *ticket
	updated.AssigneeID = input.AssigneeID
	if err := s.tickets.Update(ctx, &updated, input.ExpectedVersion); err != nil {
		return nil, s.mapWriteError(err, ticket)
	}
	s.recorder.Assigned(ctx, actor, updated.ID, oldAssignee, updated.AssigneeID)
	s.publishEvent(ctx, events.NewEvent(events.EventTicketAssigned, updated.ID, eventActor(actor), events.TicketAssignedPayload{
		OldAssigneeID: oldAssignee,
		NewAssigneeID: updated.AssigneeID,
	}))
	return &updated, nil
}

// AddComment appends a comment to the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, actor policy.Actor, ticketID int64, body string) (*domain.TicketComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body is required", map[string]any{"field": "body"})
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, apperrors.NewValidationError("comment too long", map[string]any{"max": maxCommentLength})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanComment(actor, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}

	comment := &domain.TicketComment{
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		AuthorRole: actor.Role,
		Body:       body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recorder.CommentAdded(ctx, actor, comment)
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCommentAdded, ticket.ID, eventActor(actor), events.TicketCommentAddedPayload{
		CommentID:   comment.ID,
		AuthorRole:  comment.AuthorRole,
		AuthorID:    comment.AuthorID,
		BodyPreview: stringPreview(comment.Body, 120),
	}))
	return comment, nil
}

// ListComments returns the thread oldest first.
func (s *TicketService) ListComments(ctx context.Context, actor policy.Actor, ticketID int64) ([]domain.TicketComment, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// DeleteTicket hard deletes a ticket with its activities and comments.
func (s *TicketService) DeleteTicket(ctx context.Context, actor policy.Actor, ticketID int64) error {
	if !policy.CanDelete(actor) {
		return apperrors.NewForbidden("only managers and admins may delete tickets")
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return apperrors.MapError(err)
	}
	s.logger.Info("ticket deleted",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Int64("actor_id", actor.ID),
	)
	s.publishEvent(ctx, events.NewEvent(events.EventTicketDeleted, ticket.ID, eventActor(actor), events.TicketDeletedPayload{
		TicketNumber: ticket.TicketNumber,
	}))
	return nil
}

// TicketHistory returns the ticket's audit trail newest first.
func (s *TicketService) TicketHistory(ctx context.Context, actor policy.Actor, ticketID int64, limit, offset int) ([]domain.TicketActivity, int, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, 0, err
	}
	filter := repository.ActivityFilter{TicketID: &ticket.ID, Limit: limit, Offset: offset}
	return s.listActivities(ctx, filter)
}

// ActivityFeed returns audit entries across tickets for staff.
func (s *TicketService) ActivityFeed(ctx context.Context, actor policy.Actor, filter ActivityFeedFilter) ([]domain.TicketActivity, int, error) {
	if !policy.CanViewFeed(actor) {
		return nil, 0, apperrors.NewForbidden("staff role required")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, apperrors.NewValidationError("from must not be after to", nil)
	}
	return s.listActivities(ctx, repository.ActivityFilter{
		AssigneeID: filter.AssigneeID,
		ActorID:    filter.ActorID,
		Actions:    filter.Actions,
		From:       filter.From,
		To:         filter.To,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Stats counts visible tickets by status. Every status is present in the map.
func (s *TicketService) Stats(ctx context.Context, actor policy.Actor, assigneeID *int64) (*TicketStats, error) {
	if !actor.Role.Valid() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	filter := s.scopedFilter(actor, TicketListFilter{AssigneeID: assigneeID})
	counts, err := s.tickets.CountByStatus(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats := &TicketStats{ByStatus: make(map[domain.TicketStatus]int, len(domain.AllTicketStatuses))}
	for _, status := range domain.AllTicketStatuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

func (s *TicketService) listActivities(ctx context.Context, filter repository.ActivityFilter) ([]domain.TicketActivity, int, error) {
	entries, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.activities.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return entries, total, nil
}

func (s *TicketService) scopedFilter(actor policy.Actor, filter TicketListFilter) repository.TicketFilter {
	scope := policy.ListScope(actor)
	return repository.TicketFilter{
		AuthorID:    scope.AuthorID,
		AssigneeID:  filter.AssigneeID,
		Unassigned:  filter.Unassigned,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		Types:       filter.Types,
		Area:        filter.Area,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
}

// visibleTicket loads a ticket and hides it from actors who may not see it.
func (s *TicketService) visibleTicket(ctx context.Context, actor policy.Actor, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(actor, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	if ticketID <= 0 {
		return nil, apperrors.NewValidationError("invalid ticket id", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) mapWriteError(err error, ticket *domain.Ticket) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"readVersion": ticket.Version})
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
	}
	return apperrors.MapError(err)
}

func (s *TicketService) fillCustomerFromProfile(ctx context.Context, actor policy.Actor, customer *domain.CustomerSnapshot) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if customer.Name == "" {
		customer.Name = user.Name
	}
	if customer.Phone == "" {
		customer.Phone = user.Phone
	}
	if customer.Email == "" {
		customer.Email = user.Email
	}
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateTitle(title string) error {
	if title == "" {
		return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return apperrors.NewValidationError("title too long", map[string]any{"field": "title", "max": maxTitleLength})
	}
	return nil
}

func validateContent(content string) error {
	if content == "" {
		return apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return apperrors.NewValidationError("content too long", map[string]any{"field": "content", "max": maxContentLength})
	}
	return nil
}

func trimCustomer(c domain.CustomerSnapshot) domain.CustomerSnapshot {
	return domain.CustomerSnapshot{
		Name:          strings.TrimSpace(c.Name),
		Phone:         strings.TrimSpace(c.Phone),
		Email:         strings.TrimSpace(c.Email),
		Address:       strings.TrimSpace(c.Address),
		Area:          strings.TrimSpace(c.Area),
		MeterNumber:   strings.TrimSpace(c.MeterNumber),
		AccountNumber: strings.TrimSpace(c.AccountNumber),
	}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func eventActor(actor policy.Actor) events.Actor {
	return events.Actor{UserID: actor.ID, Role: actor.Role}
}

func containsStatus(statuses []domain.TicketStatus, target domain.TicketStatus) bool {
	for _, status := range statuses {
		if status == target {
			return true
		}
	}
	return false
}

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
