// Package audit appends immutable activity entries for ticket mutations.
//
// Writes are best-effort: a failed append is logged and counted but never
// reported to the caller, so the primary mutation always stands.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/observability"
	"github.com/spec-kit/utility-crm/internal/policy"
	"github.com/spec-kit/utility-crm/internal/repository"
)

// writeTimeout bounds an audit append started from a cancelled request.
const writeTimeout = 5 * time.Second

// Recorder writes TicketActivity entries.
type Recorder struct {
	activities repository.ActivityRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewRecorder builds a recorder. metrics may be nil.
func NewRecorder(activities repository.ActivityRepository, logger *zap.Logger, metrics *observability.Metrics) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{activities: activities, logger: logger, metrics: metrics}
}

// Created records ticket creation with the initial field set.
func (r *Recorder) Created(ctx context.Context, actor policy.Actor, ticket *domain.Ticket) {
	r.write(ctx, &domain.TicketActivity{
		TicketID: ticket.ID,
		Action:   domain.ActivityCreated,
		Before:   map[string]any{},
		After:    Snapshot(ticket),
		Changes: map[string]any{
			"action":       string(domain.ActivityCreated),
			"ticketNumber": ticket.TicketNumber,
			"status":       string(ticket.Status),
		},
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
}

// StatusChanged records a lifecycle transition.
func (r *Recorder) StatusChanged(ctx context.Context, actor policy.Actor, ticketID int64, from, to domain.TicketStatus, comment string) {
	r.write(ctx, &domain.TicketActivity{
		TicketID: ticketID,
		Action:   domain.ActivityStatusChanged,
		Before:   map[string]any{"status": string(from)},
		After:    map[string]any{"status": string(to)},
		Changes: map[string]any{
			"action":    string(domain.ActivityStatusChanged),
			"from":      string(from),
			"to":        string(to),
			"updatedBy": string(actor.Role),
		},
		Comment:   comment,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
}

// ContentUpdated records a content edit. An empty diff records nothing.
func (r *Recorder) ContentUpdated(ctx context.Context, actor policy.Actor, ticketID int64, diff Diff) {
	if diff.Empty() {
		return
	}
	r.write(ctx, &domain.TicketActivity{
		TicketID:  ticketID,
		Action:    domain.ActivityUpdated,
		Before:    diff.Before,
		After:     diff.After,
		Changes:   diff.Changes,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
}

// CommentAdded records a thread comment.
func (r *Recorder) CommentAdded(ctx context.Context, actor policy.Actor, comment *domain.TicketComment) {
	r.write(ctx, &domain.TicketActivity{
		TicketID: comment.TicketID,
		Action:   domain.ActivityCommentAdded,
		Before:   map[string]any{},
		After:    map[string]any{},
		Changes: map[string]any{
			"action":    string(domain.ActivityCommentAdded),
			"commentId": comment.ID,
		},
		Comment:   comment.Body,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
}

// Assigned records an assignee change. nil means unassigned.
func (r *Recorder) Assigned(ctx context.Context, actor policy.Actor, ticketID int64, from, to *int64) {
	r.write(ctx, &domain.TicketActivity{
		TicketID: ticketID,
		Action:   domain.ActivityAssigned,
		Before:   map[string]any{"assigneeId": optionalID(from)},
		After:    map[string]any{"assigneeId": optionalID(to)},
		Changes: map[string]any{
			"action": string(domain.ActivityAssigned),
			"from":   optionalID(from),
			"to":     optionalID(to),
		},
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
}

func (r *Recorder) write(ctx context.Context, activity *domain.TicketActivity) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.activities.Create(writeCtx, activity); err != nil {
		r.metrics.RecordAuditFailure(string(activity.Action))
		r.logger.Error("audit write failed",
			zap.Int64("ticket_id", activity.TicketID),
			zap.String("action", string(activity.Action)),
			zap.Int64("actor_id", activity.ActorID),
			zap.Error(err),
		)
	}
}

func optionalID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
