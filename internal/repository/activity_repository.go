package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/utility-crm/internal/domain"
)

// ActivityFilter narrows the cross-ticket activity feed.
type ActivityFilter struct {
	TicketID   *int64
	AssigneeID *int64
	ActorID    *int64
	Actions    []domain.ActivityAction
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// ActivityRepository stores audit entries. Entries are append-only; they
// only disappear through TicketRepository.Delete.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.TicketActivity) error
	// List returns matching entries newest first.
	List(ctx context.Context, filter ActivityFilter) ([]domain.TicketActivity, error)
	Count(ctx context.Context, filter ActivityFilter) (int, error)
}

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository builds repository.
func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.TicketActivity) error {
	const query = `
        INSERT INTO ticket_activities (ticket_id, action, before, after, changes, comment, actor_id, actor_role)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		activity.TicketID,
		activity.Action,
		jsonObject(activity.Before),
		jsonObject(activity.After),
		jsonObject(activity.Changes),
		activity.Comment,
		activity.ActorID,
		activity.ActorRole,
	).Scan(&activity.ID, &activity.CreatedAt)
}

func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]domain.TicketActivity, error) {
	where, args := buildActivityWhere(filter)
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
        SELECT a.id, a.ticket_id, a.action, a.before, a.after, a.changes, a.comment, a.actor_id, a.actor_role, a.created_at
        FROM ticket_activities a JOIN tickets t ON t.id = a.ticket_id
        WHERE %s ORDER BY a.created_at DESC, a.id DESC LIMIT %d OFFSET %d`, where, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

func (r *activityRepository) Count(ctx context.Context, filter ActivityFilter) (int, error) {
	where, args := buildActivityWhere(filter)
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ticket_activities a JOIN tickets t ON t.id = a.ticket_id WHERE `+where,
		args...).Scan(&total)
	return total, err
}

func buildActivityWhere(filter ActivityFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("a.ticket_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assignee_id=$%d", len(args)))
	}
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("a.actor_id=$%d", len(args)))
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, action := range filter.Actions {
			args = append(args, action)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("a.action IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("a.created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("a.created_at <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanActivities(rows pgx.Rows) ([]domain.TicketActivity, error) {
	result := []domain.TicketActivity{}
	for rows.Next() {
		var activity domain.TicketActivity
		if err := rows.Scan(
			&activity.ID,
			&activity.TicketID,
			&activity.Action,
			&activity.Before,
			&activity.After,
			&activity.Changes,
			&activity.Comment,
			&activity.ActorID,
			&activity.ActorRole,
			&activity.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, activity)
	}
	return result, rows.Err()
}

// jsonObject keeps NOT NULL jsonb columns at '{}' rather than null.
func jsonObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
