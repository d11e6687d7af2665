package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/utility-crm/internal/domain"
)

// ErrVersionConflict signals that a conditional update lost a race.
var ErrVersionConflict = errors.New("ticket version conflict")

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	AuthorID    *int64
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

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update persists the mutable fields and bumps Version. A positive
	// expectedVersion makes the write conditional.
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int, error)
	// Delete removes the ticket together with its activities and comments.
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, title, content, status, priority, type, author_id, assignee_id,
               customer_name, customer_phone, customer_email, customer_address, customer_area,
               meter_number, account_number, version, created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, title, content, status, priority, type, author_id, assignee_id,
            customer_name, customer_phone, customer_email, customer_address, customer_area, meter_number, account_number)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Content,
		ticket.Status,
		ticket.Priority,
		ticket.Type,
		ticket.AuthorID,
		ticket.AssigneeID,
		ticket.Customer.Name,
		ticket.Customer.Phone,
		ticket.Customer.Email,
		ticket.Customer.Address,
		ticket.Customer.Area,
		ticket.Customer.MeterNumber,
		ticket.Customer.AccountNumber,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error {
	const query = `
        UPDATE tickets SET title=$1, content=$2, status=$3, priority=$4, type=$5, assignee_id=$6,
            resolved_at=$7, version=version+1, updated_at=NOW()
        WHERE id=$8 AND ($9::int = 0 OR version=$9)
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Content,
		ticket.Status,
		ticket.Priority,
		ticket.Type,
		ticket.AssigneeID,
		ticket.ResolvedAt,
		ticket.ID,
		expectedVersion,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) && expectedVersion > 0 {
		if _, getErr := r.GetByID(ctx, ticket.ID); getErr == nil {
			return ErrVersionConflict
		}
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number=$1`, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := buildTicketWhere(filter)
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *ticketRepository) CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int, error) {
	filter.Statuses = nil
	where, args := buildTicketWhere(filter)
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets WHERE `+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int, len(domain.AllTicketStatuses))
	for rows.Next() {
		var status domain.TicketStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_activities WHERE ticket_id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_comments WHERE ticket_id=$1`, id); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AuthorID != nil {
		args = append(args, *filter.AuthorID)
		clauses = append(clauses, fmt.Sprintf("author_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	} else if filter.Unassigned {
		clauses = append(clauses, "assignee_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, tp := range filter.Types {
			args = append(args, tp)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Area != nil && strings.TrimSpace(*filter.Area) != "" {
		args = append(args, strings.TrimSpace(*filter.Area))
		clauses = append(clauses, fmt.Sprintf("customer_area=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE %[1]s OR LOWER(content) LIKE %[1]s OR LOWER(ticket_number) LIKE %[1]s OR LOWER(customer_name) LIKE %[1]s OR customer_phone LIKE %[1]s)", p))
	}
	return strings.Join(clauses, " AND "), args
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Content,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Type,
		&ticket.AuthorID,
		&ticket.AssigneeID,
		&ticket.Customer.Name,
		&ticket.Customer.Phone,
		&ticket.Customer.Email,
		&ticket.Customer.Address,
		&ticket.Customer.Area,
		&ticket.Customer.MeterNumber,
		&ticket.Customer.AccountNumber,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
