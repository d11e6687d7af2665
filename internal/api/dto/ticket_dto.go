package dto

import (
	"time"

	"github.com/spec-kit/utility-crm/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	Priority        string `json:"priority"`
	Type            string `json:"type"`
	CustomerName    string `json:"customerName"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerAddress string `json:"customerAddress"`
	CustomerArea    string `json:"customerArea"`
	MeterNumber     string `json:"meterNumber"`
	AccountNumber   string `json:"accountNumber"`
}

// UpdateTicketRequest is a partial content edit.
type UpdateTicketRequest struct {
	Title           *string `json:"title"`
	Content         *string `json:"content"`
	Priority        *string `json:"priority"`
	Type            *string `json:"type"`
	ExpectedVersion int     `json:"expectedVersion"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status          string `json:"status"`
	Comment         string `json:"comment"`
	ExpectedVersion int    `json:"expectedVersion"`
}

// AssignTicketRequest payload. A null assigneeId unassigns.
type AssignTicketRequest struct {
	AssigneeID      *int64 `json:"assigneeId"`
	ExpectedVersion int    `json:"expectedVersion"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// CustomerResponse is the customer snapshot of a ticket.
type CustomerResponse struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	Address       string `json:"address,omitempty"`
	Area          string `json:"area,omitempty"`
	MeterNumber   string `json:"meterNumber,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           int64                 `json:"id"`
	TicketNumber string                `json:"ticketNumber"`
	Title        string                `json:"title"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Type         domain.TicketType     `json:"type"`
	AuthorID     int64                 `json:"authorId"`
	AssigneeID   *int64                `json:"assigneeId"`
	Customer     CustomerResponse      `json:"customer"`
	Version      int                   `json:"version"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	ResolvedAt   *time.Time            `json:"resolvedAt"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Content     string                  `json:"content"`
	Comments    []TicketCommentResponse `json:"comments"`
	Transitions []domain.TicketStatus   `json:"availableTransitions"`
}

// TicketCommentResponse represents a thread comment.
type TicketCommentResponse struct {
	ID         int64       `json:"id"`
	TicketID   int64       `json:"ticketId"`
	AuthorID   int64       `json:"authorId"`
	AuthorRole domain.Role `json:"authorRole"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// TicketActivityResponse is one audit entry.
type TicketActivityResponse struct {
	ID        int64                 `json:"id"`
	TicketID  int64                 `json:"ticketId"`
	Action    domain.ActivityAction `json:"action"`
	Before    map[string]any        `json:"before"`
	After     map[string]any        `json:"after"`
	Changes   map[string]any        `json:"changes"`
	Comment   string                `json:"comment,omitempty"`
	ActorID   int64                 `json:"actorId"`
	ActorRole domain.Role           `json:"actorRole"`
	CreatedAt time.Time             `json:"createdAt"`
}

// TransitionsResponse lists next statuses for the caller.
type TransitionsResponse struct {
	TicketID    int64                 `json:"ticketId"`
	Current     domain.TicketStatus   `json:"current"`
	Transitions []domain.TicketStatus `json:"availableTransitions"`
}

// TicketStatsResponse is a status histogram.
type TicketStatsResponse struct {
	Total    int                         `json:"total"`
	ByStatus map[domain.TicketStatus]int `json:"byStatus"`
}

// NewTicketSummary maps a ticket to its summary shape.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:           ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Title:        ticket.Title,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		Type:         ticket.Type,
		AuthorID:     ticket.AuthorID,
		AssigneeID:   ticket.AssigneeID,
		Customer: CustomerResponse{
			Name:          ticket.Customer.Name,
			Phone:         ticket.Customer.Phone,
			Email:         ticket.Customer.Email,
			Address:       ticket.Customer.Address,
			Area:          ticket.Customer.Area,
			MeterNumber:   ticket.Customer.MeterNumber,
			AccountNumber: ticket.Customer.AccountNumber,
		},
		Version:    ticket.Version,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
		ResolvedAt: ticket.ResolvedAt,
	}
}

// NewTicketDetail maps a ticket with its thread.
func NewTicketDetail(ticket *domain.Ticket, comments []domain.TicketComment, transitions []domain.TicketStatus) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketSummary: NewTicketSummary(ticket),
		Content:       ticket.Content,
		Comments:      make([]TicketCommentResponse, 0, len(comments)),
		Transitions:   transitions,
	}
	if resp.Transitions == nil {
		resp.Transitions = []domain.TicketStatus{}
	}
	for i := range comments {
		resp.Comments = append(resp.Comments, NewTicketComment(&comments[i]))
	}
	return resp
}

// NewTicketComment maps a comment.
func NewTicketComment(comment *domain.TicketComment) TicketCommentResponse {
	return TicketCommentResponse{
		ID:         comment.ID,
		TicketID:   comment.TicketID,
		AuthorID:   comment.AuthorID,
		AuthorRole: comment.AuthorRole,
		Body:       comment.Body,
		CreatedAt:  comment.CreatedAt,
	}
}

// NewTicketActivities maps audit entries in order.
func NewTicketActivities(entries []domain.TicketActivity) []TicketActivityResponse {
	resp := make([]TicketActivityResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, TicketActivityResponse{
			ID:        entry.ID,
			TicketID:  entry.TicketID,
			Action:    entry.Action,
			Before:    entry.Before,
			After:     entry.After,
			Changes:   entry.Changes,
			Comment:   entry.Comment,
			ActorID:   entry.ActorID,
			ActorRole: entry.ActorRole,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}
