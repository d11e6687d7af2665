package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/utility-crm/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventLoginCodeIssued     EventType = "login_code_issued"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID int64       `json:"userId"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticketId,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID int64, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber  string                `json:"ticketNumber"`
	Type          domain.TicketType     `json:"type"`
	Priority      domain.TicketPriority `json:"priority"`
	Title         string                `json:"title"`
	CustomerPhone string                `json:"customerPhone"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketNumber  string              `json:"ticketNumber"`
	OldStatus     domain.TicketStatus `json:"oldStatus"`
	NewStatus     domain.TicketStatus `json:"newStatus"`
	Comment       string              `json:"comment,omitempty"`
	AuthorID      int64               `json:"authorId"`
	CustomerPhone string              `json:"customerPhone"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssigneeID *int64 `json:"oldAssigneeId,omitempty"`
	NewAssigneeID *int64 `json:"newAssigneeId,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   int64       `json:"commentId"`
	AuthorRole  domain.Role `json:"authorRole"`
	AuthorID    int64       `json:"authorId"`
	BodyPreview string      `json:"bodyPreview"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	TicketNumber string `json:"ticketNumber"`
}

// LoginCodeIssuedPayload carries the plain code to the SMS channel only.
type LoginCodeIssuedPayload struct {
	Phone string `json:"phone"`
	Code  string `json:"-"`
}
