package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusUnseen     TicketStatus = "unseen"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusRejected   TicketStatus = "rejected"
)

// AllTicketStatuses lists statuses in lifecycle order.
var AllTicketStatuses = []TicketStatus{
	TicketStatusUnseen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
	TicketStatusRejected,
}

// ParseTicketStatus validates a status value.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown ticket status %q", raw)
	}
	return status, nil
}

// Valid reports whether the status belongs to the closed set.
func (s TicketStatus) Valid() bool {
	for _, candidate := range AllTicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// ParseTicketPriority validates a priority value.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	switch p := TicketPriority(strings.ToLower(strings.TrimSpace(raw))); p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown ticket priority %q", raw)
}

// TicketType classifies the customer issue.
type TicketType string

const (
	TicketTypeComplaint   TicketType = "complaint"
	TicketTypeRequest     TicketType = "request"
	TicketTypeInquiry     TicketType = "inquiry"
	TicketTypeTechnical   TicketType = "technical"
	TicketTypeBilling     TicketType = "billing"
	TicketTypeConnection  TicketType = "connection"
	TicketTypeMaintenance TicketType = "maintenance"
)

// ParseTicketType validates a type value.
func ParseTicketType(raw string) (TicketType, error) {
	switch t := TicketType(strings.ToLower(strings.TrimSpace(raw))); t {
	case TicketTypeComplaint, TicketTypeRequest, TicketTypeInquiry, TicketTypeTechnical,
		TicketTypeBilling, TicketTypeConnection, TicketTypeMaintenance:
		return t, nil
	}
	return "", fmt.Errorf("unknown ticket type %q", raw)
}

// CustomerSnapshot holds denormalized customer data captured at creation time.
type CustomerSnapshot struct {
	Name          string
	Phone         string
	Email         string
	Address       string
	Area          string
	MeterNumber   string
	AccountNumber string
}

// Ticket is the aggregate for customer issues and requests.
type Ticket struct {
	ID           int64
	TicketNumber string
	Title        string
	Content      string
	Status       TicketStatus
	Priority     TicketPriority
	Type         TicketType
	AuthorID     int64
	AssigneeID   *int64
	Customer     CustomerSnapshot
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time
}
