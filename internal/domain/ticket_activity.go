package domain

import "time"

// ActivityAction captures the kind of ticket mutation recorded.
type ActivityAction string

const (
	ActivityCreated       ActivityAction = "created"
	ActivityStatusChanged ActivityAction = "status_changed"
	ActivityUpdated       ActivityAction = "updated"
	ActivityCommentAdded  ActivityAction = "comment_added"
	ActivityAssigned      ActivityAction = "assigned"
)

// Valid reports whether the action is known.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActivityCreated, ActivityStatusChanged, ActivityUpdated, ActivityCommentAdded, ActivityAssigned:
		return true
	}
	return false
}

// TicketActivity is an immutable audit trail entry.
type TicketActivity struct {
	ID        int64
	TicketID  int64
	Action    ActivityAction
	Before    map[string]any
	After     map[string]any
	Changes   map[string]any
	Comment   string
	ActorID   int64
	ActorRole Role
	CreatedAt time.Time
}
