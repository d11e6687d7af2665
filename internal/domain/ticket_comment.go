package domain

import "time"

// TicketComment is a message posted on a ticket thread.
type TicketComment struct {
	ID         int64
	TicketID   int64
	AuthorID   int64
	AuthorRole Role
	Body       string
	CreatedAt  time.Time
}
