package domain

import "time"

// Comment is an append-only note on a ticket.
type Comment struct {
	ID        int64
	TicketID  int64
	AuthorID  int64
	Content   string
	CreatedAt time.Time
}
