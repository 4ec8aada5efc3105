package domain

import "time"

// Attachment is a file reference owned by a ticket. Records are
// soft-deleted independently of the ticket.
type Attachment struct {
	ID           int64
	TicketID     int64
	FileName     string
	StorageKey   string
	ContentType  string
	SizeBytes    int64
	UploadedByID int64
	UploadedAt   time.Time
	DeletedAt    *time.Time
	DeletedByID  *int64
}
