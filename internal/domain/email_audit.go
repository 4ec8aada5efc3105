package domain

import "time"

// EmailEventType classifies the notification that produced an audit row.
type EmailEventType string

const (
	EmailEventTicketCreated     EmailEventType = "TICKET_CREATED"
	EmailEventApprovalRequested EmailEventType = "MANAGER_APPROVAL_REQUESTED"
	EmailEventManagerApproved   EmailEventType = "MANAGER_APPROVED"
	EmailEventManagerRejected   EmailEventType = "MANAGER_REJECTED"
	EmailEventStatusChanged     EmailEventType = "STATUS_CHANGED"
	EmailEventCommentAdded      EmailEventType = "COMMENT_ADDED"
)

// AuditStatus records the outcome of one delivery attempt.
type AuditStatus string

const (
	AuditStatusSent   AuditStatus = "SENT"
	AuditStatusFailed AuditStatus = "FAILED"
)

// EmailAudit is one immutable row per notification attempt. TicketID is
// nullable so rows survive a ticket hard-delete only when explicitly
// preserved; the normal delete path removes them.
type EmailAudit struct {
	ID           int64
	TicketID     *int64
	EventType    EmailEventType
	ToEmail      string
	CcEmail      string
	Subject      string
	Status       AuditStatus
	ErrorMessage string
	SentAt       time.Time
	CreatedAt    time.Time
}
