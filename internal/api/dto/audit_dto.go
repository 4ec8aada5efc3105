package dto

import (
	"time"

	"github.com/gsg-it/it4u/internal/domain"
)

// EmailAuditResponse represents one delivery attempt.
type EmailAuditResponse struct {
	ID           int64                 `json:"id"`
	TicketID     *int64                `json:"ticket_id"`
	EventType    domain.EmailEventType `json:"event_type"`
	ToEmail      string                `json:"to_email"`
	CcEmail      string                `json:"cc_email"`
	Subject      string                `json:"subject"`
	Status       domain.AuditStatus    `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
	SentAt       time.Time             `json:"sent_at"`
}

// NewEmailAuditResponse maps an audit row.
func NewEmailAuditResponse(a *domain.EmailAudit) EmailAuditResponse {
	return EmailAuditResponse{
		ID:           a.ID,
		TicketID:     a.TicketID,
		EventType:    a.EventType,
		ToEmail:      a.ToEmail,
		CcEmail:      a.CcEmail,
		Subject:      a.Subject,
		Status:       a.Status,
		ErrorMessage: a.ErrorMessage,
		SentAt:       a.SentAt,
	}
}
