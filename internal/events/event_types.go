package events

import (
	"time"

	"github.com/gsg-it/it4u/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventManagerDecision EventType = "ticket_manager_decision"
	EventStatusChanged   EventType = "ticket_status_changed"
	EventCommentAdded    EventType = "ticket_comment_added"
)

// Event represents a domain event emitted by the ticket lifecycle. It
// carries only immutable snapshot data so async consumers never touch
// in-flight entities.
type Event struct {
	ID        string
	Type      EventType
	TicketID  int64
	Timestamp time.Time
	Payload   any
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket  domain.TicketSnapshot
	Creator domain.UserRef
	Manager *domain.UserRef
}

// ManagerDecisionPayload payload.
type ManagerDecisionPayload struct {
	Ticket   domain.TicketSnapshot
	Approved bool
	Actor    domain.UserRef
	Comment  string
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	Ticket    domain.TicketSnapshot
	OldStatus domain.TicketStatus
	NewStatus domain.TicketStatus
	Actor     domain.UserRef
	Comment   string
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	Ticket  domain.TicketSnapshot
	Comment domain.Comment
	Actor   domain.UserRef
}
