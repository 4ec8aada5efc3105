package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/gsg-it/it4u/internal/domain"
)

// Content is the rendered subject and HTML body of one notification.
type Content struct {
	Subject string
	Body    string
}

// Composer renders notification subjects and bodies for ticket events.
type Composer struct {
	subjectPrefix string
	appBaseURL    string
	clock         func() time.Time
}

// NewComposer builds a composer. clock may be nil to use time.Now.
func NewComposer(subjectPrefix, appBaseURL string, clock func() time.Time) *Composer {
	if clock == nil {
		clock = time.Now
	}
	return &Composer{subjectPrefix: subjectPrefix, appBaseURL: appBaseURL, clock: clock}
}

var bodyTemplate = pongo2.Must(pongo2.FromString(`<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2 style="color: #1d4ed8;">{{ header_title }}</h2>
  <table cellpadding="6" cellspacing="0" style="border-collapse: collapse;">
    <tr><td><strong>Ticket</strong></td><td>{{ ticket_number }}</td></tr>
    <tr><td><strong>Title</strong></td><td>{{ title }}</td></tr>
    <tr><td><strong>Status</strong></td><td>{{ status }}</td></tr>
    <tr><td><strong>Priority</strong></td><td>{{ priority }}</td></tr>
    <tr><td><strong>Category</strong></td><td>{{ category }}</td></tr>
    <tr><td><strong>Requested by</strong></td><td>{{ creator_name }}</td></tr>
    <tr><td><strong>Manager</strong></td><td>{{ manager_name }}</td></tr>
    <tr><td><strong>Created</strong></td><td>{{ created_at }}</td></tr>
    <tr><td><strong>Attachments</strong></td><td>{{ attachment_count }}</td></tr>
  </table>
  <p>{{ description }}</p>
  {% if latest_comment %}
  <blockquote style="border-left: 3px solid #9ca3af; padding-left: 10px; color: #374151;">
    {{ latest_comment }}<br/><em>&mdash; {{ comment_author }}</em>
  </blockquote>
  {% endif %}
  <p><a href="{{ ticket_url }}">Open the ticket in IT4U</a></p>
  <p style="color: #6b7280; font-size: 12px;">Last updated by {{ last_updated_by }} at {{ last_updated_at }}</p>
</body>
</html>`))

// Build renders subject and body for the given event. comment is the
// latest comment text, blank when none accompanies the event.
func (c *Composer) Build(ticket domain.TicketSnapshot, event domain.EmailEventType, comment, actorName string) (Content, error) {
	subject := c.buildSubject(ticket, event)
	body, err := bodyTemplate.Execute(pongo2.Context{
		"header_title":     headerTitle(event),
		"ticket_number":    ticket.DisplayNumber(),
		"title":            ticket.Title,
		"status":           string(ticket.Status),
		"priority":         string(ticket.Priority),
		"category":         string(ticket.Category),
		"creator_name":     ticket.Requester.FullName,
		"manager_name":     managerName(ticket),
		"created_at":       ticket.CreatedAt.Format("2006-01-02 15:04"),
		"description":      ticket.Description,
		"latest_comment":   comment,
		"comment_author":   actorName,
		"attachment_count": ticket.AttachmentCount,
		"ticket_url":       fmt.Sprintf("%s/app/tickets/%d", strings.TrimRight(c.appBaseURL, "/"), ticket.ID),
		"last_updated_by":  actorName,
		"last_updated_at":  c.clock().Format("2006-01-02 15:04"),
	})
	if err != nil {
		return Content{}, fmt.Errorf("render mail body: %w", err)
	}
	return Content{Subject: subject, Body: body}, nil
}

func (c *Composer) buildSubject(ticket domain.TicketSnapshot, event domain.EmailEventType) string {
	var sb strings.Builder

	if strings.EqualFold(ticket.RequestType, domain.RequestTypeChangeRequest) {
		sb.WriteString("[Change Request] ")
	}
	sb.WriteString(c.subjectPrefix)
	sb.WriteString(" ")
	sb.WriteString(actionLabel(ticket, event))
	sb.WriteString(" | ")
	sb.WriteString(ticket.DisplayNumber())
	sb.WriteString(" | ")
	sb.WriteString(ticket.Title)

	return sb.String()
}

func actionLabel(ticket domain.TicketSnapshot, event domain.EmailEventType) string {
	switch event {
	case domain.EmailEventTicketCreated:
		return "New Ticket Created"
	case domain.EmailEventApprovalRequested:
		return "Approval Required"
	case domain.EmailEventManagerApproved:
		return "Manager Approved"
	case domain.EmailEventManagerRejected:
		return "Manager Rejected"
	case domain.EmailEventCommentAdded:
		return "Comment Added"
	case domain.EmailEventStatusChanged:
		switch ticket.Status {
		case domain.TicketStatusInProgress:
			return "In-Process"
		case domain.TicketStatusResolved:
			return "Resolved"
		case domain.TicketStatusClosed:
			return "Closed"
		default:
			return "Status Updated"
		}
	default:
		return "Ticket Update"
	}
}

func headerTitle(event domain.EmailEventType) string {
	switch event {
	case domain.EmailEventTicketCreated:
		return "New Ticket Created"
	case domain.EmailEventApprovalRequested:
		return "Action Required: Manager Approval"
	case domain.EmailEventManagerApproved:
		return "Ticket Approved by Manager"
	case domain.EmailEventManagerRejected:
		return "Ticket Rejected by Manager"
	case domain.EmailEventStatusChanged:
		return "Ticket Status Updated"
	case domain.EmailEventCommentAdded:
		return "New Comment Added"
	default:
		return "Ticket Update"
	}
}

func managerName(ticket domain.TicketSnapshot) string {
	if ticket.Manager != nil && ticket.Manager.FullName != "" {
		return ticket.Manager.FullName
	}
	if ticket.ManagerEmail != "" {
		return ticket.ManagerEmail
	}
	return "Unassigned"
}
