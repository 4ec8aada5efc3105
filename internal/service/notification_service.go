package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsg-it/it4u/internal/config"
	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/events"
	"github.com/gsg-it/it4u/internal/mail"
	"github.com/gsg-it/it4u/internal/repository"
)

// NotificationService consumes lifecycle events and sends email
// notifications. It never returns errors to the publishing side: a
// failed delivery is recorded in the audit trail and logged, nothing
// else. A single manager decision event fans out to an approved or a
// rejected email; a status change may carry a comment that is rendered
// into the body.
type NotificationService struct {
	store     *repository.Store
	transport mail.Transport
	composer  *mail.Composer
	resolver  *mail.RecipientResolver
	cfg       config.MailConfig
	logger    *zap.Logger
	clock     func() time.Time
}

// NewNotificationService constructs the consumer. transport may be nil
// when no SMTP host is configured; the service then skips silently.
func NewNotificationService(store *repository.Store, transport mail.Transport, cfg config.MailConfig, appBaseURL string, logger *zap.Logger, clock func() time.Time) *NotificationService {
	if clock == nil {
		clock = time.Now
	}
	return &NotificationService{
		store:     store,
		transport: transport,
		composer:  mail.NewComposer(cfg.SubjectPrefix, appBaseURL, clock),
		resolver:  mail.NewRecipientResolver(cfg.SupportCc, cfg.AdminCc),
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
	}
}

// Register subscribes the service to every lifecycle event type.
func (s *NotificationService) Register(bus events.Bus) {
	bus.Subscribe(events.EventTicketCreated, s.HandleTicketCreated)
	bus.Subscribe(events.EventManagerDecision, s.HandleManagerDecision)
	bus.Subscribe(events.EventStatusChanged, s.HandleStatusChanged)
	bus.Subscribe(events.EventCommentAdded, s.HandleCommentAdded)
}

// HandleTicketCreated sends the confirmation email and, when the ticket
// awaits approval, the approval request to the manager.
func (s *NotificationService) HandleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	s.notify(ctx, payload.Ticket, domain.EmailEventTicketCreated, "", "")
	if payload.Ticket.ApprovalStatus == domain.ApprovalPending {
		s.notify(ctx, payload.Ticket, domain.EmailEventApprovalRequested, "", "")
	}
	return nil
}

// HandleManagerDecision sends the approved or rejected email.
func (s *NotificationService) HandleManagerDecision(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ManagerDecisionPayload)
	if !ok {
		return nil
	}
	emailEvent := domain.EmailEventManagerRejected
	if payload.Approved {
		emailEvent = domain.EmailEventManagerApproved
	}
	s.notify(ctx, payload.Ticket, emailEvent, payload.Comment, payload.Actor.FullName)
	return nil
}

// HandleStatusChanged sends the status update email.
func (s *NotificationService) HandleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok {
		return nil
	}
	s.notify(ctx, payload.Ticket, domain.EmailEventStatusChanged, payload.Comment, payload.Actor.FullName)
	return nil
}

// HandleCommentAdded sends the new comment email.
func (s *NotificationService) HandleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok {
		return nil
	}
	s.notify(ctx, payload.Ticket, domain.EmailEventCommentAdded, payload.Comment.Content, payload.Actor.FullName)
	return nil
}

// notify performs one delivery attempt and writes exactly one audit row
// for it, SENT or FAILED. Skips (disabled mail, no transport, no
// recipients, ticket gone) produce no audit row at all.
func (s *NotificationService) notify(ctx context.Context, ticket domain.TicketSnapshot, emailEvent domain.EmailEventType, comment, actorName string) {
	if !s.cfg.Enabled || s.transport == nil {
		s.logger.Debug("mail disabled, dropping notification",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("event", string(emailEvent)))
		return
	}

	recipients := s.resolver.Resolve(ticket, emailEvent)
	if recipients.Empty() {
		s.logger.Warn("no recipients resolved, skipping notification",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("event", string(emailEvent)))
		return
	}

	content, err := s.composer.Build(ticket, emailEvent, comment, actorName)
	if err != nil {
		s.logger.Error("failed to compose notification", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		s.audit(ctx, ticket.ID, emailEvent, "", "", "", err)
		return
	}

	msg := mail.Message{
		From:     s.cfg.SenderAddress,
		To:       recipients.To,
		Cc:       recipients.Cc,
		Subject:  content.Subject,
		HTMLBody: content.Body,
	}
	if err := s.thread(ctx, ticket.ID, &msg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Ticket was deleted between commit and delivery.
			s.logger.Info("ticket gone before notification, skipping", zap.Int64("ticket_id", ticket.ID))
			return
		}
		s.logger.Error("failed to resolve email thread", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		s.audit(ctx, ticket.ID, emailEvent, "", "", content.Subject, err)
		return
	}

	if err := s.transport.Send(ctx, msg); err != nil {
		s.logger.Error("notification delivery failed",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("event", string(emailEvent)),
			zap.Error(err))
		s.audit(ctx, ticket.ID, emailEvent, "", "", content.Subject, err)
		return
	}

	s.audit(ctx, ticket.ID, emailEvent,
		strings.Join(recipients.To, ","), strings.Join(recipients.Cc, ","), content.Subject, nil)
	s.logger.Info("notification sent",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("event", string(emailEvent)),
		zap.Strings("to", recipients.To))
}

// thread fills the threading headers. The first email on a ticket
// generates and persists the root Message-ID; every later email replies
// to that root so mail clients group the whole ticket into one
// conversation. Persisting is set-once, so a concurrent first email
// keeps the stored root authoritative.
func (s *NotificationService) thread(ctx context.Context, ticketID int64, msg *mail.Message) error {
	t, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.EmailThreadMessageID == "" {
		rootID := mail.NewMessageID(ticketID, s.cfg.ThreadDomain, s.clock())
		if err := s.store.Tickets.SetThreadMessageID(ctx, ticketID, rootID); err != nil {
			return err
		}
		if t, err = s.store.Tickets.GetByID(ctx, ticketID); err != nil {
			return err
		}
		if t.EmailThreadMessageID == rootID {
			msg.MessageID = rootID
			return nil
		}
	}
	msg.MessageID = mail.NewMessageID(ticketID, s.cfg.ThreadDomain, s.clock())
	msg.InReplyTo = t.EmailThreadMessageID
	msg.References = t.EmailThreadMessageID
	return nil
}

// audit writes one row per delivery attempt. Audit persistence errors
// are logged and swallowed; the email outcome already happened.
func (s *NotificationService) audit(ctx context.Context, ticketID int64, emailEvent domain.EmailEventType, to, cc, subject string, sendErr error) {
	row := &domain.EmailAudit{
		TicketID:  &ticketID,
		EventType: emailEvent,
		ToEmail:   to,
		CcEmail:   cc,
		Subject:   subject,
		Status:    domain.AuditStatusSent,
		SentAt:    s.clock(),
	}
	if sendErr != nil {
		row.Status = domain.AuditStatusFailed
		row.ErrorMessage = sendErr.Error()
	}
	if err := s.store.Audits.Create(ctx, row); err != nil {
		s.logger.Error("failed to persist email audit",
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
	}
}
