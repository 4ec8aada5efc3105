package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/events"
	"github.com/gsg-it/it4u/internal/repository"
	apperrors "github.com/gsg-it/it4u/pkg/util"
)

// TicketService owns every status and approval transition. All rules
// about which role may move a ticket between which states live here and
// in AccessPolicy; events are published only after the storing
// transaction commits.
type TicketService struct {
	store  *repository.Store
	bus    events.Bus
	policy AccessPolicy
	cache  *TicketCache
	logger *zap.Logger
	clock  func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store  *repository.Store
	Bus    events.Bus
	Cache  *TicketCache
	Logger *zap.Logger
	Clock  func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		store:  deps.Store,
		bus:    deps.Bus,
		cache:  deps.Cache,
		logger: deps.Logger,
		clock:  clock,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title           string
	Description     string
	Category        domain.TicketCategory
	RequestType     string
	ManagerID       *int64
	ManagerUsername string
	DeviceInfo      string
	SoftwareInfo    string
	DomainInfo      string
}

// TicketListFilter describes listing parameters before role scoping.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Categories []domain.TicketCategory
	SearchTerm *string
	Limit      int
	Offset     int
}

// AdminUpdateInput is the composite admin mutation payload.
type AdminUpdateInput struct {
	Category     *domain.TicketCategory
	Priority     *domain.TicketPriority
	AssignedToID *int64
	Status       *domain.TicketStatus
	Comment      string
}

// Create validates input, resolves requester and manager, applies the
// approval gate and persists the ticket. The ticket number embeds the
// store-assigned id, so the row is written once to obtain the id and
// updated inside the same transaction to stamp the number.
func (s *TicketService) Create(ctx context.Context, requesterID int64, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if !input.Category.IsValid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}

	var (
		ticket *domain.Ticket
		snap   domain.TicketSnapshot
		event  events.Event
	)
	err := s.store.InTx(ctx, func(st *repository.Store) error {
		requester, err := st.Users.GetByID(ctx, requesterID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewValidationError("requester not found or invalid", nil)
			}
			return err
		}

		manager := s.resolveManager(ctx, st, input)

		t := &domain.Ticket{
			Title:       strings.TrimSpace(input.Title),
			Description: strings.TrimSpace(input.Description),
			Category:    input.Category,
			RequestType: strings.TrimSpace(input.RequestType),
			Priority:    domain.TicketPriorityUnassigned,
			RequesterID: requester.ID,
			UpdatedByID: &requester.ID,

			DeviceInfo:   input.DeviceInfo,
			SoftwareInfo: input.SoftwareInfo,
			DomainInfo:   input.DomainInfo,
		}
		if manager != nil {
			t.ManagerID = &manager.ID
			t.ManagerEmail = manager.Email
		}

		needsApproval := manager != nil || input.Category.RequiresApproval()
		if needsApproval {
			t.Status = domain.TicketStatusPendingApproval
			t.ApprovalStatus = domain.ApprovalPending
		} else {
			t.Status = domain.TicketStatusOpen
			t.ApprovalStatus = domain.ApprovalNA
		}

		if err := st.Tickets.Create(ctx, t); err != nil {
			return err
		}

		t.TicketNumber = ticketNumber(t.ID, s.clock())
		t.UpdatedAt = s.clock()
		if err := st.Tickets.Update(ctx, t); err != nil {
			return err
		}

		snap = domain.SnapshotTicket(t, requester, manager, nil, 0)
		eventType := events.EventTicketCreated
		event = s.newEvent(eventType, t.ID, events.TicketCreatedPayload{
			Ticket:  snap,
			Creator: *domain.RefOf(requester),
			Manager: domain.RefOf(manager),
		})
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event)
	s.logger.Info("ticket created",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("status", string(ticket.Status)),
		zap.String("approval", string(ticket.ApprovalStatus)))
	return ticket, nil
}

// Approve clears the approval gate. Managers may approve only pending
// tickets; ADMIN and IT_SUPPORT may force an approval from any state to
// unstick a workflow.
func (s *TicketService) Approve(ctx context.Context, ticketID int64, actor *domain.User, comment string, priority *domain.TicketPriority) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		event  events.Event
	)
	err := s.store.InTx(ctx, func(st *repository.Store) error {
		t, err := st.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return mapTicketErr(err)
		}

		if !actor.Role.IsOverride() {
			if !isTicketManager(actor, t) {
				return apperrors.NewForbidden("only the ticket manager may approve")
			}
			if t.Status != domain.TicketStatusPendingApproval {
				return apperrors.NewStateConflict("ticket is not pending approval", map[string]any{"status": t.Status})
			}
		}

		now := s.clock()
		t.ApprovalStatus = domain.ApprovalApproved
		t.Status = domain.TicketStatusOpen
		if t.ApprovedAt == nil {
			t.ApprovedAt = &now
		}
		if priority != nil {
			t.Priority = *priority
		}
		t.UpdatedAt = now
		t.UpdatedByID = &actor.ID

		if err := st.Tickets.Update(ctx, t); err != nil {
			return err
		}
		if err := s.appendComment(ctx, st, t.ID, actor.ID, comment); err != nil {
			return err
		}

		snap, err := s.snapshot(ctx, st, t)
		if err != nil {
			return err
		}
		event = s.newEvent(events.EventManagerDecision, t.ID, events.ManagerDecisionPayload{
			Ticket:   snap,
			Approved: true,
			Actor:    *domain.RefOf(actor),
			Comment:  comment,
		})
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, ticketID)
	s.publish(ctx, event)
	s.logger.Info("ticket approved",
		zap.Int64("ticket_id", ticketID),
		zap.String("by", actor.Username))
	return ticket, nil
}

// Reject is terminal: the ticket moves straight to CLOSED. There is no
// override path; only pending tickets can be rejected.
func (s *TicketService) Reject(ctx context.Context, ticketID int64, actor *domain.User, comment string) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		event  events.Event
	)
	err := s.store.InTx(ctx, func(st *repository.Store) error {
		t, err := st.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return mapTicketErr(err)
		}
		if !actor.Role.IsOverride() && !isTicketManager(actor, t) {
			return apperrors.NewForbidden("only the ticket manager may reject")
		}
		if t.Status != domain.TicketStatusPendingApproval {
			return apperrors.NewStateConflict("ticket is not pending approval", map[string]any{"status": t.Status})
		}

		now := s.clock()
		t.ApprovalStatus = domain.ApprovalRejected
		t.Status = domain.TicketStatusClosed
		if t.RejectedAt == nil {
			t.RejectedAt = &now
		}
		if t.ClosedAt == nil {
			t.ClosedAt = &now
		}
		t.UpdatedAt = now
		t.UpdatedByID = &actor.ID

		if err := st.Tickets.Update(ctx, t); err != nil {
			return err
		}
		if err := s.appendComment(ctx, st, t.ID, actor.ID, comment); err != nil {
			return err
		}

		snap, err := s.snapshot(ctx, st, t)
		if err != nil {
			return err
		}
		event = s.newEvent(events.EventManagerDecision, t.ID, events.ManagerDecisionPayload{
			Ticket:   snap,
			Approved: false,
			Actor:    *domain.RefOf(actor),
			Comment:  comment,
		})
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, ticketID)
	s.publish(ctx, event)
	s.logger.Info("ticket rejected", zap.Int64("ticket_id", ticketID), zap.String("by", actor.Username))
	return ticket, nil
}

// UpdateStatus is the generic transition, restricted to ADMIN and
// IT_SUPPORT. IT_SUPPORT may close or resolve only tickets assigned to
// them. Transitioning to the current status is a no-op: no write, no
// event.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID int64, newStatus domain.TicketStatus, actor *domain.User, comment string) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		event  events.Event
		noop   bool
	)
	err := s.store.InTx(ctx, func(st *repository.Store) error {
		t, err := st.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return mapTicketErr(err)
		}
		oldStatus := t.Status
		if oldStatus == newStatus {
			ticket = t
			noop = true
			return nil
		}

		if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleITSupport {
			return apperrors.NewForbidden("role " + string(actor.Role) + " not allowed to directly update status")
		}
		if actor.Role == domain.RoleITSupport &&
			(newStatus == domain.TicketStatusResolved || newStatus == domain.TicketStatusClosed) {
			if t.AssignedToID == nil || *t.AssignedToID != actor.ID {
				return apperrors.NewForbidden("support agents can only close or resolve tickets assigned to them")
			}
		}

		now := s.clock()
		t.Status = newStatus
		t.UpdatedAt = now
		t.UpdatedByID = &actor.ID

		// First transition into each state wins; re-entering never
		// overwrites the stamp.
		switch newStatus {
		case domain.TicketStatusInProgress:
			if t.InProgressAt == nil {
				t.InProgressAt = &now
			}
		case domain.TicketStatusResolved:
			if t.ResolvedAt == nil {
				t.ResolvedAt = &now
			}
		case domain.TicketStatusClosed:
			if t.ClosedAt == nil {
				t.ClosedAt = &now
			}
		}

		// A ticket forced into a work state must not keep a pending
		// approval. NA, not APPROVED: the manager never decided.
		if newStatus.IsWorkState() && t.ApprovalStatus == domain.ApprovalPending {
			t.ApprovalStatus = domain.ApprovalNA
			s.logger.Info("approval auto-resolved to NA on forced status change",
				zap.Int64("ticket_id", t.ID),
				zap.String("new_status", string(newStatus)))
		}

		if err := st.Tickets.Update(ctx, t); err != nil {
			return err
		}
		if err := s.appendComment(ctx, st, t.ID, actor.ID, comment); err != nil {
			return err
		}

		snap, err := s.snapshot(ctx, st, t)
		if err != nil {
			return err
		}
		event = s.newEvent(events.EventStatusChanged, t.ID, events.StatusChangedPayload{
			Ticket:    snap,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Actor:     *domain.RefOf(actor),
			Comment:   comment,
		})
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return ticket, nil
	}

	s.cache.Invalidate(ctx, ticketID)
	s.publish(ctx, event)
	s.logger.Info("ticket status updated",
		zap.Int64("ticket_id", ticketID),
		zap.String("new_status", string(newStatus)))
	return ticket, nil
}

// AddComment appends a comment for any actor with view access.
func (s *TicketService) AddComment(ctx context.Context, ticketID int64, actor *domain.User, content string) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("comment content required", nil)
	}

	var (
		comment *domain.Comment
		event   events.Event
	)
	err := s.store.InTx(ctx, func(st *repository.Store) error {
		t, err := st.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return mapTicketErr(err)
		}
		if !s.policy.CanView(actor, t) {
			return apperrors.NewForbidden("not allowed to view this ticket")
		}

		c := &domain.Comment{
			TicketID: t.ID,
			AuthorID: actor.ID,
			Content:  content,
		}
		if err := st.Comments.Create(ctx, c); err != nil {
			return err
		}

		snap, err := s.snapshot(ctx, st, t)
		if err != nil {
			return err
		}
		event = s.newEvent(events.EventCommentAdded, t.ID, events.CommentAddedPayload{
			Ticket:  snap,
			Comment: *c,
			Actor:   *domain.RefOf(actor),
		})
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, ticketID)
	s.publish(ctx, event)
	return comment, nil
}

// Assign sets the assigned support agent. Assignment is not itself a
// status transition, but an OPEN ticket conventionally starts work, so
// it triggers UpdateStatus to IN_PROGRESS as a second unit of work.
func (s *TicketService) Assign(ctx context.Context, ticketID, assigneeID int64, actor *domain.User) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleITSupport {
		return nil, apperrors.NewForbidden("role " + string(actor.Role) + " not allowed to assign tickets")
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(st *repository.Store) error {
		t, err := st.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return mapTicketErr(err)
		}
		assignee, err := st.Users.GetByID(ctx, assigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewValidationError("assignee not found", nil)
			}
			return err
		}

		t.AssignedToID = &assignee.ID
		t.UpdatedAt = s.clock()
		t.UpdatedByID = &actor.ID
		if err := st.Tickets.Update(ctx, t); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, ticketID)

	if ticket.Status == domain.TicketStatusOpen {
		return s.UpdateStatus(ctx, ticketID, domain.TicketStatusInProgress, actor, "")
	}
	return ticket, nil
}

// AdminUpdate applies a composite category/priority/assignment change
// and delegates any status leg to UpdateStatus so transition side
// effects are never duplicated or bypassed. Moving into a work state
// is rejected up front while approval is pending: approval must clear
// first.
func (s *TicketService) AdminUpdate(ctx context.Context, ticketID int64, actor *domain.User, input AdminUpdateInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}

	var (
		ticket    *domain.Ticket
		statusLeg *domain.TicketStatus
	)
	err := s.store.InTx(ctx, func(st *repository.Store) error {
		t, err := st.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return mapTicketErr(err)
		}

		if input.Status != nil && *input.Status != t.Status {
			if t.ApprovalStatus == domain.ApprovalPending && isWorkTarget(*input.Status) {
				return apperrors.NewValidationError(
					"manager approval is pending; cannot move to "+string(*input.Status), nil)
			}
			statusLeg = input.Status
		}

		changed := false
		if input.Category != nil && input.Category.IsValid() {
			t.Category = *input.Category
			changed = true
		}
		if input.Priority != nil {
			t.Priority = *input.Priority
			changed = true
		}
		if input.AssignedToID != nil {
			assignee, err := st.Users.GetByID(ctx, *input.AssignedToID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewValidationError("assignee not found", nil)
				}
				return err
			}
			t.AssignedToID = &assignee.ID
			changed = true
		}
		if changed {
			t.UpdatedAt = s.clock()
			t.UpdatedByID = &actor.ID
			if err := st.Tickets.Update(ctx, t); err != nil {
				return err
			}
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, ticketID)

	if statusLeg != nil {
		return s.UpdateStatus(ctx, ticketID, *statusLeg, actor, input.Comment)
	}
	return ticket, nil
}

// Delete hard-deletes a ticket. Comments and attachments cascade in the
// schema; email audit rows reference the ticket only loosely and are
// removed explicitly inside the same transaction.
func (s *TicketService) Delete(ctx context.Context, ticketID int64, actor *domain.User) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}

	err := s.store.InTx(ctx, func(st *repository.Store) error {
		if _, err := st.Tickets.GetByID(ctx, ticketID); err != nil {
			return mapTicketErr(err)
		}
		if _, err := st.Audits.DeleteByTicketID(ctx, ticketID); err != nil {
			return err
		}
		return st.Tickets.HardDelete(ctx, ticketID)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, ticketID)
	s.logger.Info("ticket hard-deleted", zap.Int64("ticket_id", ticketID), zap.String("by", actor.Username))
	return nil
}

// GetDetails loads the hydrated ticket read model, enforcing view
// access. Reads are fronted by the Redis cache.
func (s *TicketService) GetDetails(ctx context.Context, ticketID int64, viewer *domain.User) (*TicketDetail, error) {
	if detail := s.cache.Get(ctx, ticketID); detail != nil {
		if !s.policy.CanView(viewer, &detail.Ticket) {
			return nil, apperrors.NewForbidden("not allowed to view this ticket")
		}
		return detail, nil
	}

	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if !s.policy.CanView(viewer, ticket) {
		return nil, apperrors.NewForbidden("not allowed to view this ticket")
	}

	detail := &TicketDetail{Ticket: *ticket}
	if detail.Requester, err = s.store.Users.GetByID(ctx, ticket.RequesterID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if ticket.ManagerID != nil {
		if detail.Manager, err = s.store.Users.GetByID(ctx, *ticket.ManagerID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	if ticket.AssignedToID != nil {
		if detail.AssignedTo, err = s.store.Users.GetByID(ctx, *ticket.AssignedToID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	if detail.Comments, err = s.store.Comments.ListByTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	if detail.Attachments, err = s.store.Attachments.ListByTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	s.cache.Set(ctx, detail)
	return detail, nil
}

// List returns tickets visible to the viewer: everything for ADMIN and
// IT_SUPPORT, managed tickets for MANAGER, own tickets otherwise.
func (s *TicketService) List(ctx context.Context, viewer *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Categories: filter.Categories,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	switch viewer.Role {
	case domain.RoleAdmin, domain.RoleITSupport:
		// unrestricted
	case domain.RoleManager:
		repoFilter.ManagerID = &viewer.ID
		email := viewer.Email
		repoFilter.ManagerEmail = &email
	default:
		repoFilter.RequesterID = &viewer.ID
	}
	return s.store.Tickets.ListWithFilter(ctx, repoFilter)
}

func (s *TicketService) resolveManager(ctx context.Context, st *repository.Store, input TicketCreateInput) *domain.User {
	if input.ManagerID != nil {
		if manager, err := st.Users.GetByID(ctx, *input.ManagerID); err == nil {
			return manager
		}
	}
	if input.ManagerUsername != "" {
		if manager, err := st.Users.GetByUsername(ctx, input.ManagerUsername); err == nil {
			return manager
		}
	}
	return nil
}

func (s *TicketService) appendComment(ctx context.Context, st *repository.Store, ticketID, authorID int64, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return st.Comments.Create(ctx, &domain.Comment{
		TicketID: ticketID,
		AuthorID: authorID,
		Content:  content,
	})
}

func (s *TicketService) snapshot(ctx context.Context, st *repository.Store, t *domain.Ticket) (domain.TicketSnapshot, error) {
	requester, err := st.Users.GetByID(ctx, t.RequesterID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.TicketSnapshot{}, err
	}
	var manager, assignee *domain.User
	if t.ManagerID != nil {
		if manager, err = st.Users.GetByID(ctx, *t.ManagerID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketSnapshot{}, err
		}
	}
	if t.AssignedToID != nil {
		if assignee, err = st.Users.GetByID(ctx, *t.AssignedToID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketSnapshot{}, err
		}
	}
	count, err := st.Attachments.CountByTicket(ctx, t.ID)
	if err != nil {
		return domain.TicketSnapshot{}, err
	}
	return domain.SnapshotTicket(t, requester, manager, assignee, count), nil
}

func (s *TicketService) newEvent(eventType events.EventType, ticketID int64, payload any) events.Event {
	return events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: s.clock(),
		Payload:   payload,
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.bus == nil || event.Type == "" {
		return
	}
	_ = s.bus.Publish(ctx, event)
}

// ticketNumber formats the human identifier GSG-MMYYYY#### from the
// store-assigned id and creation date.
func ticketNumber(id int64, at time.Time) string {
	return fmt.Sprintf("GSG-%s%04d", at.Format("012006"), id)
}

func isWorkTarget(status domain.TicketStatus) bool {
	return status == domain.TicketStatusInProgress ||
		status == domain.TicketStatusResolved ||
		status == domain.TicketStatusClosed
}

func mapTicketErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", nil)
	}
	return err
}
