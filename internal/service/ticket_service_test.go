package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/events"
	apperrors "github.com/gsg-it/it4u/pkg/util"
)

func TestCreateTicketApprovalGating(t *testing.T) {
	ctx := context.Background()

	t.Run("manager named requires approval", func(t *testing.T) {
		f := newFixture()
		requester := f.addUser("alice", domain.RoleEmployee)
		manager := f.addUser("bob", domain.RoleManager)

		ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:     "vpn broken",
			Category:  domain.CategoryNetwork,
			ManagerID: &manager.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPendingApproval, ticket.Status)
		assert.Equal(t, domain.ApprovalPending, ticket.ApprovalStatus)
		require.NotNil(t, ticket.ManagerID)
		assert.Equal(t, manager.ID, *ticket.ManagerID)
		assert.Equal(t, manager.Email, ticket.ManagerEmail)
	})

	t.Run("network without manager opens directly", func(t *testing.T) {
		f := newFixture()
		requester := f.addUser("alice", domain.RoleEmployee)

		ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:    "switch port down",
			Category: domain.CategoryNetwork,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
		assert.Equal(t, domain.ApprovalNA, ticket.ApprovalStatus)
	})

	t.Run("hardware without manager still gated", func(t *testing.T) {
		f := newFixture()
		requester := f.addUser("alice", domain.RoleEmployee)

		ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:    "need a new laptop",
			Category: domain.CategoryHardware,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPendingApproval, ticket.Status)
		assert.Equal(t, domain.ApprovalPending, ticket.ApprovalStatus)
	})

	t.Run("unknown manager id falls back to no manager", func(t *testing.T) {
		f := newFixture()
		requester := f.addUser("alice", domain.RoleEmployee)
		missing := int64(999)

		ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:     "wifi flaky",
			Category:  domain.CategoryNetwork,
			ManagerID: &missing,
		})
		require.NoError(t, err)
		assert.Nil(t, ticket.ManagerID)
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	})

	t.Run("unknown requester rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Create(ctx, 42, TicketCreateInput{
			Title:    "ghost",
			Category: domain.CategoryOthers,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("invalid category rejected", func(t *testing.T) {
		f := newFixture()
		requester := f.addUser("alice", domain.RoleEmployee)
		_, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:    "whatever",
			Category: domain.TicketCategory("GARDENING"),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})
}

func TestCreateTicketNumberEmbedsID(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	requester := f.addUser("alice", domain.RoleEmployee)

	first, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{Title: "a", Category: domain.CategoryNetwork})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{Title: "b", Category: domain.CategoryNetwork})
	require.NoError(t, err)

	wantPrefix := "GSG-" + time.Now().Format("012006")
	assert.Equal(t, wantPrefix+"0001", first.TicketNumber)
	assert.Equal(t, wantPrefix+"0002", second.TicketNumber)
}

func TestCreateTicketPublishesAfterCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	requester := f.addUser("alice", domain.RoleEmployee)
	manager := f.addUser("bob", domain.RoleManager)

	ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
		Title:     "printer jam",
		Category:  domain.CategoryHardware,
		ManagerID: &manager.ID,
	})
	require.NoError(t, err)

	published := f.bus.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTicketCreated, published[0].Type)
	payload, ok := published[0].Payload.(events.TicketCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, ticket.TicketNumber, payload.Ticket.TicketNumber)
	require.NotNil(t, payload.Manager)
	assert.Equal(t, manager.ID, payload.Manager.ID)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()

	setup := func(f *fixture) (*domain.User, *domain.User, *domain.Ticket) {
		requester := f.addUser("alice", domain.RoleEmployee)
		manager := f.addUser("bob", domain.RoleManager)
		ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:     "access request",
			Category:  domain.CategoryAccessAndM365,
			ManagerID: &manager.ID,
		})
		require.NoError(t, err)
		return requester, manager, ticket
	}

	t.Run("manager approves pending ticket", func(t *testing.T) {
		f := newFixture()
		_, manager, ticket := setup(f)

		updated, err := f.svc.Approve(ctx, ticket.ID, manager, "go ahead", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, updated.Status)
		assert.Equal(t, domain.ApprovalApproved, updated.ApprovalStatus)
		require.NotNil(t, updated.ApprovedAt)

		published := f.bus.published()
		require.Len(t, published, 2)
		decision, ok := published[1].Payload.(events.ManagerDecisionPayload)
		require.True(t, ok)
		assert.True(t, decision.Approved)
	})

	t.Run("unrelated manager cannot approve", func(t *testing.T) {
		f := newFixture()
		_, _, ticket := setup(f)
		other := f.addUser("carol", domain.RoleManager)

		_, err := f.svc.Approve(ctx, ticket.ID, other, "", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("manager cannot approve twice", func(t *testing.T) {
		f := newFixture()
		_, manager, ticket := setup(f)

		_, err := f.svc.Approve(ctx, ticket.ID, manager, "", nil)
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, ticket.ID, manager, "", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "STATE_CONFLICT"))
	})

	t.Run("admin forces approval from any state", func(t *testing.T) {
		f := newFixture()
		_, manager, ticket := setup(f)
		admin := f.addUser("root", domain.RoleAdmin)

		_, err := f.svc.Approve(ctx, ticket.ID, manager, "", nil)
		require.NoError(t, err)
		updated, err := f.svc.Approve(ctx, ticket.ID, admin, "forcing", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalApproved, updated.ApprovalStatus)
	})

	t.Run("approval priority override applied", func(t *testing.T) {
		f := newFixture()
		_, manager, ticket := setup(f)
		high := domain.TicketPriorityHigh

		updated, err := f.svc.Approve(ctx, ticket.ID, manager, "", &high)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	})
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	requester := f.addUser("alice", domain.RoleEmployee)
	manager := f.addUser("bob", domain.RoleManager)

	ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
		Title:     "expensive toy",
		Category:  domain.CategoryProcurement,
		ManagerID: &manager.ID,
	})
	require.NoError(t, err)

	updated, err := f.svc.Reject(ctx, ticket.ID, manager, "not in budget")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	assert.Equal(t, domain.ApprovalRejected, updated.ApprovalStatus)
	require.NotNil(t, updated.RejectedAt)
	require.NotNil(t, updated.ClosedAt)

	// Rejection is terminal; a second attempt conflicts.
	_, err = f.svc.Reject(ctx, ticket.ID, manager, "again")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STATE_CONFLICT"))
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	openTicket := func(f *fixture) *domain.Ticket {
		requester := f.addUser("alice", domain.RoleEmployee)
		ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:    "dns flaky",
			Category: domain.CategoryNetwork,
		})
		require.NoError(t, err)
		return ticket
	}

	t.Run("same status is a silent no-op for any actor", func(t *testing.T) {
		f := newFixture()
		ticket := openTicket(f)
		employee := f.addUser("eve", domain.RoleEmployee)
		before := len(f.bus.published())

		updated, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen, employee, "")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, updated.Status)
		assert.Len(t, f.bus.published(), before)
	})

	t.Run("employee cannot change status", func(t *testing.T) {
		f := newFixture()
		ticket := openTicket(f)
		employee := f.addUser("eve", domain.RoleEmployee)

		_, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, employee, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("admin transition stamps first-time timestamp once", func(t *testing.T) {
		f := newFixture()
		ticket := openTicket(f)
		admin := f.addUser("root", domain.RoleAdmin)

		first, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, admin, "")
		require.NoError(t, err)
		require.NotNil(t, first.InProgressAt)
		stamp := *first.InProgressAt

		_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusWaitingForUser, admin, "")
		require.NoError(t, err)
		again, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, admin, "")
		require.NoError(t, err)
		require.NotNil(t, again.InProgressAt)
		assert.Equal(t, stamp, *again.InProgressAt)
	})

	t.Run("support cannot resolve unassigned ticket", func(t *testing.T) {
		f := newFixture()
		ticket := openTicket(f)
		support := f.addUser("tech", domain.RoleITSupport)

		_, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, support, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("support resolves own assignment", func(t *testing.T) {
		f := newFixture()
		ticket := openTicket(f)
		support := f.addUser("tech", domain.RoleITSupport)

		_, err := f.svc.Assign(ctx, ticket.ID, support.ID, support)
		require.NoError(t, err)
		updated, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, support, "done")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, updated.Status)
		require.NotNil(t, updated.ResolvedAt)
	})

	t.Run("forced work state clears pending approval to NA", func(t *testing.T) {
		f := newFixture()
		requester := f.addUser("alice", domain.RoleEmployee)
		manager := f.addUser("bob", domain.RoleManager)
		admin := f.addUser("root", domain.RoleAdmin)

		ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
			Title:     "pending thing",
			Category:  domain.CategorySoftware,
			ManagerID: &manager.ID,
		})
		require.NoError(t, err)
		require.Equal(t, domain.ApprovalPending, ticket.ApprovalStatus)

		updated, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, admin, "skipping approval")
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalNA, updated.ApprovalStatus)
	})

	t.Run("missing ticket maps to not found", func(t *testing.T) {
		f := newFixture()
		admin := f.addUser("root", domain.RoleAdmin)
		_, err := f.svc.UpdateStatus(ctx, 404, domain.TicketStatusClosed, admin, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})
}

func TestAssignMovesOpenTicketToInProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	requester := f.addUser("alice", domain.RoleEmployee)
	support := f.addUser("tech", domain.RoleITSupport)
	admin := f.addUser("root", domain.RoleAdmin)

	ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
		Title:    "vpn down",
		Category: domain.CategoryNetwork,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)

	updated, err := f.svc.Assign(ctx, ticket.ID, support.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	require.NotNil(t, updated.AssignedToID)
	assert.Equal(t, support.ID, *updated.AssignedToID)
}

func TestAdminUpdateBlocksWorkStateWhilePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	requester := f.addUser("alice", domain.RoleEmployee)
	manager := f.addUser("bob", domain.RoleManager)
	admin := f.addUser("root", domain.RoleAdmin)

	ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
		Title:     "gated",
		Category:  domain.CategorySecurity,
		ManagerID: &manager.ID,
	})
	require.NoError(t, err)

	inProgress := domain.TicketStatusInProgress
	_, err = f.svc.AdminUpdate(ctx, ticket.ID, admin, AdminUpdateInput{Status: &inProgress})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// Non-status legs still go through.
	high := domain.TicketPriorityHigh
	updated, err := f.svc.AdminUpdate(ctx, ticket.ID, admin, AdminUpdateInput{Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	assert.Equal(t, domain.ApprovalPending, updated.ApprovalStatus)
}

func TestDeleteRemovesTicketAndAudit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	requester := f.addUser("alice", domain.RoleEmployee)
	admin := f.addUser("root", domain.RoleAdmin)

	ticket, err := f.svc.Create(ctx, requester.ID, TicketCreateInput{
		Title:    "to be purged",
		Category: domain.CategoryNetwork,
	})
	require.NoError(t, err)

	_ = f.audits.Create(ctx, &domain.EmailAudit{TicketID: &ticket.ID, Status: domain.AuditStatusSent})

	employee := f.addUser("eve", domain.RoleEmployee)
	require.Error(t, f.svc.Delete(ctx, ticket.ID, employee))

	require.NoError(t, f.svc.Delete(ctx, ticket.ID, admin))
	_, err = f.tickets.GetByID(ctx, ticket.ID)
	require.Error(t, err)
	rows, err := f.audits.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListScopedByRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice := f.addUser("alice", domain.RoleEmployee)
	eve := f.addUser("eve", domain.RoleEmployee)
	manager := f.addUser("bob", domain.RoleManager)
	admin := f.addUser("root", domain.RoleAdmin)

	_, err := f.svc.Create(ctx, alice.ID, TicketCreateInput{Title: "a", Category: domain.CategoryNetwork})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, eve.ID, TicketCreateInput{Title: "b", Category: domain.CategoryHardware, ManagerID: &manager.ID})
	require.NoError(t, err)

	own, err := f.svc.List(ctx, alice, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, alice.ID, own[0].RequesterID)

	managed, err := f.svc.List(ctx, manager, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, managed, 1)
	require.NotNil(t, managed[0].ManagerID)
	assert.Equal(t, manager.ID, *managed[0].ManagerID)

	all, err := f.svc.List(ctx, admin, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
