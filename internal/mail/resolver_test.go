package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gsg-it/it4u/internal/domain"
)

func snapshot() domain.TicketSnapshot {
	return domain.TicketSnapshot{
		ID:           7,
		TicketNumber: "GSG-0820260007",
		Title:        "laptop request",
		Requester:    domain.UserRef{Email: "alice@geosoftglobal.com", FullName: "Alice"},
		Manager:      &domain.UserRef{Email: "bob@geosoftglobal.com", FullName: "Bob"},
		ManagerEmail: "bob@geosoftglobal.com",
	}
}

func TestResolveDefaultEvent(t *testing.T) {
	r := NewRecipientResolver([]string{"it@geosoftglobal.com"}, []string{"admin@geosoftglobal.com"})

	got := r.Resolve(snapshot(), domain.EmailEventTicketCreated)
	assert.Equal(t, []string{"alice@geosoftglobal.com"}, got.To)
	assert.Equal(t, []string{"admin@geosoftglobal.com", "bob@geosoftglobal.com", "it@geosoftglobal.com"}, got.Cc)
}

func TestResolveApprovalRequestMovesManagerToTo(t *testing.T) {
	r := NewRecipientResolver([]string{"it@geosoftglobal.com"}, nil)

	got := r.Resolve(snapshot(), domain.EmailEventApprovalRequested)
	assert.Equal(t, []string{"bob@geosoftglobal.com"}, got.To)
	assert.Equal(t, []string{"alice@geosoftglobal.com", "it@geosoftglobal.com"}, got.Cc)
}

func TestResolveNoAddressAnywhere(t *testing.T) {
	r := NewRecipientResolver(nil, nil)
	snap := domain.TicketSnapshot{}

	got := r.Resolve(snap, domain.EmailEventStatusChanged)
	assert.True(t, got.Empty())
}

func TestResolveNeverDuplicatesToInCc(t *testing.T) {
	// Requester is also in the support pool.
	r := NewRecipientResolver([]string{"alice@geosoftglobal.com"}, nil)

	got := r.Resolve(snapshot(), domain.EmailEventCommentAdded)
	assert.Equal(t, []string{"alice@geosoftglobal.com"}, got.To)
	assert.NotContains(t, got.Cc, "alice@geosoftglobal.com")
}

func TestResolveManagerlessTicket(t *testing.T) {
	r := NewRecipientResolver([]string{"it@geosoftglobal.com"}, nil)
	snap := snapshot()
	snap.Manager = nil
	snap.ManagerEmail = ""

	got := r.Resolve(snap, domain.EmailEventApprovalRequested)
	// No manager to ask; only the CC pool and requester remain.
	assert.Empty(t, got.To)
	assert.Contains(t, got.Cc, "alice@geosoftglobal.com")
}
