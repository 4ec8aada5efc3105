package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsg-it/it4u/internal/domain"
)

func testClock() time.Time {
	return time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
}

func TestBuildSubject(t *testing.T) {
	c := NewComposer("[IT4U]", "http://it4u.local", testClock)
	snap := snapshot()
	snap.Status = domain.TicketStatusInProgress

	tests := []struct {
		name  string
		event domain.EmailEventType
		want  string
	}{
		{"created", domain.EmailEventTicketCreated, "[IT4U] New Ticket Created | GSG-0820260007 | laptop request"},
		{"approval", domain.EmailEventApprovalRequested, "[IT4U] Approval Required | GSG-0820260007 | laptop request"},
		{"approved", domain.EmailEventManagerApproved, "[IT4U] Manager Approved | GSG-0820260007 | laptop request"},
		{"rejected", domain.EmailEventManagerRejected, "[IT4U] Manager Rejected | GSG-0820260007 | laptop request"},
		{"status in progress", domain.EmailEventStatusChanged, "[IT4U] In-Process | GSG-0820260007 | laptop request"},
		{"comment", domain.EmailEventCommentAdded, "[IT4U] Comment Added | GSG-0820260007 | laptop request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := c.Build(snap, tt.event, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, content.Subject)
		})
	}
}

func TestBuildSubjectChangeRequestPrefix(t *testing.T) {
	c := NewComposer("[IT4U]", "http://it4u.local", testClock)
	snap := snapshot()
	snap.RequestType = domain.RequestTypeChangeRequest

	content, err := c.Build(snap, domain.EmailEventTicketCreated, "", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content.Subject, "[Change Request] [IT4U] "), content.Subject)
}

func TestBuildSubjectStatusFallbackLabel(t *testing.T) {
	c := NewComposer("[IT4U]", "http://it4u.local", testClock)
	snap := snapshot()
	snap.Status = domain.TicketStatusWaitingForUser

	content, err := c.Build(snap, domain.EmailEventStatusChanged, "", "")
	require.NoError(t, err)
	assert.Contains(t, content.Subject, "Status Updated")
}

func TestBuildBodyContainsTicketFacts(t *testing.T) {
	c := NewComposer("[IT4U]", "http://it4u.local/", testClock)
	snap := snapshot()
	snap.Status = domain.TicketStatusOpen
	snap.Priority = domain.TicketPriorityHigh
	snap.Category = domain.CategoryHardware
	snap.Description = "battery swollen"

	content, err := c.Build(snap, domain.EmailEventCommentAdded, "replacement ordered", "Tech Tina")
	require.NoError(t, err)
	assert.Contains(t, content.Body, "GSG-0820260007")
	assert.Contains(t, content.Body, "battery swollen")
	assert.Contains(t, content.Body, "replacement ordered")
	assert.Contains(t, content.Body, "Tech Tina")
	assert.Contains(t, content.Body, "http://it4u.local/app/tickets/7")
}

func TestBuildUnnumberedTicketFallsBackToID(t *testing.T) {
	c := NewComposer("[IT4U]", "http://it4u.local", testClock)
	snap := snapshot()
	snap.TicketNumber = ""

	content, err := c.Build(snap, domain.EmailEventTicketCreated, "", "")
	require.NoError(t, err)
	assert.Contains(t, content.Subject, "| 7 |")
}
