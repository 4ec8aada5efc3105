package mail

import (
	"sort"
	"strings"

	"github.com/gsg-it/it4u/internal/domain"
)

// Recipients is the resolved To/Cc address pair for one notification.
// Both slices are deduplicated and sorted.
type Recipients struct {
	To []string
	Cc []string
}

// Empty reports whether no recipient could be resolved at all; the
// dispatcher treats this as "nothing to send", not an error.
func (r Recipients) Empty() bool {
	return len(r.To) == 0 && len(r.Cc) == 0
}

// RecipientResolver computes To/Cc sets for a ticket notification. It
// is a pure function over the snapshot and static CC configuration.
type RecipientResolver struct {
	supportCc []string
	adminCc   []string
}

// NewRecipientResolver builds a resolver with static CC pools.
func NewRecipientResolver(supportCc, adminCc []string) *RecipientResolver {
	return &RecipientResolver{supportCc: supportCc, adminCc: adminCc}
}

// Resolve computes recipients for the given event. The support and
// admin pools are always CCed, plus the ticket's manager; the primary
// recipient depends on the event, with the approval request the one
// case where the manager moves from Cc to To.
func (r *RecipientResolver) Resolve(ticket domain.TicketSnapshot, event domain.EmailEventType) Recipients {
	to := map[string]struct{}{}
	cc := map[string]struct{}{}

	for _, addr := range r.supportCc {
		addAddr(cc, addr)
	}
	for _, addr := range r.adminCc {
		addAddr(cc, addr)
	}
	managerEmail := ticket.ManagerEmail
	if ticket.Manager != nil && ticket.Manager.Email != "" {
		managerEmail = ticket.Manager.Email
	}
	addAddr(cc, managerEmail)

	switch event {
	case domain.EmailEventApprovalRequested:
		addAddr(to, managerEmail)
		delete(cc, strings.TrimSpace(managerEmail))
		addAddr(cc, ticket.Requester.Email)
	default:
		// Created, status changed, comment added, manager decisions:
		// the requester is the primary recipient.
		addAddr(to, ticket.Requester.Email)
	}

	// An address never appears in both To and Cc.
	for addr := range to {
		delete(cc, addr)
	}

	return Recipients{To: sortedAddrs(to), Cc: sortedAddrs(cc)}
}

func addAddr(set map[string]struct{}, addr string) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	set[addr] = struct{}{}
}

func sortedAddrs(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
