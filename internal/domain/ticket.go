package domain

import (
	"strconv"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "OPEN"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusResolved        TicketStatus = "RESOLVED"
	TicketStatusClosed          TicketStatus = "CLOSED"
	TicketStatusWaitingForUser  TicketStatus = "WAITING_FOR_USER"
	TicketStatusPendingApproval TicketStatus = "PENDING_MANAGER_APPROVAL"
)

// ApprovalStatus tracks the manager-approval gate.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalNA       ApprovalStatus = "NA"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityUnassigned TicketPriority = "UNASSIGNED"
	TicketPriorityLow        TicketPriority = "LOW"
	TicketPriorityMedium     TicketPriority = "MEDIUM"
	TicketPriorityHigh       TicketPriority = "HIGH"
	TicketPriorityCritical   TicketPriority = "CRITICAL"
)

// TicketCategory is the closed set of request categories.
type TicketCategory string

const (
	CategoryHardware       TicketCategory = "HARDWARE"
	CategorySoftware       TicketCategory = "SOFTWARE"
	CategoryNetwork        TicketCategory = "NETWORK"
	CategoryAccessAndM365  TicketCategory = "ACCESS_AND_M365"
	CategoryAccount        TicketCategory = "ACCOUNT"
	CategoryEngineeringApp TicketCategory = "ENGINEERING_APP"
	CategoryProcurement    TicketCategory = "PROCUREMENT"
	CategorySecurity       TicketCategory = "SECURITY"
	CategoryOthers         TicketCategory = "OTHERS"
)

var validCategories = map[TicketCategory]struct{}{
	CategoryHardware:       {},
	CategorySoftware:       {},
	CategoryNetwork:        {},
	CategoryAccessAndM365:  {},
	CategoryAccount:        {},
	CategoryEngineeringApp: {},
	CategoryProcurement:    {},
	CategorySecurity:       {},
	CategoryOthers:         {},
}

// IsValid reports whether the category is a known member of the set.
func (c TicketCategory) IsValid() bool {
	_, ok := validCategories[c]
	return ok
}

// RequiresApproval reports whether tickets in this category are gated
// through manager approval even when no manager was named. NETWORK is
// the only default-exempt category.
func (c TicketCategory) RequiresApproval() bool {
	switch c {
	case CategoryHardware, CategoryProcurement, CategoryAccessAndM365,
		CategoryAccount, CategoryEngineeringApp, CategorySecurity,
		CategoryOthers, CategorySoftware:
		return true
	default:
		return false
	}
}

// RequestTypeChangeRequest marks tickets whose notifications carry the
// [Change Request] subject prefix.
const RequestTypeChangeRequest = "CHANGE_REQUEST"

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             int64
	TicketNumber   string
	Title          string
	Description    string
	Category       TicketCategory
	RequestType    string
	Status         TicketStatus
	ApprovalStatus ApprovalStatus
	Priority       TicketPriority

	RequesterID  int64
	ManagerID    *int64
	ManagerEmail string
	AssignedToID *int64
	UpdatedByID  *int64

	DeviceInfo   string
	SoftwareInfo string
	DomainInfo   string

	EmailThreadMessageID string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	ApprovedAt   *time.Time
	RejectedAt   *time.Time
	InProgressAt *time.Time
	ResolvedAt   *time.Time
	ClosedAt     *time.Time

	DeletedAt   *time.Time
	DeletedByID *int64
}

// IsWorkState reports whether the status is one a ticket reaches once
// support work is (or could be) underway. A ticket in a work state must
// never keep a PENDING approval.
func (s TicketStatus) IsWorkState() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	default:
		return false
	}
}

// UserRef is a flattened reference to a user carried inside snapshots.
type UserRef struct {
	ID       int64
	Username string
	FullName string
	Email    string
	Role     Role
}

// RefOf builds a UserRef from a user, or nil for nil input.
func RefOf(u *User) *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// TicketSnapshot is an immutable, fully materialized copy of ticket
// state handed to event consumers. Consumers never see live entities.
type TicketSnapshot struct {
	ID              int64
	TicketNumber    string
	Title           string
	Description     string
	Category        TicketCategory
	RequestType     string
	Status          TicketStatus
	ApprovalStatus  ApprovalStatus
	Priority        TicketPriority
	Requester       UserRef
	Manager         *UserRef
	AssignedTo      *UserRef
	ManagerEmail    string
	AttachmentCount int
	CreatedAt       time.Time
}

// SnapshotTicket materializes a snapshot from the ticket and its
// already-loaded relations.
func SnapshotTicket(t *Ticket, requester, manager, assignee *User, attachmentCount int) TicketSnapshot {
	snap := TicketSnapshot{
		ID:              t.ID,
		TicketNumber:    t.TicketNumber,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		RequestType:     t.RequestType,
		Status:          t.Status,
		ApprovalStatus:  t.ApprovalStatus,
		Priority:        t.Priority,
		ManagerEmail:    t.ManagerEmail,
		AttachmentCount: attachmentCount,
		CreatedAt:       t.CreatedAt,
	}
	if requester != nil {
		snap.Requester = *RefOf(requester)
	}
	snap.Manager = RefOf(manager)
	snap.AssignedTo = RefOf(assignee)
	return snap
}

// DisplayNumber returns the human ticket number, falling back to the
// numeric id for tickets not yet numbered.
func (s TicketSnapshot) DisplayNumber() string {
	if s.TicketNumber != "" {
		return s.TicketNumber
	}
	return strconv.FormatInt(s.ID, 10)
}
