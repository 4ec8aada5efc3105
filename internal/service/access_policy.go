package service

import (
	"strings"

	"github.com/gsg-it/it4u/internal/domain"
)

// AccessPolicy is the single source of truth for "can role R perform
// action A on ticket T". Pure predicates, no side effects; every
// transition and handler consults this rather than re-deriving rules.
type AccessPolicy struct{}

// CanView reports whether the user may read the ticket. ADMIN and
// IT_SUPPORT see everything; a MANAGER sees tickets they manage (by id
// or by case-insensitive email match); everyone sees their own tickets.
func (AccessPolicy) CanView(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	if user.Role == domain.RoleAdmin || user.Role == domain.RoleITSupport {
		return true
	}
	if user.Role == domain.RoleManager && isTicketManager(user, ticket) {
		return true
	}
	return ticket.RequesterID == user.ID
}

// CanUpload reports whether the user may attach files. Any IT_SUPPORT
// agent may upload, not only the assignee.
func (AccessPolicy) CanUpload(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	switch user.Role {
	case domain.RoleAdmin, domain.RoleITSupport:
		return true
	case domain.RoleManager:
		if isTicketManager(user, ticket) {
			return true
		}
	}
	return ticket.RequesterID == user.ID
}

// CanDeleteAttachment restricts deletion to ADMIN and the original
// uploader.
func (AccessPolicy) CanDeleteAttachment(user *domain.User, attachment *domain.Attachment) bool {
	if user == nil || attachment == nil {
		return false
	}
	if user.Role == domain.RoleAdmin {
		return true
	}
	return attachment.UploadedByID == user.ID
}

func isTicketManager(user *domain.User, ticket *domain.Ticket) bool {
	if ticket.ManagerID != nil && *ticket.ManagerID == user.ID {
		return true
	}
	return ticket.ManagerEmail != "" && strings.EqualFold(ticket.ManagerEmail, user.Email)
}
