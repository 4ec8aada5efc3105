package service

import (
	"context"

	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/repository"
	apperrors "github.com/gsg-it/it4u/pkg/util"
)

// AuditService exposes the email audit trail for operators.
type AuditService struct {
	audits repository.EmailAuditRepository
}

// NewAuditService constructs the service.
func NewAuditService(audits repository.EmailAuditRepository) *AuditService {
	return &AuditService{audits: audits}
}

// ListForTicket returns all delivery attempts for a ticket, newest
// first. Restricted to ADMIN and IT_SUPPORT.
func (s *AuditService) ListForTicket(ctx context.Context, viewer *domain.User, ticketID int64) ([]domain.EmailAudit, error) {
	if !viewer.Role.IsOverride() {
		return nil, apperrors.NewForbidden("not allowed to view email audit")
	}
	return s.audits.ListByTicket(ctx, ticketID)
}

// ListRecent returns the most recent delivery attempts across all
// tickets. Restricted to ADMIN.
func (s *AuditService) ListRecent(ctx context.Context, viewer *domain.User, limit int) ([]domain.EmailAudit, error) {
	if viewer.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.audits.ListRecent(ctx, limit)
}
