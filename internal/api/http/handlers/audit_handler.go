package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gsg-it/it4u/internal/api/dto"
	"github.com/gsg-it/it4u/internal/auth"
	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/service"
	apperrors "github.com/gsg-it/it4u/pkg/util"
)

// AuditHandler exposes the email audit trail.
type AuditHandler struct {
	audits *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(audits *service.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// ListForTicket GET /tickets/:id/email-audit.
func (h *AuditHandler) ListForTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	rows, err := h.audits.ListForTicket(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(rows)})
}

// ListRecent GET /email-audit.
func (h *AuditHandler) ListRecent(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	rows, err := h.audits.ListRecent(c.UserContext(), user, c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(rows)})
}

func auditResponses(rows []domain.EmailAudit) []dto.EmailAuditResponse {
	items := make([]dto.EmailAuditResponse, 0, len(rows))
	for i := range rows {
		items = append(items, dto.NewEmailAuditResponse(&rows[i]))
	}
	return items
}
