package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/gsg-it/it4u/internal/api/dto"
	"github.com/gsg-it/it4u/internal/auth"
	"github.com/gsg-it/it4u/internal/service"
	apperrors "github.com/gsg-it/it4u/pkg/util"
)

// AttachmentsHandler exposes attachment upload and download.
type AttachmentsHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(attachments *service.AttachmentService) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachments}
}

// Upload POST /tickets/:id/attachments. Expects multipart form with a
// "file" part.
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("multipart file field required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer file.Close()

	attachment, err := h.attachments.Upload(c.UserContext(), id, user,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// Download GET /attachments/:attachmentID.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	attachmentID, err := strconv.ParseInt(c.Params("attachmentID"), 10, 64)
	if err != nil || attachmentID <= 0 {
		return apperrors.NewValidationError("invalid attachment id", nil)
	}

	attachment, rc, err := h.attachments.Open(c.UserContext(), attachmentID, user)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, attachment.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+attachment.FileName+`"`)
	return c.SendStream(rc, int(attachment.SizeBytes))
}

// Delete DELETE /attachments/:attachmentID.
func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	attachmentID, err := strconv.ParseInt(c.Params("attachmentID"), 10, 64)
	if err != nil || attachmentID <= 0 {
		return apperrors.NewValidationError("invalid attachment id", nil)
	}
	if err := h.attachments.Delete(c.UserContext(), attachmentID, user); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
