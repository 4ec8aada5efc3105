package dto

import (
	"time"

	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        domain.TicketCategory `json:"category"`
	RequestType     string                `json:"request_type"`
	ManagerID       *int64                `json:"manager_id"`
	ManagerUsername string                `json:"manager_username"`
	DeviceInfo      string                `json:"device_info"`
	SoftwareInfo    string                `json:"software_info"`
	DomainInfo      string                `json:"domain_info"`
}

// DecisionRequest payload for approve and reject.
type DecisionRequest struct {
	Comment  string                 `json:"comment"`
	Priority *domain.TicketPriority `json:"priority,omitempty"`
}

// StatusUpdateRequest payload.
type StatusUpdateRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
}

// CommentRequest payload.
type CommentRequest struct {
	Content string `json:"content"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

// AdminUpdateRequest is the composite admin mutation payload.
type AdminUpdateRequest struct {
	Category     *domain.TicketCategory `json:"category,omitempty"`
	Priority     *domain.TicketPriority `json:"priority,omitempty"`
	AssignedToID *int64                 `json:"assigned_to_id,omitempty"`
	Status       *domain.TicketStatus   `json:"status,omitempty"`
	Comment      string                 `json:"comment"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             int64                 `json:"id"`
	TicketNumber   string                `json:"ticket_number"`
	Title          string                `json:"title"`
	Category       domain.TicketCategory `json:"category"`
	Status         domain.TicketStatus   `json:"status"`
	ApprovalStatus domain.ApprovalStatus `json:"approval_status"`
	Priority       domain.TicketPriority `json:"priority"`
	RequesterID    int64                 `json:"requester_id"`
	AssignedToID   *int64                `json:"assigned_to_id"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description  string               `json:"description"`
	RequestType  string               `json:"request_type"`
	ManagerID    *int64               `json:"manager_id"`
	ManagerEmail string               `json:"manager_email,omitempty"`
	DeviceInfo   string               `json:"device_info,omitempty"`
	SoftwareInfo string               `json:"software_info,omitempty"`
	DomainInfo   string               `json:"domain_info,omitempty"`
	Requester    *UserSummary         `json:"requester,omitempty"`
	Manager      *UserSummary         `json:"manager,omitempty"`
	AssignedTo   *UserSummary         `json:"assigned_to,omitempty"`
	Comments     []CommentResponse    `json:"comments"`
	Attachments  []AttachmentResponse `json:"attachments"`
	ApprovedAt   *time.Time           `json:"approved_at,omitempty"`
	RejectedAt   *time.Time           `json:"rejected_at,omitempty"`
	InProgressAt *time.Time           `json:"in_progress_at,omitempty"`
	ResolvedAt   *time.Time           `json:"resolved_at,omitempty"`
	ClosedAt     *time.Time           `json:"closed_at,omitempty"`
}

// CommentResponse represents one comment.
type CommentResponse struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// NewTicketSummary maps a domain ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:             t.ID,
		TicketNumber:   t.TicketNumber,
		Title:          t.Title,
		Category:       t.Category,
		Status:         t.Status,
		ApprovalStatus: t.ApprovalStatus,
		Priority:       t.Priority,
		RequesterID:    t.RequesterID,
		AssignedToID:   t.AssignedToID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// NewTicketDetail maps the hydrated read model.
func NewTicketDetail(d *service.TicketDetail) TicketDetailResponse {
	t := d.Ticket
	resp := TicketDetailResponse{
		TicketSummary: NewTicketSummary(&t),
		Description:   t.Description,
		RequestType:   t.RequestType,
		ManagerID:     t.ManagerID,
		ManagerEmail:  t.ManagerEmail,
		DeviceInfo:    t.DeviceInfo,
		SoftwareInfo:  t.SoftwareInfo,
		DomainInfo:    t.DomainInfo,
		Requester:     NewUserSummary(d.Requester),
		Manager:       NewUserSummary(d.Manager),
		AssignedTo:    NewUserSummary(d.AssignedTo),
		Comments:      make([]CommentResponse, 0, len(d.Comments)),
		Attachments:   make([]AttachmentResponse, 0, len(d.Attachments)),
		ApprovedAt:    t.ApprovedAt,
		RejectedAt:    t.RejectedAt,
		InProgressAt:  t.InProgressAt,
		ResolvedAt:    t.ResolvedAt,
		ClosedAt:      t.ClosedAt,
	}
	for _, c := range d.Comments {
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:        c.ID,
			AuthorID:  c.AuthorID,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	for _, a := range d.Attachments {
		resp.Attachments = append(resp.Attachments, NewAttachmentResponse(&a))
	}
	return resp
}

// NewAttachmentResponse maps attachment metadata.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		UploadedAt:  a.UploadedAt,
	}
}
