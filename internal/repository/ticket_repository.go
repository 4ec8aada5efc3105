package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gsg-it/it4u/internal/domain"
)

// TicketFilter captures role-scoped list parameters. Soft-deleted
// tickets are always excluded.
type TicketFilter struct {
	RequesterID  *int64
	ManagerID    *int64
	ManagerEmail *string
	AssignedToID *int64
	Statuses     []domain.TicketStatus
	Categories   []domain.TicketCategory
	SearchTerm   *string
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	SetThreadMessageID(ctx context.Context, ticketID int64, messageID string) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	HardDelete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, ticket_number, title, description, category, request_type, status,
        approval_status, priority, requester_id, manager_id, manager_email, assigned_to_id,
        updated_by_id, device_info, software_info, domain_info, email_thread_message_id,
        created_at, updated_at, approved_at, rejected_at, in_progress_at, resolved_at,
        closed_at, deleted_at, deleted_by_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category, request_type, status, approval_status,
            priority, requester_id, manager_id, manager_email, assigned_to_id, updated_by_id,
            device_info, software_info, domain_info)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.RequestType,
		ticket.Status,
		ticket.ApprovalStatus,
		ticket.Priority,
		ticket.RequesterID,
		ticket.ManagerID,
		ticket.ManagerEmail,
		ticket.AssignedToID,
		ticket.UpdatedByID,
		ticket.DeviceInfo,
		ticket.SoftwareInfo,
		ticket.DomainInfo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET ticket_number=$1, title=$2, description=$3, category=$4,
            request_type=$5, status=$6, approval_status=$7, priority=$8, manager_id=$9,
            manager_email=$10, assigned_to_id=$11, updated_by_id=$12, device_info=$13,
            software_info=$14, domain_info=$15, email_thread_message_id=$16, updated_at=$17,
            approved_at=$18, rejected_at=$19, in_progress_at=$20, resolved_at=$21, closed_at=$22,
            deleted_at=$23, deleted_by_id=$24
        WHERE id=$25`
	cmd, err := r.db.Exec(ctx, query,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.RequestType,
		ticket.Status,
		ticket.ApprovalStatus,
		ticket.Priority,
		ticket.ManagerID,
		ticket.ManagerEmail,
		ticket.AssignedToID,
		ticket.UpdatedByID,
		ticket.DeviceInfo,
		ticket.SoftwareInfo,
		ticket.DomainInfo,
		ticket.EmailThreadMessageID,
		ticket.UpdatedAt,
		ticket.ApprovedAt,
		ticket.RejectedAt,
		ticket.InProgressAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.DeletedAt,
		ticket.DeletedByID,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetThreadMessageID persists the root Message-ID without touching the
// rest of the row; the dispatcher calls this from a background worker.
func (r *ticketRepository) SetThreadMessageID(ctx context.Context, ticketID int64, messageID string) error {
	const query = `
        UPDATE tickets SET email_thread_message_id=$1
        WHERE id=$2 AND email_thread_message_id=''`
	_, err := r.db.Exec(ctx, query, messageID, ticketID)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 AND deleted_at IS NULL`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.ManagerID != nil || filter.ManagerEmail != nil {
		// Manager scope matches by id or by flattened email.
		sub := []string{}
		if filter.ManagerID != nil {
			args = append(args, *filter.ManagerID)
			sub = append(sub, fmt.Sprintf("manager_id=$%d", len(args)))
		}
		if filter.ManagerEmail != nil {
			args = append(args, strings.ToLower(*filter.ManagerEmail))
			sub = append(sub, fmt.Sprintf("LOWER(manager_email)=$%d", len(args)))
		}
		clauses = append(clauses, "("+strings.Join(sub, " OR ")+")")
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) HardDelete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.RequestType,
		&ticket.Status,
		&ticket.ApprovalStatus,
		&ticket.Priority,
		&ticket.RequesterID,
		&ticket.ManagerID,
		&ticket.ManagerEmail,
		&ticket.AssignedToID,
		&ticket.UpdatedByID,
		&ticket.DeviceInfo,
		&ticket.SoftwareInfo,
		&ticket.DomainInfo,
		&ticket.EmailThreadMessageID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ApprovedAt,
		&ticket.RejectedAt,
		&ticket.InProgressAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.DeletedAt,
		&ticket.DeletedByID,
	)
}
