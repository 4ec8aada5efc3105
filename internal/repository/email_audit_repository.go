package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/gsg-it/it4u/internal/domain"
)

// EmailAuditRepository stores one immutable row per notification
// attempt. Rows are never updated; DeleteByTicketID exists only for the
// admin hard-delete path, where the loose ticket_id reference has no
// database-level cascade.
type EmailAuditRepository interface {
	Create(ctx context.Context, audit *domain.EmailAudit) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.EmailAudit, error)
	ListRecent(ctx context.Context, limit int) ([]domain.EmailAudit, error)
	DeleteByTicketID(ctx context.Context, ticketID int64) (int64, error)
}

type emailAuditRepository struct {
	db DB
}

// NewEmailAuditRepository instantiates the repository.
func NewEmailAuditRepository(db DB) EmailAuditRepository {
	return &emailAuditRepository{db: db}
}

const auditColumns = `id, ticket_id, event_type, to_email, cc_email, subject, status,
        error_message, sent_at, created_at`

func (r *emailAuditRepository) Create(ctx context.Context, audit *domain.EmailAudit) error {
	const query = `
        INSERT INTO email_audit (ticket_id, event_type, to_email, cc_email, subject, status, error_message, sent_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		audit.TicketID,
		audit.EventType,
		audit.ToEmail,
		audit.CcEmail,
		audit.Subject,
		audit.Status,
		audit.ErrorMessage,
		audit.SentAt,
	).Scan(&audit.ID, &audit.CreatedAt)
}

func (r *emailAuditRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.EmailAudit, error) {
	const query = `SELECT ` + auditColumns + ` FROM email_audit WHERE ticket_id=$1 ORDER BY sent_at DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAudits(rows)
}

func (r *emailAuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.EmailAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + auditColumns + ` FROM email_audit ORDER BY sent_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAudits(rows)
}

func (r *emailAuditRepository) DeleteByTicketID(ctx context.Context, ticketID int64) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM email_audit WHERE ticket_id=$1`, ticketID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanAudits(rows pgx.Rows) ([]domain.EmailAudit, error) {
	var result []domain.EmailAudit
	for rows.Next() {
		var audit domain.EmailAudit
		if err := rows.Scan(
			&audit.ID,
			&audit.TicketID,
			&audit.EventType,
			&audit.ToEmail,
			&audit.CcEmail,
			&audit.Subject,
			&audit.Status,
			&audit.ErrorMessage,
			&audit.SentAt,
			&audit.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, audit)
	}
	return result, rows.Err()
}
