package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gsg-it/it4u/internal/domain"
)

// AttachmentRepository persists ticket attachment records. Files
// themselves live behind the blob store.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id int64) (*domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
	CountByTicket(ctx context.Context, ticketID int64) (int, error)
	SoftDelete(ctx context.Context, id, deletedBy int64, at time.Time) error
}

type attachmentRepository struct {
	db DB
}

// NewAttachmentRepository instantiates the repository.
func NewAttachmentRepository(db DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

const attachmentColumns = `id, ticket_id, file_name, storage_key, content_type, size_bytes,
        uploaded_by_id, uploaded_at, deleted_at, deleted_by_id`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, file_name, storage_key, content_type, size_bytes, uploaded_by_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, uploaded_at`
	return r.db.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.FileName,
		attachment.StorageKey,
		attachment.ContentType,
		attachment.SizeBytes,
		attachment.UploadedByID,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM ticket_attachments WHERE id=$1 AND deleted_at IS NULL`
	var att domain.Attachment
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&att.ID,
		&att.TicketID,
		&att.FileName,
		&att.StorageKey,
		&att.ContentType,
		&att.SizeBytes,
		&att.UploadedByID,
		&att.UploadedAt,
		&att.DeletedAt,
		&att.DeletedByID,
	); err != nil {
		return nil, err
	}
	return &att, nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM ticket_attachments
        WHERE ticket_id=$1 AND deleted_at IS NULL ORDER BY uploaded_at`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.TicketID,
			&att.FileName,
			&att.StorageKey,
			&att.ContentType,
			&att.SizeBytes,
			&att.UploadedByID,
			&att.UploadedAt,
			&att.DeletedAt,
			&att.DeletedByID,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}

func (r *attachmentRepository) CountByTicket(ctx context.Context, ticketID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ticket_attachments WHERE ticket_id=$1 AND deleted_at IS NULL`,
		ticketID,
	).Scan(&count)
	return count, err
}

func (r *attachmentRepository) SoftDelete(ctx context.Context, id, deletedBy int64, at time.Time) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE ticket_attachments SET deleted_at=$1, deleted_by_id=$2 WHERE id=$3 AND deleted_at IS NULL`,
		at, deletedBy, id,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
