package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/repository"
	apperrors "github.com/gsg-it/it4u/pkg/util"
)

// MaxAttachmentSize caps a single uploaded file.
const MaxAttachmentSize = 10 << 20

// BlobStore abstracts attachment byte storage. The disk implementation
// lives in persistence; the interface keeps services testable without
// touching the filesystem.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// AttachmentService manages ticket file attachments. Bytes live in the
// blob store, metadata in Postgres; deletes are soft so the audit of
// who attached what survives.
type AttachmentService struct {
	store  *repository.Store
	blobs  BlobStore
	policy AccessPolicy
	cache  *TicketCache
	logger *zap.Logger
	clock  func() time.Time
}

// NewAttachmentService constructs the service.
func NewAttachmentService(store *repository.Store, blobs BlobStore, cache *TicketCache, logger *zap.Logger, clock func() time.Time) *AttachmentService {
	if clock == nil {
		clock = time.Now
	}
	return &AttachmentService{
		store:  store,
		blobs:  blobs,
		cache:  cache,
		logger: logger,
		clock:  clock,
	}
}

// Upload stores the file bytes and records the attachment. The declared
// size is advisory; the blob store reports the bytes actually written
// and that count is persisted.
func (s *AttachmentService) Upload(ctx context.Context, ticketID int64, actor *domain.User, fileName, contentType string, declaredSize int64, r io.Reader) (*domain.Attachment, error) {
	if s.blobs == nil {
		return nil, apperrors.NewValidationError("attachment storage is not configured", nil)
	}
	fileName = sanitizeFileName(fileName)
	if fileName == "" {
		return nil, apperrors.NewValidationError("file name required", nil)
	}
	if declaredSize > MaxAttachmentSize {
		return nil, apperrors.NewValidationError("file exceeds the 10 MiB attachment limit", map[string]any{"size": declaredSize})
	}

	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if !s.policy.CanUpload(actor, ticket) {
		return nil, apperrors.NewForbidden("not allowed to attach files to this ticket")
	}

	key := storageKey(ticketID, fileName)
	written, err := s.blobs.Save(ctx, key, io.LimitReader(r, MaxAttachmentSize+1))
	if err != nil {
		return nil, err
	}
	if written > MaxAttachmentSize {
		_ = s.blobs.Delete(ctx, key)
		return nil, apperrors.NewValidationError("file exceeds the 10 MiB attachment limit", nil)
	}

	attachment := &domain.Attachment{
		TicketID:     ticketID,
		FileName:     fileName,
		StorageKey:   key,
		ContentType:  contentType,
		SizeBytes:    written,
		UploadedByID: actor.ID,
	}
	if err := s.store.Attachments.Create(ctx, attachment); err != nil {
		// Orphaned blobs are cheaper than lost metadata; clean up best effort.
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}

	s.cache.Invalidate(ctx, ticketID)
	s.logger.Info("attachment uploaded",
		zap.Int64("ticket_id", ticketID),
		zap.String("file", fileName),
		zap.Int64("bytes", written))
	return attachment, nil
}

// Open streams the attachment bytes for download, gated by ticket view
// access.
func (s *AttachmentService) Open(ctx context.Context, attachmentID int64, viewer *domain.User) (*domain.Attachment, io.ReadCloser, error) {
	attachment, err := s.store.Attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("attachment", nil)
		}
		return nil, nil, err
	}
	ticket, err := s.store.Tickets.GetByID(ctx, attachment.TicketID)
	if err != nil {
		return nil, nil, mapTicketErr(err)
	}
	if !s.policy.CanView(viewer, ticket) {
		return nil, nil, apperrors.NewForbidden("not allowed to view this ticket")
	}

	rc, err := s.blobs.Open(ctx, attachment.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return attachment, rc, nil
}

// Delete soft-deletes the record. The blob is kept so an accidental
// delete can be reversed by support; reclamation is an offline concern.
func (s *AttachmentService) Delete(ctx context.Context, attachmentID int64, actor *domain.User) error {
	attachment, err := s.store.Attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("attachment", nil)
		}
		return err
	}
	if !s.policy.CanDeleteAttachment(actor, attachment) {
		return apperrors.NewForbidden("not allowed to delete this attachment")
	}

	if err := s.store.Attachments.SoftDelete(ctx, attachmentID, actor.ID, s.clock()); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, attachment.TicketID)
	return nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

func storageKey(ticketID int64, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return filepath.ToSlash(filepath.Join(
		"tickets",
		strconv.FormatInt(ticketID, 10),
		uuid.NewString()+ext,
	))
}
