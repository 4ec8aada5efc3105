package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gsg-it/it4u/internal/domain"
	apperrors "github.com/gsg-it/it4u/pkg/util"
)

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore { return &memBlobStore{blobs: map[string][]byte{}} }

func (s *memBlobStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return int64(len(data)), nil
}

func (s *memBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func attachmentFixture(t *testing.T) (*fixture, *AttachmentService, *memBlobStore, *domain.User, *domain.Ticket) {
	t.Helper()
	f := newFixture()
	blobs := newMemBlobStore()
	svc := NewAttachmentService(f.store, blobs, nil, zap.NewNop(), nil)

	requester := f.addUser("alice", domain.RoleEmployee)
	ticket, err := f.svc.Create(context.Background(), requester.ID, TicketCreateInput{
		Title:    "screenshot attached",
		Category: domain.CategoryNetwork,
	})
	require.NoError(t, err)
	return f, svc, blobs, requester, ticket
}

func TestUploadAndDownload(t *testing.T) {
	_, svc, blobs, requester, ticket := attachmentFixture(t)
	ctx := context.Background()

	attachment, err := svc.Upload(ctx, ticket.ID, requester, "error.png", "image/png", 4, strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "error.png", attachment.FileName)
	assert.Equal(t, int64(4), attachment.SizeBytes)
	assert.NotEmpty(t, attachment.StorageKey)
	assert.Len(t, blobs.blobs, 1)

	got, rc, err := svc.Open(ctx, attachment.ID, requester)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
	assert.Equal(t, attachment.ID, got.ID)
}

func TestUploadForbiddenForStranger(t *testing.T) {
	f, svc, _, _, ticket := attachmentFixture(t)
	stranger := f.addUser("mallory", domain.RoleEmployee)

	_, err := svc.Upload(context.Background(), ticket.ID, stranger, "x.txt", "text/plain", 1, strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestUploadRejectsOversizedDeclaration(t *testing.T) {
	_, svc, _, requester, ticket := attachmentFixture(t)

	_, err := svc.Upload(context.Background(), ticket.ID, requester, "big.iso", "application/octet-stream",
		MaxAttachmentSize+1, strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestUploadSanitizesPathTraversal(t *testing.T) {
	_, svc, _, requester, ticket := attachmentFixture(t)

	attachment, err := svc.Upload(context.Background(), ticket.ID, requester,
		"../../etc/passwd", "text/plain", 2, strings.NewReader("xx"))
	require.NoError(t, err)
	assert.Equal(t, "passwd", attachment.FileName)
	assert.NotContains(t, attachment.StorageKey, "..")
}

func TestDeleteAttachmentSoftDeletes(t *testing.T) {
	f, svc, _, requester, ticket := attachmentFixture(t)
	ctx := context.Background()

	attachment, err := svc.Upload(ctx, ticket.ID, requester, "note.txt", "text/plain", 1, strings.NewReader("n"))
	require.NoError(t, err)

	stranger := f.addUser("mallory", domain.RoleEmployee)
	require.Error(t, svc.Delete(ctx, attachment.ID, stranger))

	require.NoError(t, svc.Delete(ctx, attachment.ID, requester))
	_, _, err = svc.Open(ctx, attachment.ID, requester)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}
