package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsg-it/it4u/internal/domain"
	"github.com/gsg-it/it4u/internal/events"
	"github.com/gsg-it/it4u/internal/repository"
)

// In-memory repositories backing service tests. Store.InTx runs the
// callback directly when no pool is configured, so the fakes see the
// same call sequence the real repositories would.

type memTicketRepo struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{nextID: 1, tickets: map[int64]domain.Ticket{}}
}

func (r *memTicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID
	r.nextID++
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.tickets[t.ID] = *t
	return nil
}

func (r *memTicketRepo) Update(ctx context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[t.ID] = *t
	return nil
}

func (r *memTicketRepo) SetThreadMessageID(ctx context.Context, ticketID int64, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	if t.EmailThreadMessageID == "" {
		t.EmailThreadMessageID = messageID
		r.tickets[ticketID] = t
	}
	return nil
}

func (r *memTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := t
	return &copied, nil
}

func (r *memTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.ManagerID != nil {
			managed := t.ManagerID != nil && *t.ManagerID == *filter.ManagerID
			if !managed && filter.ManagerEmail != nil {
				managed = strings.EqualFold(t.ManagerEmail, *filter.ManagerEmail)
			}
			if !managed {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memTicketRepo) HardDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	nextID   int64
	comments []domain.Comment
}

func newMemCommentRepo() *memCommentRepo { return &memCommentRepo{nextID: 1} }

func (r *memCommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.comments = append(r.comments, *c)
	return nil
}

func (r *memCommentRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[int64]domain.User{}}
}

func (r *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.nextID
	r.nextID++
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := u
	return &copied, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memAttachmentRepo struct {
	mu          sync.Mutex
	nextID      int64
	attachments map[int64]domain.Attachment
}

func newMemAttachmentRepo() *memAttachmentRepo {
	return &memAttachmentRepo{nextID: 1, attachments: map[int64]domain.Attachment{}}
}

func (r *memAttachmentRepo) Create(ctx context.Context, a *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.nextID
	r.nextID++
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now()
	}
	r.attachments[a.ID] = *a
	return nil
}

func (r *memAttachmentRepo) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attachments[id]
	if !ok || a.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	copied := a
	return &copied, nil
}

func (r *memAttachmentRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.attachments {
		if a.TicketID == ticketID && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAttachmentRepo) CountByTicket(ctx context.Context, ticketID int64) (int, error) {
	list, _ := r.ListByTicket(ctx, ticketID)
	return len(list), nil
}

func (r *memAttachmentRepo) SoftDelete(ctx context.Context, id, deletedBy int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attachments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.DeletedAt = &at
	a.DeletedByID = &deletedBy
	r.attachments[id] = a
	return nil
}

type memAuditRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []domain.EmailAudit
}

func newMemAuditRepo() *memAuditRepo { return &memAuditRepo{nextID: 1} }

func (r *memAuditRepo) Create(ctx context.Context, audit *domain.EmailAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	audit.ID = r.nextID
	r.nextID++
	r.rows = append(r.rows, *audit)
	return nil
}

func (r *memAuditRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.EmailAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmailAudit
	for _, row := range r.rows {
		if row.TicketID != nil && *row.TicketID == ticketID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memAuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.EmailAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.EmailAudit(nil), r.rows...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memAuditRepo) DeleteByTicketID(ctx context.Context, ticketID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.EmailAudit
	var removed int64
	for _, row := range r.rows {
		if row.TicketID != nil && *row.TicketID == ticketID {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return removed, nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (b *recordingBus) Close() {}

func (b *recordingBus) published() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

type fixture struct {
	store   *repository.Store
	tickets *memTicketRepo
	users   *memUserRepo
	audits  *memAuditRepo
	bus     *recordingBus
	svc     *TicketService
}

func newFixture() *fixture {
	tickets := newMemTicketRepo()
	users := newMemUserRepo()
	audits := newMemAuditRepo()
	store := &repository.Store{
		Tickets:     tickets,
		Comments:    newMemCommentRepo(),
		Users:       users,
		Attachments: newMemAttachmentRepo(),
		Audits:      audits,
	}
	bus := &recordingBus{}
	svc := NewTicketService(TicketDependencies{
		Store:  store,
		Bus:    bus,
		Logger: zap.NewNop(),
	})
	return &fixture{store: store, tickets: tickets, users: users, audits: audits, bus: bus, svc: svc}
}

func (f *fixture) addUser(username string, role domain.Role) *domain.User {
	u := &domain.User{
		Username: username,
		FullName: username,
		Email:    username + "@geosoftglobal.com",
		Role:     role,
	}
	_ = f.users.Create(context.Background(), u)
	return u
}
