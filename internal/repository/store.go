package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgx operations the repositories rely on. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same repository code runs
// inside and outside transactions.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles every repository bound to one database handle.
type Store struct {
	pool *pgxpool.Pool

	Tickets     TicketRepository
	Comments    CommentRepository
	Users       UserRepository
	Attachments AttachmentRepository
	Audits      EmailAuditRepository
}

// NewStore builds a pool-backed store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:        pool,
		Tickets:     NewTicketRepository(pool),
		Comments:    NewCommentRepository(pool),
		Users:       NewUserRepository(pool),
		Attachments: NewAttachmentRepository(pool),
		Audits:      NewEmailAuditRepository(pool),
	}
}

// InTx runs fn with a store whose repositories are bound to a single
// transaction. The transaction commits when fn returns nil and rolls
// back otherwise, so a ticket mutation and its attached comment are
// all-or-nothing. Without a pool (in-memory repositories) fn runs
// against the store directly.
func (s *Store) InTx(ctx context.Context, fn func(*Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	txStore := &Store{
		pool:        s.pool,
		Tickets:     NewTicketRepository(tx),
		Comments:    NewCommentRepository(tx),
		Users:       NewUserRepository(tx),
		Attachments: NewAttachmentRepository(tx),
		Audits:      NewEmailAuditRepository(tx),
	}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
