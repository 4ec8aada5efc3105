package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gsg-it/it4u/internal/domain"
)

const ticketCacheTTL = 2 * time.Minute

// TicketDetail is the fully hydrated read model for one ticket.
type TicketDetail struct {
	Ticket      domain.Ticket
	Requester   *domain.User
	Manager     *domain.User
	AssignedTo  *domain.User
	Comments    []domain.Comment
	Attachments []domain.Attachment
}

// TicketCache fronts ticket-detail reads with Redis. Every lifecycle
// mutation drops the cached entry; a nil cache disables caching.
type TicketCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTicketCache builds a cache around the given client.
func NewTicketCache(client *redis.Client, logger *zap.Logger) *TicketCache {
	if client == nil {
		return nil
	}
	return &TicketCache{client: client, logger: logger}
}

// Get returns the cached detail or nil on miss or error.
func (c *TicketCache) Get(ctx context.Context, ticketID int64) *TicketDetail {
	if c == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, ticketKey(ticketID)).Bytes()
	if err != nil {
		return nil
	}
	var detail TicketDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		c.logger.Warn("corrupt ticket cache entry", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return nil
	}
	return &detail
}

// Set stores the detail, best effort.
func (c *TicketCache) Set(ctx context.Context, detail *TicketDetail) {
	if c == nil || detail == nil {
		return
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, ticketKey(detail.Ticket.ID), raw, ticketCacheTTL).Err(); err != nil {
		c.logger.Debug("ticket cache set failed", zap.Int64("ticket_id", detail.Ticket.ID), zap.Error(err))
	}
}

// Invalidate drops the cached entry after a mutation.
func (c *TicketCache) Invalidate(ctx context.Context, ticketID int64) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, ticketKey(ticketID)).Err(); err != nil {
		c.logger.Debug("ticket cache invalidate failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
	}
}

func ticketKey(id int64) string {
	return fmt.Sprintf("it4u:ticket:%d", id)
}
