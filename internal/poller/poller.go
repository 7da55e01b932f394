package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const GroupID = "storefront-cart-cleaner"

// Poller clears the server-held cart of every user whose checkout completed.
type Poller struct {
	repo   repository.CartRepository
	reader *kafka.Reader
	cache  cache.CartCache
	logger *zap.Logger
}

func NewPoller(repo repository.CartRepository, cache cache.CartCache, logger *zap.Logger, topic string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{repo: repo, reader: reader, cache: cache, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.getMessageAndEmptyCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) getMessageAndEmptyCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("error reading message", zap.Error(err))
		}
		return
	}

	var event publisher.CheckoutCompleted
	if errUnmarshal := json.Unmarshal(m.Value, &event); errUnmarshal != nil {
		p.logger.Error("error parsing message", zap.Int64("offset", m.Offset), zap.Error(errUnmarshal))
		return
	}
	if event.UserID == "" {
		// guest checkout, nothing held server side
		return
	}

	p.clearCart(ctx, event.UserID)
}

func (p *Poller) clearCart(ctx context.Context, userID string) {
	errDelete := p.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, repository.ErrCartNotFound) {
		p.logger.Error("failed to delete cart", zap.String("user_id", userID), zap.Error(errDelete))
	}

	errCacheDelete := p.cache.Delete(ctx, userID)
	if errCacheDelete != nil {
		p.logger.Warn("failed to delete cache", zap.String("user_id", userID), zap.Error(errCacheDelete))
	}
}
