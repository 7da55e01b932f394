package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	TopicCheckoutCompleted = "checkout-completed"
	EventTypeHeader        = "event_type"
	EventCheckoutCompleted = "checkout.completed"
)

// CheckoutCompleted is the payload published once an order has been placed.
type CheckoutCompleted struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id,omitempty"`
	SessionID   string             `json:"session_id"`
	Email       string             `json:"email,omitempty"`
	VoucherCode string             `json:"voucher_code,omitempty"`
	Items       []domain.OrderItem `json:"items"`
	Subtotal    float64            `json:"subtotal"`
	Discount    float64            `json:"discount"`
	Total       float64            `json:"total"`
	CompletedAt time.Time          `json:"completed_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func NewPublisher(topic string, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}
}

// PublishCheckoutCompleted writes the order keyed by its id so events for one order stay ordered.
func (p *Publisher) PublishCheckoutCompleted(ctx context.Context, sessionID string, order *domain.Order) error {
	event := CheckoutCompleted{
		OrderID:     order.ID.String(),
		UserID:      order.UserID,
		SessionID:   sessionID,
		Email:       order.Email,
		VoucherCode: order.VoucherCode,
		Items:       order.Items,
		Subtotal:    order.Subtotal,
		Discount:    order.Discount,
		Total:       order.Total,
		CompletedAt: order.CreatedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(EventCheckoutCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish checkout event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
