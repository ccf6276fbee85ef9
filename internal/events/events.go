// Package events publishes order lifecycle events to a RabbitMQ topic
// exchange.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wakala/exchangedesk/internal/domain"
)

const (
	RoutingOrderCreated  = "order.created"
	RoutingOrderApproved = "order.approved"
)

// Publisher sends an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close()
}

type OrderCreated struct {
	EventID         uuid.UUID         `json:"event_id"`
	OrderID         int64             `json:"order_id"`
	CorrespondentID int64             `json:"correspondent_id"`
	Mode            domain.AmountMode `json:"mode"`
	USDAmount       float64           `json:"x_usd"`
	TotalAMD        int64             `json:"sum_amd"`
	WalletAddr      string            `json:"wallet_addr"`
	CreatedAt       time.Time         `json:"created_at"`
}

type OrderApproved struct {
	EventID         uuid.UUID `json:"event_id"`
	OrderID         int64     `json:"order_id"`
	CorrespondentID int64     `json:"correspondent_id"`
	ReceiptKey      string    `json:"receipt_key"`
	ApprovedAt      time.Time `json:"approved_at"`
}

func NewOrderCreated(o domain.Order) OrderCreated {
	return OrderCreated{
		EventID:         uuid.New(),
		OrderID:         o.ID,
		CorrespondentID: o.CorrespondentID,
		Mode:            o.Payload.Mode,
		USDAmount:       o.Payload.USDAmount,
		TotalAMD:        o.Payload.TotalAMD,
		WalletAddr:      o.Payload.WalletAddr,
		CreatedAt:       o.CreatedAt,
	}
}

func NewOrderApproved(orderID, correspondentID int64, receiptKey string, at time.Time) OrderApproved {
	return OrderApproved{
		EventID:         uuid.New(),
		OrderID:         orderID,
		CorrespondentID: correspondentID,
		ReceiptKey:      receiptKey,
		ApprovedAt:      at,
	}
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

func (Noop) Close() {}
