package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventAccountClosed      = "account.closed"
	EventAccountPaid        = "account.paid"
)

// LifecycleEvent is published to the kitchen/billing broker after a state change commits.
type LifecycleEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OrderID    uint64          `json:"order_id,omitempty"`
	AccountID  uint64          `json:"account_id,omitempty"`
	TableID    *uint           `json:"table_id,omitempty"`
	Kind       OrderKind       `json:"kind,omitempty"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}
