package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderInPreparation  OrderStatus = "in_preparation"
	OrderReady          OrderStatus = "ready"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCanceled       OrderStatus = "canceled"
)

type OrderKind string

const (
	KindDineIn   OrderKind = "dine_in"
	KindTakeout  OrderKind = "takeout"
	KindDelivery OrderKind = "delivery"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

var ServiceFeeRate = decimal.RequireFromString("0.10")

type Order struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplayNumber int64           `gorm:"column:display_number;uniqueIndex" json:"display_number"`
	Status        OrderStatus     `gorm:"column:status;type:text;not null;index" json:"status"`
	Kind          OrderKind       `gorm:"column:kind;type:text;not null" json:"kind"`
	Subtotal      decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	ServiceFee    decimal.Decimal `gorm:"column:service_fee;type:numeric(12,2);not null" json:"service_fee"`
	DeliveryFee   decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null" json:"delivery_fee"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	Note          string          `gorm:"column:note;type:text" json:"note,omitempty"`
	UserID        *uint           `gorm:"column:user_id;index" json:"user_id"`
	TableID       *uint           `gorm:"column:table_id;index" json:"table_id"`
	AccountID     *uint64         `gorm:"column:account_id;index" json:"account_id,omitempty"`
	PaymentStatus PaymentStatus   `gorm:"column:payment_status;type:text;not null" json:"payment_status"`
	Lines         []OrderLine     `gorm:"foreignKey:OrderID" json:"lines"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Table         *Table          `gorm:"foreignKey:TableID" json:"table,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderLine struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint64          `gorm:"column:order_id;not null;index" json:"order_id"`
	ProductID   uint64          `gorm:"column:product_id;not null" json:"product_id"`
	ProductName string          `gorm:"column:product_name;type:text" json:"product_name"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	Note        string          `gorm:"column:note;type:text" json:"note,omitempty"`
	Product     *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (OrderLine) TableName() string {
	return "order_lines"
}

// ServiceFeeFor is round(subtotal * 0.10, 2).
func ServiceFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(ServiceFeeRate).Round(2)
}

// ApplyTotals recomputes subtotal, service fee and total from the line snapshots.
func (o *Order) ApplyTotals() {
	subtotal := decimal.Zero
	for i := range o.Lines {
		o.Lines[i].Subtotal = o.Lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(o.Lines[i].Quantity))).Round(2)
		subtotal = subtotal.Add(o.Lines[i].Subtotal)
	}
	o.Subtotal = subtotal.Round(2)
	o.ServiceFee = ServiceFeeFor(o.Subtotal)
	o.Total = o.Subtotal.Add(o.ServiceFee).Add(o.DeliveryFee).Round(2)
}

// HasOwner reports whether the order can be persisted: it must be owned by
// a user or a table. A table order may still carry the user id for history.
func (o Order) HasOwner() bool {
	return o.UserID != nil || o.TableID != nil
}

func (k OrderKind) Valid() bool {
	switch k {
	case KindDineIn, KindTakeout, KindDelivery:
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderConfirmed, OrderCanceled},
	OrderConfirmed:      {OrderInPreparation, OrderCanceled},
	OrderInPreparation:  {OrderReady},
	OrderReady:          {OrderOutForDelivery, OrderDelivered},
	OrderOutForDelivery: {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	if s == OrderDelivered || s == OrderCanceled {
		return true
	}
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCanceled
}

// CanTransitionOrder checks the order status machine. Only non-delivery orders may
// skip out_for_delivery and go from ready straight to delivered.
func CanTransitionOrder(kind OrderKind, from, to OrderStatus) bool {
	if from == OrderReady && to == OrderDelivered {
		return kind != KindDelivery
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Cancelable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// OrderFilter narrows order listings. Scope fields are set by the access policy,
// the rest come from the caller's query.
type OrderFilter struct {
	UserID        *uint
	TableID       *uint
	AccountID     *uint64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	WithParties   bool
	Limit         int
	Offset        int
}
