package domain

import "github.com/shopspring/decimal"

// CartItem is one staged product. UnitPrice is the last price the diner saw and
// is advisory only: checkout re-reads authoritative prices.
type CartItem struct {
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Note      string          `json:"note,omitempty"`
}

// ItemRequest is one requested line before pricing.
type ItemRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Note      string `json:"note" validate:"max=500"`
}

// OrderRequest is the composer input besides the principal.
type OrderRequest struct {
	Items       []ItemRequest
	Kind        OrderKind
	Note        string
	DeliveryFee decimal.Decimal
}
