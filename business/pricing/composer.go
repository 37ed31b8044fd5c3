// Package pricing turns requested items into a priced order draft using the
// authoritative product prices read at submission time.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"digitalMenu/domain"
	"digitalMenu/pkg/logger"

	"github.com/shopspring/decimal"
)

// ProductReader reads current prices for a batch of ids in one call.
type ProductReader interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
}

type Composer struct {
	products ProductReader
}

func NewComposer(products ProductReader) *Composer {
	return &Composer{products: products}
}

// Compose validates the request, re-reads prices and returns a draft order whose
// lines carry the price snapshot. Nothing is persisted here.
func (c *Composer) Compose(ctx context.Context, principal domain.Principal, req domain.OrderRequest) (domain.Order, error) {
	if principal.IsZero() {
		return domain.Order{}, domain.NewError(domain.CodeValidation, "an order needs a user or a table")
	}

	if err := validateRequest(principal, req); err != nil {
		return domain.Order{}, err
	}

	ids := uniqueIDs(req.Items)
	products, err := c.products.FindByIDs(ctx, ids)
	if err != nil {
		logger.Error("Failed to read product prices", "error", err)
		return domain.Order{}, domain.Upstream(err, "read product prices")
	}

	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		if p.Available {
			byID[p.ID] = p
		}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return domain.Order{}, domain.NewError(domain.CodeProductNotFound, "products not available: %s", strings.Join(missing, ", "))
	}

	order := domain.Order{
		Kind:          req.Kind,
		Note:          strings.TrimSpace(req.Note),
		DeliveryFee:   req.DeliveryFee.Round(2),
		Status:        domain.OrderPending,
		PaymentStatus: domain.PaymentPending,
		Lines:         make([]domain.OrderLine, 0, len(req.Items)),
	}

	if principal.TableID != nil {
		tableID := *principal.TableID
		order.TableID = &tableID
	}
	if principal.UserID != nil {
		userID := *principal.UserID
		order.UserID = &userID
	}

	for _, item := range req.Items {
		p := byID[item.ProductID]
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.Price.Round(2),
			Note:        strings.TrimSpace(item.Note),
		})
	}

	order.ApplyTotals()

	return order, nil
}

func validateRequest(principal domain.Principal, req domain.OrderRequest) error {
	if len(req.Items) == 0 {
		return domain.NewError(domain.CodeValidation, "an order needs at least one item")
	}

	for _, item := range req.Items {
		if item.ProductID == 0 {
			return domain.NewError(domain.CodeValidation, "product id is required")
		}
		if item.Quantity < 1 {
			return domain.NewError(domain.CodeValidation, "quantity for product %d must be at least 1", item.ProductID)
		}
	}

	if !req.Kind.Valid() {
		return domain.NewError(domain.CodeValidation, "unknown order kind %q", req.Kind)
	}

	if req.DeliveryFee.IsNegative() {
		return domain.NewError(domain.CodeValidation, "delivery fee cannot be negative")
	}

	if req.Kind != domain.KindDelivery && req.DeliveryFee.GreaterThan(decimal.Zero) {
		return domain.NewError(domain.CodeValidation, "delivery fee only applies to delivery orders")
	}

	if principal.IsTableSession() && req.Kind == domain.KindDelivery {
		return domain.NewError(domain.CodeValidation, "table orders cannot be delivered")
	}

	if !principal.IsTableSession() && req.Kind == domain.KindDineIn {
		return domain.NewError(domain.CodeValidation, "dine-in orders are placed with the table code")
	}

	return nil
}

func uniqueIDs(items []domain.ItemRequest) []uint64 {
	seen := make(map[uint64]struct{}, len(items))
	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
