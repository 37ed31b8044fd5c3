// Package policy holds every role-sensitive visibility and mutation rule. Services
// call it before touching the store; handlers never re-derive role checks.
package policy

import (
	"digitalMenu/domain"
)

// OrderScope narrows an order listing to what a principal may see.
// A zero scope means every order.
type OrderScope struct {
	UserID      *uint
	TableID     *uint
	UnpaidOnly  bool
	WithParties bool
}

type Policy struct{}

func New() Policy {
	return Policy{}
}

func (Policy) RequireIdentity(p domain.Principal) error {
	if p.IsZero() {
		return domain.NewError(domain.CodeAuthenticationRequired, "sign in or scan a table code to continue")
	}
	return nil
}

func (Policy) RequireManager(p domain.Principal) error {
	if p.IsZero() {
		return domain.NewError(domain.CodeAuthenticationRequired, "authentication required")
	}
	if !p.IsManager() {
		return domain.NewError(domain.CodeForbidden, "manager role required")
	}
	return nil
}

// RequireAuthenticatedUser is the rule for non-table orders: a real signed-in user.
func (Policy) RequireAuthenticatedUser(p domain.Principal) error {
	if p.UserID == nil || p.IsTableSession() {
		return domain.NewError(domain.CodeAuthenticationRequired, "sign in to place pickup or delivery orders")
	}
	return nil
}

// ListScope: customers see their own orders, a table session its current tab,
// managers everything with table and customer joined in.
func (Policy) ListScope(p domain.Principal) (OrderScope, error) {
	switch {
	case p.IsZero():
		return OrderScope{}, domain.NewError(domain.CodeAuthenticationRequired, "authentication required")
	case p.IsManager():
		return OrderScope{WithParties: true}, nil
	case p.IsTableSession():
		return OrderScope{TableID: p.TableID, UnpaidOnly: true}, nil
	default:
		return OrderScope{UserID: p.UserID}, nil
	}
}

func (pol Policy) CanView(p domain.Principal, order domain.Order) error {
	if err := pol.RequireIdentity(p); err != nil {
		return err
	}
	if p.IsManager() || owns(p, order) {
		return nil
	}
	return domain.NewError(domain.CodeForbidden, "order %d is not visible to you", order.ID)
}

// CanCancel allows managers, the owning customer and the owning table session.
// The status guard is applied by the order service afterwards.
func (pol Policy) CanCancel(p domain.Principal, order domain.Order) error {
	if err := pol.RequireIdentity(p); err != nil {
		return err
	}
	if p.IsManager() || owns(p, order) {
		return nil
	}
	return domain.NewError(domain.CodeForbidden, "only the owner or a manager can cancel order %d", order.ID)
}

func owns(p domain.Principal, order domain.Order) bool {
	if p.IsTableSession() {
		return order.TableID != nil && *order.TableID == *p.TableID &&
			order.PaymentStatus != domain.PaymentPaid
	}
	return p.UserID != nil && order.UserID != nil && *order.UserID == *p.UserID
}
