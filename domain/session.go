package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
)

// NormalizeRole folds the staff role names onto manager. Unknown roles become customer.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "manager", "operator", "owner", "admin":
		return RoleManager
	default:
		return RoleCustomer
	}
}

// Principal is the acting identity of one operation.
// A table principal is anonymous: its authority comes from the table token only,
// UserID is carried for order history when the caller explicitly attached a session.
type Principal struct {
	UserID  *uint
	TableID *uint
	Role    Role
}

func UserPrincipal(userID uint, role Role) Principal {
	return Principal{UserID: &userID, Role: role}
}

func TablePrincipal(tableID uint, attachedUserID *uint) Principal {
	p := Principal{TableID: &tableID, Role: RoleCustomer}
	if attachedUserID != nil {
		uid := *attachedUserID
		p.UserID = &uid
	}
	return p
}

func (p Principal) IsManager() bool {
	return p.Role == RoleManager && p.TableID == nil
}

func (p Principal) IsTableSession() bool {
	return p.TableID != nil
}

func (p Principal) IsZero() bool {
	return p.UserID == nil && p.TableID == nil
}

func (p Principal) String() string {
	switch {
	case p.TableID != nil:
		return fmt.Sprintf("table:%d", *p.TableID)
	case p.UserID != nil:
		return fmt.Sprintf("user:%d(%s)", *p.UserID, p.Role)
	default:
		return "anonymous"
	}
}

// Session is built once per request and handed explicitly to every operation.
type Session struct {
	Principal Principal
	CartKey   string
}

// CartKeyFor derives the storage key of a principal's cart. Table carts are further
// split per device so two diners at one table keep separate carts.
func CartKeyFor(p Principal, device string) string {
	switch {
	case p.TableID != nil:
		if device == "" {
			device = "shared"
		}
		return fmt.Sprintf("cart:table:%d:%s", *p.TableID, device)
	case p.UserID != nil:
		return fmt.Sprintf("cart:user:%d", *p.UserID)
	default:
		return ""
	}
}
