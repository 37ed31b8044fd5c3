package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TableStatus string

const (
	TableFree     TableStatus = "free"
	TableOccupied TableStatus = "occupied"
	TableReserved TableStatus = "reserved"
	TableInactive TableStatus = "inactive"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableFree, TableOccupied, TableReserved, TableInactive:
		return true
	}
	return false
}

// ManualTarget reports whether staff may set the status by hand. Occupied is only
// ever reached through the order flow.
func (s TableStatus) ManualTarget() bool {
	return s == TableFree || s == TableReserved || s == TableInactive
}

type Table struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Number      int         `gorm:"column:number;uniqueIndex;not null" json:"number"`
	Capacity    int         `gorm:"column:capacity;not null;default:0" json:"capacity"`
	Status      TableStatus `gorm:"column:status;type:text;not null;default:free" json:"status"`
	AccessToken string      `gorm:"column:access_token;uniqueIndex;not null" json:"access_token,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Table) TableName() string {
	return "tables"
}

type AccountStatus string

const (
	AccountOpen     AccountStatus = "open"
	AccountClosed   AccountStatus = "closed"
	AccountPaid     AccountStatus = "paid"
	AccountCanceled AccountStatus = "canceled"
)

var accountTransitions = map[AccountStatus][]AccountStatus{
	AccountOpen:   {AccountClosed, AccountCanceled},
	AccountClosed: {AccountPaid, AccountCanceled},
}

func CanTransitionAccount(from, to AccountStatus) bool {
	for _, next := range accountTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Account is a table's tab. Total is the snapshot taken when it was closed.
type Account struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TableID       uint            `gorm:"column:table_id;not null;index" json:"table_id"`
	Status        AccountStatus   `gorm:"column:status;type:text;not null" json:"status"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	PaymentMethod string          `gorm:"column:payment_method;type:text" json:"payment_method,omitempty"`
	OpenedAt      time.Time       `gorm:"column:opened_at" json:"opened_at"`
	ClosedAt      *time.Time      `gorm:"column:closed_at" json:"closed_at,omitempty"`
	PaidAt        *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Orders        []Order         `gorm:"foreignKey:AccountID" json:"orders,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentPix    PaymentMethod = "pix"
	PaymentWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentPix, PaymentWallet:
		return true
	}
	return false
}

// RevenueEntry is an append-only ledger row, at most one per paid account.
type RevenueEntry struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     uint64          `gorm:"column:account_id;uniqueIndex;not null" json:"account_id"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	PaymentMethod string          `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (RevenueEntry) TableName() string {
	return "revenue_entries"
}

// PaymentResult is what a finalized payment hands back. Ledger is nil when the
// amount was zero or the ledger write failed; LedgerErr carries the soft failure.
type PaymentResult struct {
	Account   Account       `json:"account"`
	Ledger    *RevenueEntry `json:"ledger,omitempty"`
	LedgerErr error         `json:"-"`
}
