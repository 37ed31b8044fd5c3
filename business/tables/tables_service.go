// Package tables manages dining tables and their accounts (tabs): closing a tab
// over the table's unpaid orders and settling it.
package tables

import (
	"context"
	"errors"
	"strings"
	"time"

	"digitalMenu/business/policy"
	"digitalMenu/domain"
	"digitalMenu/pkg/logger"
	"digitalMenu/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TableRepository interface {
	Create(ctx context.Context, table *domain.Table) error
	List(ctx context.Context) ([]domain.Table, error)
	FindByID(ctx context.Context, id uint) (domain.Table, error)
	FindByToken(ctx context.Context, token string) (domain.Table, error)
	UpdateToken(ctx context.Context, id uint, token string) error
	UpdateStatus(ctx context.Context, id uint, status domain.TableStatus) error
	// MarkOccupied moves a free or reserved table to occupied and leaves any other
	// status alone.
	MarkOccupied(ctx context.Context, id uint) error
}

// AccountRepository runs the multi-row account transitions. CloseTable and
// FinalizePayment each commit or roll back as one transaction.
type AccountRepository interface {
	Open(ctx context.Context, tableID uint, now time.Time) (domain.Account, error)
	CloseTable(ctx context.Context, tableID uint, now time.Time) (domain.Account, error)
	FinalizePayment(ctx context.Context, accountID uint64, method domain.PaymentMethod, now time.Time) (domain.Account, error)
	Cancel(ctx context.Context, accountID uint64) (domain.Account, error)
	FindByID(ctx context.Context, id uint64) (domain.Account, error)
	ListByTable(ctx context.Context, tableID uint) ([]domain.Account, error)
}

type RevenueRepository interface {
	FindByAccount(ctx context.Context, accountID uint64) (domain.RevenueEntry, error)
	Insert(ctx context.Context, entry *domain.RevenueEntry) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
}

type TablesService struct {
	tables   TableRepository
	accounts AccountRepository
	revenue  RevenueRepository
	events   EventPublisher
	policy   policy.Policy
	now      func() time.Time
}

func NewTablesService(tables TableRepository, accounts AccountRepository, revenue RevenueRepository, events EventPublisher) *TablesService {
	return &TablesService{
		tables:   tables,
		accounts: accounts,
		revenue:  revenue,
		events:   events,
		policy:   policy.New(),
		now:      time.Now,
	}
}

type CreateTableRequest struct {
	Number   int `json:"number" validate:"required,gte=1"`
	Capacity int `json:"capacity" validate:"gte=0,lte=100"`
}

func (s *TablesService) CreateTable(ctx context.Context, p domain.Principal, req CreateTableRequest) (domain.Table, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Table{}, err
	}
	if req.Number < 1 {
		return domain.Table{}, domain.NewError(domain.CodeValidation, "table number must be positive")
	}

	table := domain.Table{
		Number:      req.Number,
		Capacity:    req.Capacity,
		Status:      domain.TableFree,
		AccessToken: newAccessToken(),
	}
	if err := s.tables.Create(ctx, &table); err != nil {
		return domain.Table{}, err
	}

	logger.Info("Table created", "table_id", table.ID, "number", table.Number)
	return table, nil
}

func (s *TablesService) ListTables(ctx context.Context, p domain.Principal) ([]domain.Table, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return nil, err
	}
	return s.tables.List(ctx)
}

func (s *TablesService) GetTable(ctx context.Context, p domain.Principal, id uint) (domain.Table, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Table{}, err
	}
	return s.tables.FindByID(ctx, id)
}

// RegenerateToken replaces the table's access token; the old one stops resolving
// immediately.
func (s *TablesService) RegenerateToken(ctx context.Context, p domain.Principal, id uint) (domain.Table, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Table{}, err
	}

	table, err := s.tables.FindByID(ctx, id)
	if err != nil {
		return domain.Table{}, err
	}

	table.AccessToken = newAccessToken()
	if err := s.tables.UpdateToken(ctx, id, table.AccessToken); err != nil {
		return domain.Table{}, err
	}

	logger.Info("Table token regenerated", "table_id", id)
	return table, nil
}

// SetStatus is the manual override. Occupied is only reached by ordering.
func (s *TablesService) SetStatus(ctx context.Context, p domain.Principal, id uint, status domain.TableStatus) (domain.Table, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Table{}, err
	}
	if !status.ManualTarget() {
		return domain.Table{}, domain.NewError(domain.CodeValidation, "table status %q cannot be set by hand", status)
	}

	table, err := s.tables.FindByID(ctx, id)
	if err != nil {
		return domain.Table{}, err
	}
	if err := s.tables.UpdateStatus(ctx, id, status); err != nil {
		return domain.Table{}, err
	}

	table.Status = status
	return table, nil
}

// ResolveToken is the anonymous lookup behind the table code.
func (s *TablesService) ResolveToken(ctx context.Context, token string) (domain.Table, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Table{}, domain.NewError(domain.CodeAuthenticationRequired, "table code is required")
	}

	table, err := s.tables.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Table{}, domain.NewError(domain.CodeAuthenticationRequired, "table code is not valid")
		}
		return domain.Table{}, err
	}
	return table, nil
}

func (s *TablesService) AcceptsOrders(ctx context.Context, tableID uint) error {
	table, err := s.tables.FindByID(ctx, tableID)
	if err != nil {
		return err
	}
	if table.Status == domain.TableInactive {
		return domain.NewError(domain.CodeValidation, "table %d is not taking orders", table.Number)
	}
	return nil
}

func (s *TablesService) MarkOccupied(ctx context.Context, tableID uint) error {
	return s.tables.MarkOccupied(ctx, tableID)
}

func (s *TablesService) OpenAccount(ctx context.Context, p domain.Principal, tableID uint) (domain.Account, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Account{}, err
	}
	if _, err := s.tables.FindByID(ctx, tableID); err != nil {
		return domain.Account{}, err
	}
	return s.accounts.Open(ctx, tableID, s.now())
}

// CloseAccount totals the table's unpaid, unlinked orders into its account.
func (s *TablesService) CloseAccount(ctx context.Context, p domain.Principal, tableID uint) (domain.Account, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Account{}, err
	}

	account, err := s.accounts.CloseTable(ctx, tableID, s.now())
	if err != nil {
		logger.Warn("Close account failed", "table_id", tableID, "error", err)
		return domain.Account{}, err
	}

	metrics.AccountsClosed.Inc()
	logger.Info("Account closed", "account_id", account.ID, "table_id", tableID, "total", account.Total.StringFixed(2))
	s.publish(ctx, domain.EventAccountClosed, account)
	return account, nil
}

// FinalizePayment settles a closed account. Once the payment commits it stands:
// a failed ledger write comes back in PaymentResult.LedgerErr, not as err.
func (s *TablesService) FinalizePayment(ctx context.Context, p domain.Principal, accountID uint64, method domain.PaymentMethod) (domain.PaymentResult, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.PaymentResult{}, err
	}
	if !method.Valid() {
		return domain.PaymentResult{}, domain.NewError(domain.CodeValidation, "unknown payment method %q", method)
	}

	account, err := s.accounts.FinalizePayment(ctx, accountID, method, s.now())
	if err != nil {
		logger.Warn("Payment failed", "account_id", accountID, "error", err)
		return domain.PaymentResult{}, err
	}

	metrics.PaymentsFinalized.WithLabelValues(string(method)).Inc()
	logger.Info("Account paid", "account_id", account.ID, "method", method, "total", account.Total.StringFixed(2))
	s.publish(ctx, domain.EventAccountPaid, account)

	result := domain.PaymentResult{Account: account}
	entry, err := s.recordRevenue(ctx, account)
	if err != nil {
		metrics.RevenueLedgerFailures.Inc()
		logger.Error("Revenue ledger write failed after payment", "account_id", account.ID, "error", err)
		result.LedgerErr = err
		return result, nil
	}
	result.Ledger = entry
	return result, nil
}

// RecordRevenue retries only the ledger write of a paid account. Repeating it
// returns the existing entry.
func (s *TablesService) RecordRevenue(ctx context.Context, p domain.Principal, accountID uint64) (*domain.RevenueEntry, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountPaid {
		return nil, domain.NewError(domain.CodeInvalidTransition, "account %d is %s, only paid accounts enter the ledger", account.ID, account.Status)
	}

	return s.recordRevenue(ctx, account)
}

func (s *TablesService) recordRevenue(ctx context.Context, account domain.Account) (*domain.RevenueEntry, error) {
	if account.Total.Equal(decimal.Zero) {
		return nil, nil
	}

	existing, err := s.revenue.FindByAccount(ctx, account.ID)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, ledgerError(err)
	}

	entry := domain.RevenueEntry{
		AccountID:     account.ID,
		Amount:        account.Total,
		PaymentMethod: account.PaymentMethod,
		CreatedAt:     s.now(),
	}
	if err := s.revenue.Insert(ctx, &entry); err != nil {
		// a concurrent retry may have won the unique index
		if existing, findErr := s.revenue.FindByAccount(ctx, account.ID); findErr == nil {
			return &existing, nil
		}
		return nil, ledgerError(err)
	}
	return &entry, nil
}

func ledgerError(cause error) error {
	return domain.WrapError(domain.CodeLedgerWriteFailure, cause,
		"payment succeeded, ledger entry failed; retry only the ledger write")
}

func (s *TablesService) CancelAccount(ctx context.Context, p domain.Principal, accountID uint64) (domain.Account, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Account{}, err
	}

	account, err := s.accounts.Cancel(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}

	logger.Info("Account canceled", "account_id", account.ID, "table_id", account.TableID)
	return account, nil
}

func (s *TablesService) GetAccount(ctx context.Context, p domain.Principal, id uint64) (domain.Account, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return domain.Account{}, err
	}
	return s.accounts.FindByID(ctx, id)
}

func (s *TablesService) ListAccounts(ctx context.Context, p domain.Principal, tableID uint) ([]domain.Account, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return nil, err
	}
	return s.accounts.ListByTable(ctx, tableID)
}

func (s *TablesService) publish(ctx context.Context, eventType string, account domain.Account) {
	if s.events == nil {
		return
	}
	tableID := account.TableID
	event := domain.LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		AccountID:  account.ID,
		TableID:    &tableID,
		Status:     string(account.Status),
		Total:      account.Total,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish account event", "type", eventType, "account_id", account.ID, "error", err)
	}
}

func newAccessToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
