package postgres

import (
	"context"
	"errors"
	"time"

	"digitalMenu/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var unsettled = []domain.AccountStatus{domain.AccountOpen, domain.AccountClosed}

type AccountRepository struct {
	DB *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{
		DB: db,
	}
}

// Open returns the table's open account, creating one when the table has none.
func (r *AccountRepository) Open(ctx context.Context, tableID uint, now time.Time) (domain.Account, error) {
	var account domain.Account
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockTable(tx, tableID); err != nil {
			return err
		}

		current, found, err := findUnsettled(tx, tableID)
		if err != nil {
			return err
		}
		if found {
			if current.Status == domain.AccountClosed {
				return domain.NewError(domain.CodeInvalidTransition, "table %d has a closed account waiting for payment", tableID)
			}
			account = current
			return nil
		}

		account = domain.Account{TableID: tableID, Status: domain.AccountOpen, Total: decimal.Zero, OpenedAt: now}
		return tx.Omit("Orders").Create(&account).Error
	})
	if err != nil {
		return domain.Account{}, domain.Upstream(err, "open account")
	}
	return account, nil
}

// CloseTable gathers the table's unpaid, unlinked, non-canceled orders into its
// account in one transaction under the table row lock.
func (r *AccountRepository) CloseTable(ctx context.Context, tableID uint, now time.Time) (domain.Account, error) {
	var account domain.Account
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockTable(tx, tableID); err != nil {
			return err
		}

		current, found, err := findUnsettled(tx, tableID)
		if err != nil {
			return err
		}
		if found && current.Status == domain.AccountClosed {
			return domain.NewError(domain.CodeInvalidTransition, "table %d already has a closed account waiting for payment", tableID)
		}

		var orders []domain.Order
		err = tx.Where("table_id = ? AND payment_status = ? AND status <> ? AND account_id IS NULL",
			tableID, domain.PaymentPending, domain.OrderCanceled).
			Order("id ASC").
			Find(&orders).Error
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return domain.NewError(domain.CodeNoPendingOrders, "table %d has no unpaid orders", tableID)
		}

		total := decimal.Zero
		ids := make([]uint64, 0, len(orders))
		for _, o := range orders {
			total = total.Add(o.Total)
			ids = append(ids, o.ID)
		}
		total = total.Round(2)

		closedAt := now
		if found {
			account = current
			result := tx.Model(&domain.Account{}).
				Where("id = ? AND status = ?", account.ID, domain.AccountOpen).
				Updates(map[string]interface{}{"status": domain.AccountClosed, "total": total, "closed_at": closedAt})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.NewError(domain.CodeInvalidTransition, "account %d is no longer open", account.ID)
			}
		} else {
			account = domain.Account{TableID: tableID, Status: domain.AccountClosed, Total: total, OpenedAt: now, ClosedAt: &closedAt}
			if err := tx.Omit("Orders").Create(&account).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&domain.Order{}).Where("id IN ?", ids).Update("account_id", account.ID).Error; err != nil {
			return err
		}

		account.Status = domain.AccountClosed
		account.Total = total
		account.ClosedAt = &closedAt

		for i := range orders {
			accountID := account.ID
			orders[i].AccountID = &accountID
		}
		account.Orders = orders
		return nil
	})
	if err != nil {
		return domain.Account{}, domain.Upstream(err, "close account")
	}
	return account, nil
}

// FinalizePayment marks a closed account paid, its orders paid and the table
// free unless newer unpaid orders remain. Either all of it commits or none does.
func (r *AccountRepository) FinalizePayment(ctx context.Context, accountID uint64, method domain.PaymentMethod, now time.Time) (domain.Account, error) {
	var account domain.Account
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if account, err = lockAccount(tx, accountID); err != nil {
			return err
		}
		if account.Status != domain.AccountClosed {
			return domain.NewError(domain.CodeInvalidTransition, "account %d is %s, only closed accounts can be paid", accountID, account.Status)
		}

		result := tx.Model(&domain.Account{}).
			Where("id = ? AND status = ?", accountID, domain.AccountClosed).
			Updates(map[string]interface{}{"status": domain.AccountPaid, "payment_method": string(method), "paid_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NewError(domain.CodeInvalidTransition, "account %d is no longer closed", accountID)
		}

		err = tx.Model(&domain.Order{}).Where("account_id = ?", accountID).
			Updates(map[string]interface{}{"payment_status": domain.PaymentPaid, "updated_at": now}).Error
		if err != nil {
			return err
		}

		// orders placed after the close are still owed; the table stays occupied
		var owed int64
		err = tx.Model(&domain.Order{}).
			Where("table_id = ? AND payment_status = ? AND status <> ? AND account_id IS NULL",
				account.TableID, domain.PaymentPending, domain.OrderCanceled).
			Count(&owed).Error
		if err != nil {
			return err
		}
		if owed == 0 {
			if err := tx.Model(&domain.Table{}).Where("id = ?", account.TableID).Update("status", domain.TableFree).Error; err != nil {
				return err
			}
		}

		return tx.Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).First(&account, accountID).Error
	})
	if err != nil {
		return domain.Account{}, domain.Upstream(err, "finalize payment")
	}
	return account, nil
}

// Cancel drops an unsettled account and releases its orders so a later close
// can pick them up again.
func (r *AccountRepository) Cancel(ctx context.Context, accountID uint64) (domain.Account, error) {
	var account domain.Account
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if account, err = lockAccount(tx, accountID); err != nil {
			return err
		}
		if !domain.CanTransitionAccount(account.Status, domain.AccountCanceled) {
			return domain.NewError(domain.CodeInvalidTransition, "account %d is %s and cannot be canceled", accountID, account.Status)
		}

		if err := tx.Model(&domain.Account{}).Where("id = ?", accountID).Update("status", domain.AccountCanceled).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Order{}).Where("account_id = ?", accountID).Update("account_id", nil).Error; err != nil {
			return err
		}

		account.Status = domain.AccountCanceled
		return nil
	})
	if err != nil {
		return domain.Account{}, domain.Upstream(err, "cancel account")
	}
	return account, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id uint64) (domain.Account, error) {
	var account domain.Account
	err := r.DB.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Orders.Lines").
		First(&account, id).Error
	if err != nil {
		return domain.Account{}, accountNotFound(err, id)
	}
	return account, nil
}

func (r *AccountRepository) ListByTable(ctx context.Context, tableID uint) ([]domain.Account, error) {
	var accounts []domain.Account
	err := r.DB.WithContext(ctx).Where("table_id = ?", tableID).Order("opened_at DESC, id DESC").Find(&accounts).Error
	if err != nil {
		return nil, domain.Upstream(err, "list accounts")
	}
	return accounts, nil
}

// lockAccount locks the owning table first, the same order CloseTable uses, then
// reads the account.
func lockAccount(tx *gorm.DB, accountID uint64) (domain.Account, error) {
	var account domain.Account
	if err := tx.First(&account, accountID).Error; err != nil {
		return domain.Account{}, accountNotFound(err, accountID)
	}
	if _, err := lockTable(tx, account.TableID); err != nil {
		return domain.Account{}, err
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, accountID).Error; err != nil {
		return domain.Account{}, accountNotFound(err, accountID)
	}
	return account, nil
}

func findUnsettled(tx *gorm.DB, tableID uint) (domain.Account, bool, error) {
	var account domain.Account
	err := tx.Where("table_id = ? AND status IN ?", tableID, unsettled).Order("id DESC").First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	return account, true, nil
}

func accountNotFound(err error, id uint64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewError(domain.CodeNotFound, "account %d not found", id)
	}
	return domain.Upstream(err, "read account")
}
