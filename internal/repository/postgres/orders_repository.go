package postgres

import (
	"context"
	"errors"
	"time"

	"digitalMenu/domain"

	"gorm.io/gorm"
)

const displayNumberAttempts = 3

type OrdersRepository struct {
	DB *gorm.DB
}

func NewOrdersRepository(db *gorm.DB) *OrdersRepository {
	return &OrdersRepository{
		DB: db,
	}
}

// InsertHeader stores the order row and assigns the next display number. A
// concurrent insert that took the same number hits the unique index and the
// insert is retried.
func (r *OrdersRepository) InsertHeader(ctx context.Context, order *domain.Order) error {
	var err error
	for attempt := 0; attempt < displayNumberAttempts; attempt++ {
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last int64
			if err := tx.Model(&domain.Order{}).Select("COALESCE(MAX(display_number), 0)").Scan(&last).Error; err != nil {
				return err
			}
			order.ID = 0
			order.DisplayNumber = last + 1
			return tx.Omit("Lines", "User", "Table").Create(order).Error
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return err
}

func (r *OrdersRepository) FindHeader(ctx context.Context, id uint64) (domain.Order, error) {
	var order domain.Order
	if err := r.DB.WithContext(ctx).First(&order, id).Error; err != nil {
		return domain.Order{}, orderNotFound(err, id)
	}
	return order, nil
}

// InsertLines writes all lines in one statement.
func (r *OrdersRepository) InsertLines(ctx context.Context, orderID uint64, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].OrderID = orderID
	}
	return r.DB.WithContext(ctx).Omit("Product").Create(&lines).Error
}

func (r *OrdersRepository) DeleteHeader(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&domain.OrderLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Order{}, id).Error
	})
}

func (r *OrdersRepository) FindWithLines(ctx context.Context, id uint64) (domain.Order, error) {
	var order domain.Order
	err := r.DB.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Table", publicTableColumns).
		First(&order, id).Error
	if err != nil {
		return domain.Order{}, orderNotFound(err, id)
	}
	if order.Lines == nil {
		order.Lines = []domain.OrderLine{}
	}
	return order, nil
}

// UpdateStatus only applies when the order is still in status from. A cancel
// also requires that no closed account has picked the order up.
func (r *OrdersRepository) UpdateStatus(ctx context.Context, id uint64, from, to domain.OrderStatus) error {
	query := r.DB.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, from)
	if to == domain.OrderCanceled {
		query = query.Where("account_id IS NULL")
	}

	result := query.Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return domain.Upstream(result.Error, "update order status")
	}
	if result.RowsAffected == 0 {
		if to == domain.OrderCanceled {
			return domain.NewError(domain.CodeInvalidTransition, "order %d is no longer %s or is already on a closed account", id, from)
		}
		return domain.NewError(domain.CodeInvalidTransition, "order %d is no longer %s", id, from)
	}
	return nil
}

// List returns newest first.
func (r *OrdersRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := r.DB.WithContext(ctx).Model(&domain.Order{}).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC, id DESC")

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.TableID != nil {
		query = query.Where("table_id = ?", *filter.TableID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.WithParties {
		query = query.Preload("Table", publicTableColumns).Preload("User")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var orders []domain.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, domain.Upstream(err, "list orders")
	}
	return orders, nil
}

func orderNotFound(err error, id uint64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewError(domain.CodeNotFound, "order %d not found", id)
	}
	return domain.Upstream(err, "read order")
}

// publicTableColumns keeps the table code out of order payloads.
func publicTableColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "number", "capacity", "status", "created_at", "updated_at")
}
