package postgres

import (
	"context"
	"errors"

	"digitalMenu/domain"

	"gorm.io/gorm"
)

// RevenueRepository is append-only: entries are inserted and read, never changed.
type RevenueRepository struct {
	DB *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) *RevenueRepository {
	return &RevenueRepository{
		DB: db,
	}
}

func (r *RevenueRepository) FindByAccount(ctx context.Context, accountID uint64) (domain.RevenueEntry, error) {
	var entry domain.RevenueEntry
	err := r.DB.WithContext(ctx).Where("account_id = ?", accountID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RevenueEntry{}, domain.NewError(domain.CodeNotFound, "no revenue entry for account %d", accountID)
		}
		return domain.RevenueEntry{}, err
	}
	return entry, nil
}

func (r *RevenueRepository) Insert(ctx context.Context, entry *domain.RevenueEntry) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}
