package postgres

import (
	"context"
	"errors"

	"digitalMenu/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TablesRepository struct {
	DB *gorm.DB
}

func NewTablesRepository(db *gorm.DB) *TablesRepository {
	return &TablesRepository{
		DB: db,
	}
}

func (r *TablesRepository) Create(ctx context.Context, table *domain.Table) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&domain.Table{}).Where("number = ?", table.Number).Count(&count).Error; err != nil {
		return domain.Upstream(err, "check table number")
	}
	if count > 0 {
		return domain.NewError(domain.CodeValidation, "table number %d already exists", table.Number)
	}

	if err := r.DB.WithContext(ctx).Create(table).Error; err != nil {
		return domain.Upstream(err, "create table")
	}
	return nil
}

func (r *TablesRepository) List(ctx context.Context) ([]domain.Table, error) {
	var tables []domain.Table
	if err := r.DB.WithContext(ctx).Order("number ASC").Find(&tables).Error; err != nil {
		return nil, domain.Upstream(err, "list tables")
	}
	return tables, nil
}

func (r *TablesRepository) FindByID(ctx context.Context, id uint) (domain.Table, error) {
	var table domain.Table
	if err := r.DB.WithContext(ctx).First(&table, id).Error; err != nil {
		return domain.Table{}, tableNotFound(err, id)
	}
	return table, nil
}

func (r *TablesRepository) FindByToken(ctx context.Context, token string) (domain.Table, error) {
	var table domain.Table
	if err := r.DB.WithContext(ctx).Where("access_token = ?", token).First(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Table{}, domain.NewError(domain.CodeNotFound, "table not found")
		}
		return domain.Table{}, domain.Upstream(err, "resolve table")
	}
	return table, nil
}

func (r *TablesRepository) UpdateToken(ctx context.Context, id uint, token string) error {
	return r.update(ctx, id, "access_token", token)
}

func (r *TablesRepository) UpdateStatus(ctx context.Context, id uint, status domain.TableStatus) error {
	return r.update(ctx, id, "status", status)
}

func (r *TablesRepository) MarkOccupied(ctx context.Context, id uint) error {
	err := r.DB.WithContext(ctx).Model(&domain.Table{}).
		Where("id = ? AND status IN ?", id, []domain.TableStatus{domain.TableFree, domain.TableReserved}).
		Update("status", domain.TableOccupied).Error
	if err != nil {
		return domain.Upstream(err, "occupy table")
	}
	return nil
}

func (r *TablesRepository) update(ctx context.Context, id uint, column string, value interface{}) error {
	result := r.DB.WithContext(ctx).Model(&domain.Table{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return domain.Upstream(result.Error, "update table")
	}
	if result.RowsAffected == 0 {
		return domain.NewError(domain.CodeNotFound, "table %d not found", id)
	}
	return nil
}

// lockTable takes the row lock that serializes account changes of one table.
func lockTable(tx *gorm.DB, id uint) (domain.Table, error) {
	var table domain.Table
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&table, id).Error; err != nil {
		return domain.Table{}, tableNotFound(err, id)
	}
	return table, nil
}

func tableNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewError(domain.CodeNotFound, "table %d not found", id)
	}
	return domain.Upstream(err, "read table")
}
