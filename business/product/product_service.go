package product

import (
	"context"
	"strings"

	"digitalMenu/business/policy"
	"digitalMenu/domain"
	"digitalMenu/pkg/logger"

	"github.com/shopspring/decimal"
)

// ProductRepository contract interface
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uint64) (domain.Product, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
	FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uint64) error
}

type ProductService struct {
	productRepo ProductRepository
	policy      policy.Policy
}

func NewProductService(productRepo ProductRepository) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		policy:      policy.New(),
	}
}

func (s *ProductService) GetAllProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Upstream(err, "list products")
	}

	products, err := s.productRepo.FindAll(ctx, filter)
	if err != nil {
		logger.Error("Failed to find all product", err)
		return nil, err
	}

	return products, nil
}

func (s *ProductService) GetProductByID(ctx context.Context, id uint64) (domain.Product, error) {
	if id == 0 {
		return domain.Product{}, domain.NewError(domain.CodeValidation, "invalid product id")
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		logger.Warn("failed to find product by id", "product_id", id, "error", err)
		return domain.Product{}, err
	}

	return product, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, p domain.Principal, product *domain.Product) (*domain.Product, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return nil, err
	}

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		logger.Error("failed to create new product", err)
		return nil, domain.Upstream(err, "create product")
	}

	logger.Info("product created", "product_id", product.ID)
	return product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, p domain.Principal, product *domain.Product) (*domain.Product, error) {
	if err := s.policy.RequireManager(p); err != nil {
		return nil, err
	}

	if product.ID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "product id is required")
	}

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	// Verify product exists
	if _, err := s.productRepo.FindByID(ctx, product.ID); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		logger.Error("failed to update product", err)
		return nil, domain.Upstream(err, "update product")
	}

	updated, err := s.productRepo.FindByID(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	logger.Info("product updated", "product_id", product.ID)
	return &updated, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, p domain.Principal, id uint64) error {
	if err := s.policy.RequireManager(p); err != nil {
		return err
	}

	if id == 0 {
		return domain.NewError(domain.CodeValidation, "invalid product id")
	}

	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		logger.Error("failed to delete product", err)
		return domain.Upstream(err, "delete product")
	}

	logger.Info("product deleted", "product_id", id)
	return nil
}

func validateProduct(product *domain.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	product.Category = strings.TrimSpace(product.Category)

	if product.Name == "" {
		return domain.NewError(domain.CodeValidation, "product name is required")
	}
	if !product.Price.GreaterThan(decimal.Zero) {
		return domain.NewError(domain.CodeValidation, "price must be greater than 0")
	}
	if product.Price.Exponent() < -2 {
		return domain.NewError(domain.CodeValidation, "price has more than two decimal places")
	}
	return nil
}
