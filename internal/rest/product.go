package rest

import (
	"context"
	"net/http"
	"strings"

	"digitalMenu/domain"
	"digitalMenu/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ProductService interface {
	GetAllProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id uint64) (domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Principal, product *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Principal, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, p domain.Principal, id uint64) error
}

type ProductHandler struct {
	base
	productService ProductService
}

func NewProductHandler(productService ProductService) *ProductHandler {
	return &ProductHandler{base: newBase(), productService: productService}
}

type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Category    string          `json:"category" validate:"max=100"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Available   *bool           `json:"available"`
}

func (r ProductRequest) toDomain(id uint64) *domain.Product {
	available := true
	if r.Available != nil {
		available = *r.Available
	}
	return &domain.Product{
		ID:          id,
		Name:        strings.TrimSpace(r.Name),
		Category:    strings.TrimSpace(r.Category),
		Description: r.Description,
		Price:       r.Price,
		Available:   available,
	}
}

// GetAllProducts lists the menu. ?category= narrows it, ?all=true includes
// unavailable items.
func (h *ProductHandler) GetAllProducts(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	products, err := h.productService.GetAllProducts(ctx, domain.ProductFilter{
		Category:      c.QueryParam("category"),
		AvailableOnly: c.QueryParam("all") != "true",
	})
	if err != nil {
		logger.Error("Failed to find all products", err)
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(products))
}

func (h *ProductHandler) GetProductByID(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	product, err := h.productService.GetProductByID(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(product))
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req ProductRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	product, err := h.productService.CreateProduct(ctx, session(c).Principal, req.toDomain(0))
	if err != nil {
		logger.Error("Failed to create product", err)
		return err
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(product))
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	var req ProductRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	product, err := h.productService.UpdateProduct(ctx, session(c).Principal, req.toDomain(id))
	if err != nil {
		logger.Error("Failed to update product", err)
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(product))
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.productService.DeleteProduct(ctx, session(c).Principal, id); err != nil {
		logger.Error("Failed to delete product", err)
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]any{
		"message":    "product successfully deleted",
		"product_id": id,
	}))
}
