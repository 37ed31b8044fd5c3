package rest

import (
	"context"
	"net/http"

	"digitalMenu/business/cart"
	"digitalMenu/domain"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type CartService interface {
	Get(ctx context.Context, sess domain.Session) (cart.Summary, error)
	AddProduct(ctx context.Context, sess domain.Session, productID uint64, qty int, note string) (cart.Summary, error)
	SetQuantity(ctx context.Context, sess domain.Session, productID uint64, qty int) (cart.Summary, error)
	SetNote(ctx context.Context, sess domain.Session, productID uint64, note string) (cart.Summary, error)
	Remove(ctx context.Context, sess domain.Session, productID uint64) (cart.Summary, error)
	Clear(ctx context.Context, sess domain.Session) error
}

// CartHandler serves both the account cart and the per-device table cart;
// which one is decided by the session the middleware put on the request.
type CartHandler struct {
	base
	cartService CartService
}

func NewCartHandler(cartService CartService) *CartHandler {
	return &CartHandler{base: newBase(), cartService: cartService}
}

type AddCartItemRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
	Note      string `json:"note" validate:"max=500"`
}

// UpdateCartItemRequest changes quantity, note or both. A quantity of zero or
// less removes the line.
type UpdateCartItemRequest struct {
	Quantity *int    `json:"quantity" validate:"omitempty,lte=99"`
	Note     *string `json:"note" validate:"omitempty,max=500"`
}

func (h *CartHandler) Get(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	summary, err := h.cartService.Get(ctx, session(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(summary))
}

func (h *CartHandler) AddItem(c echo.Context) error {
	var req AddCartItemRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	summary, err := h.cartService.AddProduct(ctx, session(c), req.ProductID, req.Quantity, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(summary))
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	productID, err := paramUint64(c, "product_id")
	if err != nil {
		return err
	}

	var req UpdateCartItemRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if req.Quantity == nil && req.Note == nil {
		return domain.NewError(domain.CodeValidation, "quantity or note is required")
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	sess := session(c)
	var summary cart.Summary
	if req.Note != nil {
		if summary, err = h.cartService.SetNote(ctx, sess, productID, *req.Note); err != nil {
			return err
		}
	}
	if req.Quantity != nil {
		if summary, err = h.cartService.SetQuantity(ctx, sess, productID, *req.Quantity); err != nil {
			return err
		}
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(summary))
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	productID, err := paramUint64(c, "product_id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	summary, err := h.cartService.Remove(ctx, session(c), productID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(summary))
}

func (h *CartHandler) Clear(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.cartService.Clear(ctx, session(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
