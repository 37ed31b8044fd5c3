package rest

import (
	"context"
	"net/http"
	"strconv"

	"digitalMenu/domain"
	"digitalMenu/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type OrdersService interface {
	Create(ctx context.Context, principal domain.Principal, req domain.OrderRequest) (domain.Order, error)
	PlaceFromCart(ctx context.Context, sess domain.Session, req domain.OrderRequest) (domain.Order, error)
	Get(ctx context.Context, principal domain.Principal, id uint64) (domain.Order, error)
	List(ctx context.Context, principal domain.Principal, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, principal domain.Principal, id uint64, status domain.OrderStatus) (domain.Order, error)
	Cancel(ctx context.Context, principal domain.Principal, id uint64) (domain.Order, error)
}

// OrdersHandler serves the account and the table-session order routes.
type OrdersHandler struct {
	base
	ordersService OrdersService
}

func NewOrdersHandler(ordersService OrdersService) *OrdersHandler {
	return &OrdersHandler{base: newBase(), ordersService: ordersService}
}

type CreateOrderRequest struct {
	Items       []domain.ItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	Kind        domain.OrderKind     `json:"kind"`
	Note        string               `json:"note" validate:"max=500"`
	DeliveryFee decimal.Decimal      `json:"delivery_fee"`
}

type CheckoutRequest struct {
	Kind        domain.OrderKind `json:"kind"`
	Note        string           `json:"note" validate:"max=500"`
	DeliveryFee decimal.Decimal  `json:"delivery_fee"`
}

type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
}

// defaultKind is dine-in at a table and takeout everywhere else.
func defaultKind(p domain.Principal, kind domain.OrderKind) domain.OrderKind {
	if kind != "" {
		return kind
	}
	if p.IsTableSession() {
		return domain.KindDineIn
	}
	return domain.KindTakeout
}

func (h *OrdersHandler) Create(c echo.Context) error {
	var req CreateOrderRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	p := session(c).Principal
	order, err := h.ordersService.Create(ctx, p, domain.OrderRequest{
		Items:       req.Items,
		Kind:        defaultKind(p, req.Kind),
		Note:        req.Note,
		DeliveryFee: req.DeliveryFee,
	})
	if err != nil {
		logger.Error("Failed to create order", "principal", p.String(), "error", err)
		return err
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(order))
}

func (h *OrdersHandler) Checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	sess := session(c)
	order, err := h.ordersService.PlaceFromCart(ctx, sess, domain.OrderRequest{
		Kind:        defaultKind(sess.Principal, req.Kind),
		Note:        req.Note,
		DeliveryFee: req.DeliveryFee,
	})
	if err != nil {
		logger.Error("Failed to check out cart", "principal", sess.Principal.String(), "error", err)
		return err
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(order))
}

// List supports ?status, ?limit, ?offset for everyone and ?user_id, ?table_id,
// ?account_id for managers. The service discards scope filters from others.
func (h *OrdersHandler) List(c echo.Context) error {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	orders, err := h.ordersService.List(ctx, session(c).Principal, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(orders))
}

func (h *OrdersHandler) Get(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	order, err := h.ordersService.Get(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(order))
}

func (h *OrdersHandler) Cancel(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	order, err := h.ordersService.Cancel(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(order))
}

func (h *OrdersHandler) UpdateStatus(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	var req UpdateStatusRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	order, err := h.ordersService.UpdateStatus(ctx, session(c).Principal, id, req.Status)
	if err != nil {
		logger.Error("Failed to update order status", "order_id", id, "error", err)
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(order))
}

func orderFilterFromQuery(c echo.Context) (domain.OrderFilter, error) {
	var filter domain.OrderFilter
	var err error

	filter.Status = domain.OrderStatus(c.QueryParam("status"))
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return filter, err
	}

	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, domain.NewError(domain.CodeValidation, "invalid user_id")
		}
		uid := uint(id)
		filter.UserID = &uid
	}
	if raw := c.QueryParam("table_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, domain.NewError(domain.CodeValidation, "invalid table_id")
		}
		tid := uint(id)
		filter.TableID = &tid
	}
	if raw := c.QueryParam("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, domain.NewError(domain.CodeValidation, "invalid account_id")
		}
		filter.AccountID = &id
	}

	return filter, nil
}
