package rest

import (
	"context"
	"errors"
	"net/http"

	"digitalMenu/business/tables"
	"digitalMenu/domain"
	"digitalMenu/internal/middleware"
	"digitalMenu/pkg/logger"
	jsonres "digitalMenu/pkg/response"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type TablesService interface {
	CreateTable(ctx context.Context, p domain.Principal, req tables.CreateTableRequest) (domain.Table, error)
	ListTables(ctx context.Context, p domain.Principal) ([]domain.Table, error)
	GetTable(ctx context.Context, p domain.Principal, id uint) (domain.Table, error)
	RegenerateToken(ctx context.Context, p domain.Principal, id uint) (domain.Table, error)
	SetStatus(ctx context.Context, p domain.Principal, id uint, status domain.TableStatus) (domain.Table, error)
	OpenAccount(ctx context.Context, p domain.Principal, tableID uint) (domain.Account, error)
	CloseAccount(ctx context.Context, p domain.Principal, tableID uint) (domain.Account, error)
	FinalizePayment(ctx context.Context, p domain.Principal, accountID uint64, method domain.PaymentMethod) (domain.PaymentResult, error)
	RecordRevenue(ctx context.Context, p domain.Principal, accountID uint64) (*domain.RevenueEntry, error)
	CancelAccount(ctx context.Context, p domain.Principal, accountID uint64) (domain.Account, error)
	GetAccount(ctx context.Context, p domain.Principal, id uint64) (domain.Account, error)
	ListAccounts(ctx context.Context, p domain.Principal, tableID uint) ([]domain.Account, error)
}

// TablesHandler holds the staff-facing table and account routes.
type TablesHandler struct {
	base
	tablesService TablesService
}

func NewTablesHandler(tablesService TablesService) *TablesHandler {
	return &TablesHandler{base: newBase(), tablesService: tablesService}
}

type SetTableStatusRequest struct {
	Status domain.TableStatus `json:"status" validate:"required"`
}

type PaymentRequest struct {
	Method domain.PaymentMethod `json:"method" validate:"required"`
}

// PaymentResponse always reports the payment. Warning is set when the payment
// went through but the revenue entry did not.
type PaymentResponse struct {
	Account domain.Account       `json:"account"`
	Ledger  *domain.RevenueEntry `json:"ledger,omitempty"`
	Warning *jsonres.ErrorBody   `json:"warning,omitempty"`
}

func (h *TablesHandler) Create(c echo.Context) error {
	var req tables.CreateTableRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	table, err := h.tablesService.CreateTable(ctx, session(c).Principal, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(table))
}

func (h *TablesHandler) List(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	list, err := h.tablesService.ListTables(ctx, session(c).Principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(list))
}

func (h *TablesHandler) Get(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	table, err := h.tablesService.GetTable(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(table))
}

func (h *TablesHandler) SetStatus(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	var req SetTableStatusRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	table, err := h.tablesService.SetStatus(ctx, session(c).Principal, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(table))
}

func (h *TablesHandler) RegenerateToken(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	table, err := h.tablesService.RegenerateToken(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	logger.Info("Table code regenerated", "table_id", table.ID)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(table))
}

func (h *TablesHandler) OpenAccount(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	account, err := h.tablesService.OpenAccount(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(account))
}

func (h *TablesHandler) Close(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	account, err := h.tablesService.CloseAccount(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(account))
}

func (h *TablesHandler) ListAccounts(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	accounts, err := h.tablesService.ListAccounts(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(accounts))
}

func (h *TablesHandler) GetAccount(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	account, err := h.tablesService.GetAccount(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(account))
}

func (h *TablesHandler) Pay(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	var req PaymentRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	result, err := h.tablesService.FinalizePayment(ctx, session(c).Principal, id, req.Method)
	if err != nil {
		logger.Error("Failed to finalize payment", "account_id", id, "error", err)
		return err
	}

	resp := PaymentResponse{Account: result.Account, Ledger: result.Ledger}
	if result.LedgerErr != nil {
		var coded *domain.Error
		msg := result.LedgerErr.Error()
		if errors.As(result.LedgerErr, &coded) {
			msg = coded.Message
		}
		warning := jsonres.RetryableError(string(domain.CodeLedgerWriteFailure), msg, false)
		resp.Warning = &warning
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(resp))
}

func (h *TablesHandler) RecordRevenue(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	entry, err := h.tablesService.RecordRevenue(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(entry))
}

func (h *TablesHandler) CancelAccount(c echo.Context) error {
	id, err := paramUint64(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	account, err := h.tablesService.CancelAccount(ctx, session(c).Principal, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(account))
}

// TableSessionInfo is what a diner sees about the table they sit at.
type TableSessionInfo struct {
	TableID     uint               `json:"table_id"`
	Number      int                `json:"number"`
	Status      domain.TableStatus `json:"status"`
	SessionUser *uint              `json:"session_user_id,omitempty"`
}

// TableSession describes the current table session. The access token is
// never echoed back.
func TableSession(c echo.Context) error {
	table, ok := middleware.CurrentTable(c)
	if !ok {
		return domain.NewError(domain.CodeAuthenticationRequired, "table code is required")
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(TableSessionInfo{
		TableID:     table.ID,
		Number:      table.Number,
		Status:      table.Status,
		SessionUser: session(c).Principal.UserID,
	}))
}
