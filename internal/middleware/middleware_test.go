package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"digitalMenu/business/identity"
	"digitalMenu/domain"
	jsonres "digitalMenu/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	users   map[string]domain.Session
	tables  map[string]domain.Table
	lastReq identity.TableRequest
}

func (s *stubResolver) User(_ context.Context, bearer string) (domain.Session, error) {
	sess, ok := s.users[bearer]
	if !ok {
		return domain.Session{}, domain.NewError(domain.CodeAuthenticationRequired, "authentication required")
	}
	return sess, nil
}

func (s *stubResolver) Table(_ context.Context, req identity.TableRequest) (domain.Session, domain.Table, error) {
	s.lastReq = req
	table, ok := s.tables[req.TableToken]
	if !ok {
		return domain.Session{}, domain.Table{}, domain.NewError(domain.CodeAuthenticationRequired, "table code is not valid")
	}
	p := domain.TablePrincipal(table.ID, nil)
	return domain.Session{Principal: p, CartKey: domain.CartKeyFor(p, req.Device)}, table, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) jsonres.ErrorBody {
	t.Helper()
	var body jsonres.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthAndManagerOnly(t *testing.T) {
	resolver := &stubResolver{users: map[string]domain.Session{
		"Bearer manager":  {Principal: domain.UserPrincipal(1, domain.RoleManager)},
		"Bearer customer": {Principal: domain.UserPrincipal(2, domain.RoleCustomer)},
	}}

	e := newEcho()
	e.GET("/admin", func(c echo.Context) error {
		sess, ok := CurrentSession(c)
		require.True(t, ok)
		return c.String(http.StatusOK, sess.Principal.String())
	}, Auth(resolver), ManagerOnly())

	cases := []struct {
		name   string
		bearer string
		status int
		code   string
	}{
		{"manager", "Bearer manager", http.StatusOK, ""},
		{"customer", "Bearer customer", http.StatusForbidden, "FORBIDDEN"},
		{"missing", "", http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.bearer != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.bearer)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, decodeError(t, rec).Code)
			}
		})
	}
}

func TestTableSessionReadsHeaders(t *testing.T) {
	resolver := &stubResolver{tables: map[string]domain.Table{"abc": {ID: 7, Number: 7}}}

	e := newEcho()
	e.GET("/table-session", func(c echo.Context) error {
		sess, _ := CurrentSession(c)
		table, ok := CurrentTable(c)
		require.True(t, ok)
		assert.Equal(t, uint(7), table.ID)
		return c.String(http.StatusOK, sess.CartKey)
	}, TableSession(resolver))

	req := httptest.NewRequest(http.MethodGet, "/table-session", nil)
	req.Header.Set(HeaderTableToken, " abc ")
	req.Header.Set(HeaderAttachSession, "TRUE")
	req.Header.Set(HeaderDeviceID, "tablet")
	req.Header.Set(echo.HeaderAuthorization, "Bearer x")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", resolver.lastReq.TableToken)
	assert.True(t, resolver.lastReq.AttachSession)
	assert.Equal(t, "Bearer x", resolver.lastReq.Bearer)
	assert.Equal(t, domain.CartKeyFor(domain.TablePrincipal(7, nil), "tablet"), rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/table-session", nil)
	req.Header.Set(HeaderTableToken, "stale")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorHandlerEnvelope(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"validation", domain.NewError(domain.CodeValidation, "quantity must be at least 1"), 400, "VALIDATION_ERROR", false},
		{"product", domain.NewError(domain.CodeProductNotFound, "product 9 not found"), 422, "PRODUCT_NOT_FOUND", false},
		{"transition", domain.NewError(domain.CodeInvalidTransition, "order is ready"), 409, "INVALID_TRANSITION", false},
		{"no orders", domain.NewError(domain.CodeNoPendingOrders, "nothing to close"), 409, "NO_PENDING_ORDERS", false},
		{"persistence", domain.NewError(domain.CodeOrderPersistenceFailure, "safe to retry"), 500, "ORDER_PERSISTENCE_FAILURE", true},
		{"upstream", domain.Upstream(errors.New("connection refused"), "save order"), 502, "UPSTREAM_FAILURE", true},
		{"echo", echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), 429, "RATE_LIMITED", true},
		{"plain", errors.New("boom"), 500, "INTERNAL_ERROR", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

			ErrorHandler(tc.err, c)

			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.retryable, body.Retryable)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestUpstreamMessageCarriesCause(t *testing.T) {
	_, body := render(domain.Upstream(errors.New("dial tcp: refused"), "load cart"))
	assert.Contains(t, body.Message, "dial tcp: refused")
}

func TestValidationDetailsListFields(t *testing.T) {
	type body struct {
		Quantity int `validate:"gte=1"`
	}
	verr := validator.New().Struct(body{})
	require.Error(t, verr)

	status, out := render(domain.WrapError(domain.CodeValidation, verr, "request is not valid"))
	assert.Equal(t, http.StatusBadRequest, status)
	fields, ok := out.Details.([]fieldError)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "body.Quantity", fields[0].Field)
	assert.Equal(t, "gte", fields[0].Rule)
}
