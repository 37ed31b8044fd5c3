package rest

import (
	"context"
	"errors"
	"strconv"
	"time"

	"digitalMenu/domain"
	"digitalMenu/internal/middleware"
	"digitalMenu/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const defaultTimeout = 10 * time.Second

// base carries what every handler shares.
type base struct {
	validate *validator.Validate
	timeout  time.Duration
}

func newBase() base {
	return base{validate: validator.New(), timeout: defaultTimeout}
}

func (b base) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), b.timeout)
}

// bind decodes and validates the body. Both failures are validation errors.
func (b base) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		logger.Debug("Invalid request body", "path", c.Path(), "error", err)
		return domain.WrapError(domain.CodeValidation, err, "request body is not valid JSON")
	}
	if err := b.validate.Struct(req); err != nil {
		return domain.WrapError(domain.CodeValidation, err, "%s", validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "request is not valid"
	}
	fe := errs[0]
	return fe.Field() + " failed on the '" + fe.Tag() + "' rule"
}

func paramUint64(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.NewError(domain.CodeValidation, "invalid %s", name)
	}
	return id, nil
}

func paramUint(c echo.Context, name string) (uint, error) {
	id, err := paramUint64(c, name)
	return uint(id), err
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewError(domain.CodeValidation, "invalid %s", name)
	}
	return n, nil
}

// session returns the request's session; routes without auth get an empty one
// and the services reject it.
func session(c echo.Context) domain.Session {
	sess, _ := middleware.CurrentSession(c)
	return sess
}
