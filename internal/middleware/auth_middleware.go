package middleware

import (
	"context"
	"strings"
	"time"

	"digitalMenu/business/identity"
	"digitalMenu/domain"
	"digitalMenu/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderTableToken    = "X-Table-Token"
	HeaderAttachSession = "X-Attach-Session"
	HeaderDeviceID      = "X-Device-Id"

	sessionKey = "session"
	tableKey   = "table"
)

// SessionResolver turns request credentials into a domain.Session.
type SessionResolver interface {
	User(ctx context.Context, bearer string) (domain.Session, error)
	Table(ctx context.Context, req identity.TableRequest) (domain.Session, domain.Table, error)
}

// Auth requires a bearer token backed by a live session.
func Auth(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			sess, err := resolver.User(ctx, c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				logger.Debug("Rejected bearer", "path", c.Path(), "error", err)
				return err
			}

			c.Set(tableKey, nil)
			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

// ManagerOnly must run after Auth.
func ManagerOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, ok := CurrentSession(c)
			if !ok {
				return domain.NewError(domain.CodeAuthenticationRequired, "authentication required")
			}
			if !sess.Principal.IsManager() {
				return domain.NewError(domain.CodeForbidden, "manager access required")
			}
			return next(c)
		}
	}
}

// TableSession authenticates an anonymous diner by the table code. Any user
// session set earlier in the chain is replaced, the bearer is only looked at
// when X-Attach-Session is true.
func TableSession(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			h := c.Request().Header
			sess, table, err := resolver.Table(ctx, identity.TableRequest{
				TableToken:    strings.TrimSpace(h.Get(HeaderTableToken)),
				Bearer:        h.Get(echo.HeaderAuthorization),
				AttachSession: strings.EqualFold(h.Get(HeaderAttachSession), "true"),
				Device:        h.Get(HeaderDeviceID),
			})
			if err != nil {
				return err
			}

			c.Set(sessionKey, sess)
			c.Set(tableKey, table)
			return next(c)
		}
	}
}

func CurrentSession(c echo.Context) (domain.Session, bool) {
	sess, ok := c.Get(sessionKey).(domain.Session)
	return sess, ok
}

func CurrentTable(c echo.Context) (domain.Table, bool) {
	table, ok := c.Get(tableKey).(domain.Table)
	return table, ok
}
