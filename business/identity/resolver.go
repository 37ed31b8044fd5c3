// Package identity turns request credentials into the explicit domain.Session
// every operation receives. It never reads ambient state.
package identity

import (
	"context"
	"strconv"
	"strings"

	"digitalMenu/domain"
	"digitalMenu/pkg/logger"
	"digitalMenu/pkg/utils"
)

type TokenParser interface {
	ParseJWT(token string) (*utils.Claims, error)
}

// SessionValidator confirms a token was issued and has not been revoked.
type SessionValidator interface {
	ValidateToken(ctx context.Context, token string) (uint, error)
}

type TableResolver interface {
	ResolveToken(ctx context.Context, token string) (domain.Table, error)
}

type Resolver struct {
	tokens   TokenParser
	sessions SessionValidator
	tables   TableResolver
}

func NewResolver(tokens TokenParser, sessions SessionValidator, tables TableResolver) *Resolver {
	return &Resolver{tokens: tokens, sessions: sessions, tables: tables}
}

// User resolves a bearer token. An empty token is AuthenticationRequired.
func (r *Resolver) User(ctx context.Context, bearer string) (domain.Session, error) {
	p, err := r.principalFromBearer(ctx, bearer)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Principal: p, CartKey: domain.CartKeyFor(p, "")}, nil
}

// TableRequest is what an anonymous table request carries.
type TableRequest struct {
	TableToken    string
	Bearer        string
	AttachSession bool
	Device        string
}

// Table resolves an anonymous table session. Authority comes from the table
// token alone; a bearer is only consulted when the caller opted in, and then
// contributes nothing but its user id.
func (r *Resolver) Table(ctx context.Context, req TableRequest) (domain.Session, domain.Table, error) {
	table, err := r.tables.ResolveToken(ctx, req.TableToken)
	if err != nil {
		return domain.Session{}, domain.Table{}, err
	}

	var attached *uint
	if req.AttachSession && req.Bearer != "" {
		p, err := r.principalFromBearer(ctx, req.Bearer)
		if err != nil {
			logger.Warn("Ignoring session on table request", "table_id", table.ID, "error", err)
		} else {
			attached = p.UserID
		}
	}

	p := domain.TablePrincipal(table.ID, attached)
	return domain.Session{Principal: p, CartKey: domain.CartKeyFor(p, sanitizeDevice(req.Device))}, table, nil
}

func (r *Resolver) principalFromBearer(ctx context.Context, bearer string) (domain.Principal, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearer), "Bearer "))
	if token == "" {
		return domain.Principal{}, domain.NewError(domain.CodeAuthenticationRequired, "authentication required")
	}

	claims, err := r.tokens.ParseJWT(token)
	if err != nil {
		return domain.Principal{}, domain.WrapError(domain.CodeAuthenticationRequired, err, "invalid or expired token")
	}

	userID, err := strconv.ParseUint(claims.UserID, 10, 64)
	if err != nil || userID == 0 {
		return domain.Principal{}, domain.NewError(domain.CodeAuthenticationRequired, "invalid token subject")
	}

	storedID, err := r.sessions.ValidateToken(ctx, token)
	if err != nil {
		if domain.CodeOf(err) == domain.CodeUpstreamFailure {
			return domain.Principal{}, domain.Upstream(err, "validate session")
		}
		return domain.Principal{}, domain.WrapError(domain.CodeAuthenticationRequired, err, "session expired, sign in again")
	}
	if storedID != uint(userID) {
		return domain.Principal{}, domain.NewError(domain.CodeAuthenticationRequired, "session does not match token")
	}

	return domain.UserPrincipal(uint(userID), domain.NormalizeRole(claims.Role)), nil
}

func sanitizeDevice(device string) string {
	device = strings.TrimSpace(device)
	if len(device) > 64 {
		device = device[:64]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, device)
}
