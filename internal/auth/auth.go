// Package auth verifies HMAC-signed bearer tokens and carries the caller's
// identity through the request context.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

type Identity struct {
	UserID int64
	Role   Role
	Email  string
}

type Claims struct {
	UserID int64  `json:"user_id"`
	Role   Role   `json:"role"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

type Authenticator struct {
	secret []byte
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger, now: time.Now}
}

// Issue signs a token for id. Token issuance belongs to the user service; this
// exists for tooling and tests.
func (a *Authenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: id.UserID,
		Role:   id.Role,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a raw token and returns the identity it carries.
func (a *Authenticator) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Unauthorized("token expired")
		}
		return Identity{}, apperr.Unauthorized("invalid token")
	}
	if !token.Valid || claims.UserID < 1 {
		return Identity{}, apperr.Unauthorized("invalid token")
	}

	role := claims.Role
	if role == "" {
		role = RoleCustomer
	}
	return Identity{UserID: claims.UserID, Role: role, Email: claims.Email}, nil
}

// Require rejects requests without a valid "Authorization: Bearer" token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if header == "" || !ok || strings.TrimSpace(raw) == "" {
			httpx.WriteError(w, r, a.logger, apperr.Unauthorized("missing bearer token"))
			return
		}

		id, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			httpx.WriteError(w, r, a.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole must run after Require; it answers 403 for any other role.
func RequireRole(logger *slog.Logger, roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, r, logger, apperr.Unauthorized("missing bearer token"))
				return
			}
			if !allowed[id.Role] {
				httpx.WriteError(w, r, logger, apperr.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
