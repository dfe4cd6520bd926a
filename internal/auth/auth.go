// Package auth verifies bearer tokens and carries the caller's identity on
// the request context. Tokens are issued elsewhere; this package only reads
// them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"servicemarket/marketplace-service/internal/httpx"
	"servicemarket/marketplace-service/internal/model"
)

// Account statuses that may not use the API.
const (
	StatusSuspended = "suspended"
	StatusBanned    = "banned"
)

// Identity is the verified caller.
type Identity struct {
	UserID string
	Role   model.Role
	Status string
}

// IsAdmin reports whether the caller is an admin.
func (id Identity) IsAdmin() bool { return id.Role == model.RoleAdmin }

// Claims is the JWT payload issued by the auth service.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Status string `json:"status"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse verifies tokenStr and returns the identity it carries.
func (v *Verifier) Parse(tokenStr string) (Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return Identity{}, errors.New("invalid token: missing userId")
	}
	return Identity{UserID: claims.UserID, Role: model.Role(claims.Role), Status: claims.Status}, nil
}

// ─── Context ─────────────────────────────────────────────────────────────────

type ctxKey struct{}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// MustFromContext is FromContext for handlers mounted behind Middleware.
func MustFromContext(ctx context.Context) Identity {
	id, _ := FromContext(ctx)
	return id
}

// ─── Middleware ──────────────────────────────────────────────────────────────

// Middleware rejects requests without a valid "Authorization: Bearer" token
// and stores the caller's identity on the context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			httpx.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		id, err := v.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			httpx.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if id.Status == StatusSuspended || id.Status == StatusBanned {
			httpx.Error(w, "account is "+id.Status, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole lets through only callers whose role is one of roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok || !slices.Contains(roles, id.Role) {
				httpx.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
