package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/studyhub/internal/model"
)

// HeaderClientSession carries the anonymous client id.
const HeaderClientSession = "X-Client-Session"

const maxClientSessionLen = 128

// Claims are the JWT claims accepted by the backend. Subject is the user id.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for userID valid for ttl.
func IssueToken(secret, userID string, admin bool, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type adminCtxKey struct{}

func isAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(adminCtxKey{}).(bool)
	return admin
}

// identity resolves the caller from a bearer token or, when anonymous
// access is allowed, from the client session header. A request with
// neither continues unscoped; an invalid token is rejected.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if auth := r.Header.Get("Authorization"); auth != "" {
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || h.config.JWTSecret == "" {
				h.writeError(w, r, http.StatusUnauthorized, errors.New("unsupported authorization"))
				return
			}
			claims, err := parseToken(h.config.JWTSecret, strings.TrimSpace(raw))
			if err != nil {
				h.writeError(w, r, http.StatusUnauthorized, fmt.Errorf("parse token: %w", err))
				return
			}
			ctx = model.ContextWithIdentity(ctx, model.Identity{UserID: claims.Subject})
			ctx = context.WithValue(ctx, adminCtxKey{}, claims.Admin)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if cs := strings.TrimSpace(r.Header.Get(HeaderClientSession)); cs != "" && h.config.AllowAnonymous {
			if len(cs) > maxClientSessionLen {
				h.writeError(w, r, http.StatusBadRequest, errors.New("client session id too long"))
				return
			}
			ctx = model.ContextWithIdentity(ctx, model.Identity{ClientSessionID: cs})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireIdentity rejects requests that carry neither a user nor a client
// session.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if model.IdentityFromContext(r.Context()).IsZero() {
			writeUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin allows only authenticated users with the admin claim.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := model.IdentityFromContext(r.Context())
		if id.UserID == "" {
			writeUnauthorized(w, r)
			return
		}
		if !isAdmin(r.Context()) {
			writeForbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	writeLocalized(w, r, http.StatusUnauthorized, "ErrUnauthorized")
}

func writeForbidden(w http.ResponseWriter, r *http.Request) {
	writeLocalized(w, r, http.StatusForbidden, "ErrForbidden")
}
