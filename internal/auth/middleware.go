package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so nothing else can read
// or shadow the claims stored under it.
type contextKey string

const claimsKey contextKey = "claims"

// RevocationChecker is the part of the token denylist the middleware needs.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <jwt>", validates the token, rejects it if
// its jti is on the denylist, and stores the claims in the request context.
// Anything else ends the request with 401 and the standard error body.
//
// denylist may be nil, in which case logout cannot revoke tokens early.
func RequireAuth(tokens *TokenService, denylist RevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, "valid authentication required")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				msg := "valid authentication required"
				if errors.Is(err, ErrTokenExpired) {
					msg = "session expired, please log in again"
				}
				writeUnauthorized(w, msg)
				return
			}

			if denylist != nil {
				revoked, err := denylist.IsRevoked(r.Context(), claims.TokenID)
				if err != nil {
					logger.Error("checking token denylist",
						slog.String("error", err.Error()),
					)
					http.Error(w, `{"error":"internal_error","message":"An internal error occurred"}`, http.StatusInternalServerError)
					return
				}
				if revoked {
					writeUnauthorized(w, "session has been logged out")
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// EmailFromContext returns the authenticated user's e-mail.
//
// Usage in handlers:
//
//	email, ok := auth.EmailFromContext(r.Context())
//	if !ok {
//	    // route was not behind RequireAuth
//	}
func EmailFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}

// WithClaims returns ctx carrying c. Handler tests use it in place of the
// middleware.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="sprintium"`)
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":"unauthorized","message":%q}`+"\n", message)
}
