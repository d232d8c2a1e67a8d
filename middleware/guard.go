package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goGuard/jwt"
)

// TokenParser verifies an operator token. *jwt.Manager implements it.
type TokenParser interface {
	Parse(token string) (*jwt.OperatorClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by a guard.
func ClaimsFromContext(ctx context.Context) (*jwt.OperatorClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.OperatorClaims)
	return claims, ok
}

// OperatorFromContext returns the operator ID stored by a guard.
func OperatorFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.Operator(), true
}

// RequireOperator rejects requests without a valid operator token.
func RequireOperator(parser TokenParser) func(http.Handler) http.Handler {
	return Guard(parser, true)
}

// RequireWriteScope rejects requests without a valid token and answers
// 403 to read-only tokens.
func RequireWriteScope(parser TokenParser) func(http.Handler) http.Handler {
	return Guard(parser, false)
}

func Guard(parser TokenParser, allowReadOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parser == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := parser.Parse(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !allowReadOnly && claims.ReadOnly() {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
