package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-account-api/internal/application/auth"
	"github.com/go-account-api/internal/domain"
)

type contextKey string

const accountKey contextKey = "account"

type authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)
}

// BasicAuth resolves the Basic credentials of every request to an account
// and injects it into the context.
func BasicAuth(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}
			account, err := a.Authenticate(r.Context(), email, password)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					unauthorized(w)
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

// RequireVerified rejects authenticated accounts whose email is not yet verified.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, _ := AccountFromContext(r.Context())
		if err := auth.RequireVerified(account); err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				writeJSONError(w, http.StatusForbidden, "account is not verified")
				return
			}
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="accounts", charset="UTF-8"`)
	writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
}

// WithAccount returns a copy of ctx carrying account.
func WithAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext extracts the authenticated account from the request context.
func AccountFromContext(ctx context.Context) (*domain.Account, bool) {
	a, ok := ctx.Value(accountKey).(*domain.Account)
	return a, ok && a != nil
}
