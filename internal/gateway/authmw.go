package gateway

import (
	"errors"
	"net/http"

	"PuertoComercio/internal/auth"
	"PuertoComercio/pkg/kit"
)

// RequireToken rejects the request before next runs unless it carries a
// valid bearer token, so a refused call never touches its body.
func RequireToken(tokens *auth.TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteUnauthorized(w, r, "missing token")
				return
			}

			id, err := tokens.Validate(raw)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				kit.WriteUnauthorized(w, r, "token expired")
				return
			case err != nil:
				kit.WriteUnauthorized(w, r, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
