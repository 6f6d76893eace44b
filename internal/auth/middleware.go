package auth

import (
	"net/http"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
)

// Authenticate attaches the caller's Identity when a valid token is present,
// from the Authorization header or the session cookie. It never rejects; an
// invalid token is simply anonymous. The role is re-read from the user store
// so a demoted admin loses access before the token expires.
func Authenticate(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := tokenFromRequest(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := s.ParseToken(tok)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			id = s.resolveRole(r.Context(), id)
			if !id.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFromContext(r.Context()).Authenticated() {
			apierr.Write(w, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
