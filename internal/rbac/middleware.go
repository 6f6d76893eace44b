package rbac

import (
	"net/http"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/auth"
)

// Can reports whether id holds perm under DefaultPolicy.
func Can(id auth.Identity, perm string) bool {
	return DefaultPolicy.Allows(id, perm)
}

// Require enforces a single permission: 401 for anonymous callers, 403 when
// the role lacks it.
func Require(perm string) func(http.Handler) http.Handler {
	return DefaultPolicy.Guard(perm)
}

// RequireAny lets the request through when the role has any of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return DefaultPolicy.Guard(perms...)
}

// Guard is the middleware form of Allows.
func (p Policy) Guard(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.IdentityFromContext(r.Context())
			switch {
			case !id.Authenticated():
				apierr.Write(w, auth.ErrUnauthorized)
			case !p.Allows(id, perms...):
				apierr.Write(w, auth.ErrForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
