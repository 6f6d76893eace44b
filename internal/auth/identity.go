package auth

import (
	"context"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrUnauthorized = apierr.New(apierr.Unauthorized, "unauthorized")
	ErrForbidden    = apierr.New(apierr.Forbidden, "forbidden")
)

// Identity is who is making a request. The zero value is anonymous.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (i Identity) Authenticated() bool { return i.UserID != "" }

// IsAdmin is the only admin predicate in the system.
func (i Identity) IsAdmin() bool { return i.Authenticated() && i.Role == RoleAdmin }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the anonymous Identity when none is attached.
func IdentityFromContext(ctx context.Context) Identity {
	if v, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return v
	}
	return Identity{}
}
