package rbac

import "github.com/Batpurev0828/qbtusul/internal/auth"

const (
	PermTestViewFull   = "test:view-full"
	PermTestCreate     = "test:create"
	PermTestUpdate     = "test:update"
	PermTestDelete     = "test:delete"
	PermAttemptCreate  = "attempt:create"
	PermAttemptViewOwn = "attempt:view-own"
	PermAttemptViewAll = "attempt:view-all"
	PermAssetUpload    = "asset:upload"
	PermEventsView     = "events:view"
)

// DefaultPolicy grants users what a test taker needs; admins get everything.
// Anonymous callers have no role and only reach unguarded routes.
var DefaultPolicy = Policy{
	auth.RoleUser: {
		PermAttemptCreate,
		PermAttemptViewOwn,
	},
	auth.RoleAdmin: {"*"},
}
