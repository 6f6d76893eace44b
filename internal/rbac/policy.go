// Package rbac maps account roles to permissions and guards routes with them.
package rbac

import (
	"strings"

	"github.com/Batpurev0828/qbtusul/internal/auth"
)

// Policy lists the grants of each role. A grant ending in "*" matches by
// prefix: "test:*" covers every test permission and "*" covers all of them.
type Policy map[string][]string

// Allows reports whether id is signed in and its role holds at least one of
// perms.
func (p Policy) Allows(id auth.Identity, perms ...string) bool {
	if !id.Authenticated() {
		return false
	}
	for _, grant := range p[id.Role] {
		prefix, wildcard := strings.CutSuffix(grant, "*")
		for _, perm := range perms {
			if grant == perm || (wildcard && strings.HasPrefix(perm, prefix)) {
				return true
			}
		}
	}
	return false
}
