package service

import (
	"fmt"
	"strings"

	"github.com/whispernet/warden/core"
)

// Check is one authorization predicate over a verified identity. Checks are
// independent and order-insensitive; a nil result allows, core.ErrForbidden
// denies.
type Check func(core.Identity) error

// RequireRole allows identities holding any of the given roles.
func RequireRole(roles ...string) Check {
	return func(id core.Identity) error {
		if !id.HasRole(roles...) {
			return fmt.Errorf("%w: requires role %s", core.ErrForbidden, strings.Join(roles, " or "))
		}
		return nil
	}
}

// RequirePermission allows identities holding all of the given permissions.
func RequirePermission(perms ...string) Check {
	return func(id core.Identity) error {
		if !id.HasPermission(perms...) {
			return fmt.Errorf("%w: requires permission %s", core.ErrForbidden, strings.Join(perms, ", "))
		}
		return nil
	}
}

// RequireEntitlement allows identities carrying the given subscription flag.
func RequireEntitlement(flag core.Entitlement) Check {
	return func(id core.Identity) error {
		if !id.Entitled(flag) {
			return fmt.Errorf("%w: %s subscription required", core.ErrForbidden, flag)
		}
		return nil
	}
}

// Authorize applies checks as a logical AND, short-circuiting on the first
// failure.
func Authorize(id core.Identity, checks ...Check) error {
	for _, check := range checks {
		if err := check(id); err != nil {
			return err
		}
	}
	return nil
}
