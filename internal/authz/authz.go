// Package authz holds the authenticated principal and the role predicates
// evaluated against it. Rules are plain functions so they can be tested
// without an HTTP harness; Guard adapts them to Fiber.
package authz

import (
	"strings"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/identity"
)

// Principal is the authenticated caller resolved by the auth middleware.
type Principal struct {
	User  identity.User
	Token string
}

// Rule accepts or rejects a principal. A nil error means allowed.
type Rule func(Principal) error

// RequireAdmin allows administrators only.
func RequireAdmin(p Principal) error {
	if !p.User.IsAdmin {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}

// RequireInstitution allows institution accounts only.
func RequireInstitution(p Principal) error {
	if p.User.UserType != identity.UserTypeInstitution {
		return apperr.Forbidden("Institution access required")
	}
	return nil
}

// RequireVerifiedInstitution allows verified institution accounts only.
func RequireVerifiedInstitution(p Principal) error {
	if p.User.UserType != identity.UserTypeInstitution || !p.User.IsVerified {
		return apperr.Forbidden("Verified institution access required")
	}
	return nil
}

// Owns allows the principal whose wallet matches address, or any admin.
func Owns(address string) Rule {
	return func(p Principal) error {
		resource := strings.ToLower(strings.TrimSpace(address))
		if resource == "" || p.User.WalletAddress == "" {
			return apperr.InvalidInput("Invalid request parameters")
		}
		if resource != strings.ToLower(p.User.WalletAddress) && !p.User.IsAdmin {
			return apperr.Forbidden("Access denied")
		}
		return nil
	}
}

// All passes when every rule passes. The first failure is returned.
func All(rules ...Rule) Rule {
	return func(p Principal) error {
		for _, r := range rules {
			if err := r(p); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any passes when at least one rule passes. If none do, the last failure is
// returned.
func Any(rules ...Rule) Rule {
	return func(p Principal) error {
		var err error = apperr.Forbidden("Access denied")
		for _, r := range rules {
			if err = r(p); err == nil {
				return nil
			}
		}
		return err
	}
}
