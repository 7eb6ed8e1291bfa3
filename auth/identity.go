package auth

import "time"

// Identity is the authenticated caller of a probe.
type Identity struct {
	// Principal is the token subject.
	Principal string

	// Roles are taken from the configured roles claim.
	Roles []string

	// Claims contains the raw token claims.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}
