package auth

import (
	"errors"

	"github.com/spec-kit/learning-api/internal/domain"
)

// ErrInsufficientRole is returned when the caller's role is not accepted.
var ErrInsufficientRole = errors.New("insufficient role")

// Authorize allows the principal iff its role is in required. An empty set
// allows every principal. Membership is exact; there is no role hierarchy.
func Authorize(principal *domain.Principal, required domain.RoleSet) error {
	if len(required) == 0 {
		return nil
	}
	if principal == nil || !required.Has(principal.Role) {
		return ErrInsufficientRole
	}
	return nil
}
