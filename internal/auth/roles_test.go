package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/learning-api/internal/domain"
)

func TestAuthorize(t *testing.T) {
	all := []domain.Role{domain.RoleUser, domain.RoleStaff, domain.RoleAdmin}
	sets := []domain.RoleSet{
		domain.Roles(),
		domain.Roles(domain.RoleAdmin),
		domain.Roles(domain.RoleAdmin, domain.RoleStaff),
		domain.Roles(domain.RoleUser),
		domain.Roles(all...),
	}

	for _, required := range sets {
		for _, role := range all {
			err := Authorize(&domain.Principal{UserID: "u", Role: role}, required)
			if len(required) == 0 || required.Has(role) {
				assert.NoError(t, err, "role %s set %v", role, required)
			} else {
				assert.ErrorIs(t, err, ErrInsufficientRole, "role %s set %v", role, required)
			}
		}
	}
}

func TestAuthorize_NoHierarchy(t *testing.T) {
	err := Authorize(&domain.Principal{Role: domain.RoleAdmin}, domain.Roles(domain.RoleStaff))
	assert.ErrorIs(t, err, ErrInsufficientRole)
}
