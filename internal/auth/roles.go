package auth

import (
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

func RequireRole(user *models.User, allowed ...models.Role) error {
	if user == nil || !user.Role.In(allowed...) {
		return database.ErrForbidden
	}
	return nil
}

// CanManageProduct reports whether user may mutate product: admins always,
// sellers only their own.
func CanManageProduct(user *models.User, product *models.Product) bool {
	if user == nil || product == nil {
		return false
	}
	switch user.Role {
	case models.RoleAdmin:
		return true
	case models.RoleSeller:
		return product.UserID == user.ID
	}
	return false
}
