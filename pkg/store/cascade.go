package store

import (
	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

// The helpers below remove dependents before their parent row so that deletes
// behave the same on every dialect, whether or not it enforces the ON DELETE
// clauses declared on the models.

// deleteProducts removes products with their sales, cart lines and join rows.
// Users whose browsing history or reviewed product points at one of them are
// deleted as well, after the products are gone.
func deleteProducts(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var userIDs []uint
	err := tx.Model(&models.User{}).
		Where("browsing_history_id IN ? OR reviewed_product_id IN ?", ids, ids).
		Pluck("id", &userIDs).Error
	if err != nil {
		return err
	}
	steps := []func() error{
		func() error { return tx.Where("product_id IN ?", ids).Delete(&models.SalesHistory{}).Error },
		func() error { return tx.Where("product_id IN ?", ids).Delete(&models.Cart{}).Error },
		func() error { return tx.Exec("DELETE FROM product_hashtags WHERE product_id IN ?", ids).Error },
		func() error { return tx.Exec("DELETE FROM product_image_products WHERE product_id IN ?", ids).Error },
		// cleared first so the user deletes below never see these products again
		func() error {
			return tx.Model(&models.User{}).Where("browsing_history_id IN ?", ids).
				Update("browsing_history_id", nil).Error
		},
		func() error {
			return tx.Model(&models.User{}).Where("reviewed_product_id IN ?", ids).
				Update("reviewed_product_id", nil).Error
		},
		func() error { return tx.Where("id IN ?", ids).Delete(&models.Product{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return deleteUsers(tx, userIDs)
}

func productIDsWhere(tx *gorm.DB, column string, value uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.Product{}).Where(column+" = ?", value).Pluck("id", &ids).Error
	return ids, err
}

func deleteOrganization(tx *gorm.DB, orgID uint) error {
	ids, err := productIDsWhere(tx, "organization_id", orgID)
	if err != nil {
		return err
	}
	if err := deleteProducts(tx, ids); err != nil {
		return err
	}
	return tx.Where("id = ?", orgID).Delete(&models.Organization{}).Error
}

func deleteUsers(tx *gorm.DB, ids []uint) error {
	for _, id := range ids {
		if err := deleteUser(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// deleteUser removes a user with their cart, organization and group links.
// Deleting a user that is already gone is a no-op.
func deleteUser(tx *gorm.DB, userID uint) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.Cart{}).Error; err != nil {
		return err
	}
	var orgIDs []uint
	if err := tx.Model(&models.Organization{}).Where("user_id = ?", userID).Pluck("id", &orgIDs).Error; err != nil {
		return err
	}
	for _, id := range orgIDs {
		if err := deleteOrganization(tx, id); err != nil {
			return err
		}
	}
	if err := tx.Exec("DELETE FROM user_groups WHERE user_id = ?", userID).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM user_permissions WHERE user_id = ?", userID).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", userID).Delete(&models.User{}).Error
}
