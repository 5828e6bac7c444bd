package store

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityUser    = "user"
	entityAddress = "user address"
)

var userColumns = []string{
	"username", "first_name", "last_name", "email", "is_staff", "is_superuser",
	"last_login", "balance", "address_id", "browsing_history_id", "reviewed_product_id",
}

func checkUserRefs(tx *gorm.DB, u *models.User) error {
	if u.AddressID != nil {
		if err := requireRow(tx, &models.UserAddress{}, "address_id", *u.AddressID); err != nil {
			return err
		}
	}
	if u.BrowsingHistoryID != nil {
		if err := requireRow(tx, &models.Product{}, "browsing_history_id", *u.BrowsingHistoryID); err != nil {
			return err
		}
	}
	if u.ReviewedProductID != nil {
		if err := requireRow(tx, &models.Product{}, "reviewed_product_id", *u.ReviewedProductID); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser inserts u. A RawPassword is hashed first; the username must be unique.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := models.Validate(u); err != nil {
		return err
	}
	if u.RawPassword != "" {
		if err := u.SetPassword(u.RawPassword); err != nil {
			return apperr.Validation("password", "%v", err)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUserRefs(tx, u); err != nil {
			return err
		}
		return insert(tx, u)
	})
	if err != nil {
		s.logger.Debug("Failed to create user", zap.String("username", u.Username), zap.Error(err))
		return apperr.Classify(err, entityUser)
	}

	s.record("create", entityUser, u.UUID, map[string]interface{}{"username": u.Username})
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return findByUUID[models.User](ctx, s.db, entityUser, id, "Address", "Groups", "Permissions")
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, apperr.Classify(err, entityUser)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, p Page) ([]models.User, int64, error) {
	return list[models.User](ctx, s.db, entityUser, p)
}

// UpdateUser overwrites the editable columns of the user identified by id.
// A non-empty RawPassword replaces the password hash.
func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, u *models.User) error {
	if err := models.Validate(u); err != nil {
		return err
	}
	columns := userColumns
	if u.RawPassword != "" {
		if err := u.SetPassword(u.RawPassword); err != nil {
			return apperr.Validation("password", "%v", err)
		}
		columns = append(append([]string{}, userColumns...), "password")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.User](ctx, tx, entityUser, id)
		if err != nil {
			return err
		}
		u.Base = existing.Base
		if err := checkUserRefs(tx, u); err != nil {
			return err
		}
		return save(tx, u, columns...)
	})
	if err != nil {
		return apperr.Classify(err, entityUser)
	}
	s.record("update", entityUser, id, map[string]interface{}{"username": u.Username})
	return nil
}

// DeleteUser removes the user with its cart lines and owned organization.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findByUUID[models.User](ctx, tx, entityUser, id)
		if err != nil {
			return err
		}
		return deleteUser(tx, u.ID)
	})
	if err != nil {
		return apperr.Classify(err, entityUser)
	}
	s.record("delete", entityUser, id, nil)
	return nil
}

func (s *Store) setUserProduct(ctx context.Context, id uuid.UUID, column string, productID *uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findByUUID[models.User](ctx, tx, entityUser, id)
		if err != nil {
			return err
		}
		if productID != nil {
			if err := requireRow(tx, &models.Product{}, column, *productID); err != nil {
				return err
			}
		}
		return tx.Model(u).Update(column, productID).Error
	})
	if err != nil {
		return apperr.Classify(err, entityUser)
	}
	s.record("update", entityUser, id, map[string]interface{}{column: productID})
	return nil
}

// SetBrowsingHistory points the user's browsing history at a single product;
// nil clears it.
func (s *Store) SetBrowsingHistory(ctx context.Context, id uuid.UUID, productID *uint) error {
	return s.setUserProduct(ctx, id, "browsing_history_id", productID)
}

func (s *Store) SetReviewedProduct(ctx context.Context, id uuid.UUID, productID *uint) error {
	return s.setUserProduct(ctx, id, "reviewed_product_id", productID)
}

// AdjustBalance adds delta to the user's balance and returns the new value.
// The balance has no lower bound.
func (s *Store) AdjustBalance(ctx context.Context, id uuid.UUID, delta float64) (float64, error) {
	var balance float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findByUUID[models.User](ctx, tx, entityUser, id)
		if err != nil {
			return err
		}
		if err := tx.Model(u).Update("balance", gorm.Expr("balance + ?", delta)).Error; err != nil {
			return err
		}
		if err := tx.First(u, u.ID).Error; err != nil {
			return err
		}
		balance = u.Balance
		return nil
	})
	if err != nil {
		return 0, apperr.Classify(err, entityUser)
	}
	s.record("update", entityUser, id, map[string]interface{}{"balance_delta": delta})
	return balance, nil
}

func (s *Store) CreateGroup(ctx context.Context, g *models.Group, permissionIDs []uint) error {
	if err := models.Validate(g); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := requireRows(tx, &models.Permission{}, "permission_ids", permissionIDs)
		if err != nil {
			return err
		}
		if err := insert(tx, g); err != nil {
			return err
		}
		return replaceLinks(tx, "group_permissions", "group_id", g.ID, "permission_id", ids)
	})
	return apperr.Classify(err, "group")
}

func (s *Store) CreatePermission(ctx context.Context, p *models.Permission) error {
	if err := models.Validate(p); err != nil {
		return err
	}
	return apperr.Classify(insert(s.db.WithContext(ctx), p), "permission")
}

// SetUserGroups replaces the user's group membership.
func (s *Store) SetUserGroups(ctx context.Context, id uuid.UUID, groupIDs []uint) error {
	return s.setUserLinks(ctx, id, &models.Group{}, "group_ids", "user_groups", "group_id", groupIDs)
}

// SetUserPermissions replaces the user's directly granted permissions.
func (s *Store) SetUserPermissions(ctx context.Context, id uuid.UUID, permissionIDs []uint) error {
	return s.setUserLinks(ctx, id, &models.Permission{}, "permission_ids", "user_permissions", "permission_id", permissionIDs)
}

func (s *Store) setUserLinks(ctx context.Context, id uuid.UUID, model interface{}, field, table, column string, ids []uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findByUUID[models.User](ctx, tx, entityUser, id)
		if err != nil {
			return err
		}
		unique, err := requireRows(tx, model, field, ids)
		if err != nil {
			return err
		}
		return replaceLinks(tx, table, "user_id", u.ID, column, unique)
	})
	if err != nil {
		return apperr.Classify(err, entityUser)
	}
	s.record("update", entityUser, id, map[string]interface{}{field: ids})
	return nil
}

func (s *Store) CreateAddress(ctx context.Context, a *models.UserAddress) error {
	if err := models.Validate(a); err != nil {
		return err
	}
	if err := insert(s.db.WithContext(ctx), a); err != nil {
		return apperr.Classify(err, entityAddress)
	}
	s.record("create", entityAddress, a.UUID, nil)
	return nil
}

func (s *Store) GetAddress(ctx context.Context, id uuid.UUID) (*models.UserAddress, error) {
	return findByUUID[models.UserAddress](ctx, s.db, entityAddress, id)
}

func (s *Store) ListAddresses(ctx context.Context, p Page) ([]models.UserAddress, int64, error) {
	return list[models.UserAddress](ctx, s.db, entityAddress, p)
}

func (s *Store) UpdateAddress(ctx context.Context, id uuid.UUID, a *models.UserAddress) error {
	if err := models.Validate(a); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.UserAddress](ctx, tx, entityAddress, id)
		if err != nil {
			return err
		}
		a.Base = existing.Base
		return save(tx, a, "address")
	})
	if err != nil {
		return apperr.Classify(err, entityAddress)
	}
	s.record("update", entityAddress, id, nil)
	return nil
}

// DeleteAddress removes the address together with the users living there.
func (s *Store) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findByUUID[models.UserAddress](ctx, tx, entityAddress, id)
		if err != nil {
			return err
		}
		var userIDs []uint
		if err := tx.Model(&models.User{}).Where("address_id = ?", a.ID).Pluck("id", &userIDs).Error; err != nil {
			return err
		}
		if err := deleteUsers(tx, userIDs); err != nil {
			return fmt.Errorf("failed to delete residents: %w", err)
		}
		return tx.Delete(a).Error
	})
	if err != nil {
		return apperr.Classify(err, entityAddress)
	}
	s.record("delete", entityAddress, id, nil)
	return nil
}
