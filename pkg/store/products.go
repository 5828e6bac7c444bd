package store

import (
	"context"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	entityOrganization = "organization"
	entityStatus       = "product status"
	entityHashtag      = "hashtag"
	entityProduct      = "product"
)

var productColumns = []string{
	"organization_id", "name", "org_price", "selling_price", "discount",
	"description", "rating", "status_id",
}

// CreateOrganization inserts o. A user owns at most one organization.
func (s *Store) CreateOrganization(ctx context.Context, o *models.Organization) error {
	if err := models.Validate(o); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.User{}, "user_id", o.UserID); err != nil {
			return err
		}
		return insert(tx, o)
	})
	if err != nil {
		return apperr.Classify(err, entityOrganization)
	}
	s.record("create", entityOrganization, o.UUID, map[string]interface{}{"name": o.Name, "user_id": o.UserID})
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return findByUUID[models.Organization](ctx, s.db, entityOrganization, id, "User")
}

func (s *Store) ListOrganizations(ctx context.Context, p Page) ([]models.Organization, int64, error) {
	return list[models.Organization](ctx, s.db, entityOrganization, p)
}

func (s *Store) UpdateOrganization(ctx context.Context, id uuid.UUID, o *models.Organization) error {
	if err := models.Validate(o); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.Organization](ctx, tx, entityOrganization, id)
		if err != nil {
			return err
		}
		o.Base = existing.Base
		if err := requireRow(tx, &models.User{}, "user_id", o.UserID); err != nil {
			return err
		}
		return save(tx, o, "name", "user_id")
	})
	if err != nil {
		return apperr.Classify(err, entityOrganization)
	}
	s.record("update", entityOrganization, id, map[string]interface{}{"name": o.Name})
	return nil
}

// DeleteOrganization removes the organization and every product it owns.
func (s *Store) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := findByUUID[models.Organization](ctx, tx, entityOrganization, id)
		if err != nil {
			return err
		}
		return deleteOrganization(tx, o.ID)
	})
	if err != nil {
		return apperr.Classify(err, entityOrganization)
	}
	s.record("delete", entityOrganization, id, nil)
	return nil
}

func (s *Store) CreateStatus(ctx context.Context, st *models.ProductStatus) error {
	if err := models.Validate(st); err != nil {
		return err
	}
	if err := insert(s.db.WithContext(ctx), st); err != nil {
		return apperr.Classify(err, entityStatus)
	}
	s.record("create", entityStatus, st.UUID, map[string]interface{}{"status": st.Status})
	return nil
}

// EnsureStatuses creates one status row per code that has none yet.
func (s *Store) EnsureStatuses(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, code := range models.StatusCodes {
			if _, err := statusByCode(tx, code, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// StatusByCode returns the first status row carrying code.
func (s *Store) StatusByCode(ctx context.Context, code models.StatusCode) (*models.ProductStatus, error) {
	if err := models.Validate(&models.ProductStatus{Status: code}); err != nil {
		return nil, err
	}
	st, err := statusByCode(s.db.WithContext(ctx), code, false)
	if err != nil {
		return nil, apperr.Classify(err, entityStatus)
	}
	return st, nil
}

func statusByCode(tx *gorm.DB, code models.StatusCode, create bool) (*models.ProductStatus, error) {
	var statuses []models.ProductStatus
	if err := tx.Where("status = ?", code).Order("id").Limit(1).Find(&statuses).Error; err != nil {
		return nil, err
	}
	if len(statuses) > 0 {
		return &statuses[0], nil
	}
	if !create {
		return nil, gorm.ErrRecordNotFound
	}
	st := &models.ProductStatus{Status: code}
	if err := insert(tx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) GetStatus(ctx context.Context, id uuid.UUID) (*models.ProductStatus, error) {
	return findByUUID[models.ProductStatus](ctx, s.db, entityStatus, id)
}

func (s *Store) ListStatuses(ctx context.Context, p Page) ([]models.ProductStatus, int64, error) {
	return list[models.ProductStatus](ctx, s.db, entityStatus, p)
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, st *models.ProductStatus) error {
	if err := models.Validate(st); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.ProductStatus](ctx, tx, entityStatus, id)
		if err != nil {
			return err
		}
		st.Base = existing.Base
		return save(tx, st, "status")
	})
	if err != nil {
		return apperr.Classify(err, entityStatus)
	}
	s.record("update", entityStatus, id, map[string]interface{}{"status": st.Status})
	return nil
}

// DeleteStatus removes the status and every product carrying it.
func (s *Store) DeleteStatus(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := findByUUID[models.ProductStatus](ctx, tx, entityStatus, id)
		if err != nil {
			return err
		}
		ids, err := productIDsWhere(tx, "status_id", st.ID)
		if err != nil {
			return err
		}
		if err := deleteProducts(tx, ids); err != nil {
			return err
		}
		return tx.Delete(st).Error
	})
	if err != nil {
		return apperr.Classify(err, entityStatus)
	}
	s.record("delete", entityStatus, id, nil)
	return nil
}

func (s *Store) CreateHashtag(ctx context.Context, h *models.Hashtag) error {
	if err := models.Validate(h); err != nil {
		return err
	}
	if err := insert(s.db.WithContext(ctx), h); err != nil {
		return apperr.Classify(err, entityHashtag)
	}
	s.record("create", entityHashtag, h.UUID, map[string]interface{}{"name": h.Name})
	return nil
}

func (s *Store) GetHashtag(ctx context.Context, id uuid.UUID) (*models.Hashtag, error) {
	return findByUUID[models.Hashtag](ctx, s.db, entityHashtag, id)
}

func (s *Store) ListHashtags(ctx context.Context, p Page) ([]models.Hashtag, int64, error) {
	return list[models.Hashtag](ctx, s.db, entityHashtag, p)
}

func (s *Store) UpdateHashtag(ctx context.Context, id uuid.UUID, h *models.Hashtag) error {
	if err := models.Validate(h); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.Hashtag](ctx, tx, entityHashtag, id)
		if err != nil {
			return err
		}
		h.Base = existing.Base
		return save(tx, h, "name")
	})
	if err != nil {
		return apperr.Classify(err, entityHashtag)
	}
	s.record("update", entityHashtag, id, map[string]interface{}{"name": h.Name})
	return nil
}

func (s *Store) DeleteHashtag(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h, err := findByUUID[models.Hashtag](ctx, tx, entityHashtag, id)
		if err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM product_hashtags WHERE hashtag_id = ?", h.ID).Error; err != nil {
			return err
		}
		return tx.Delete(h).Error
	})
	if err != nil {
		return apperr.Classify(err, entityHashtag)
	}
	s.record("delete", entityHashtag, id, nil)
	return nil
}

// prepareProduct resolves a status code and checks every reference of p.
func prepareProduct(tx *gorm.DB, p *models.Product) error {
	if p.StatusCode != "" {
		st, err := statusByCode(tx, p.StatusCode, true)
		if err != nil {
			return err
		}
		p.StatusID = st.ID
	}
	if err := requireRow(tx, &models.Organization{}, "organization_id", p.OrganizationID); err != nil {
		return err
	}
	return requireRow(tx, &models.ProductStatus{}, "status_id", p.StatusID)
}

// CreateProduct inserts p and links the hashtags listed in p.HashtagIDs.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := models.Validate(p); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := prepareProduct(tx, p); err != nil {
			return err
		}
		tags, err := requireRows(tx, &models.Hashtag{}, "hashtag_ids", p.HashtagIDs)
		if err != nil {
			return err
		}
		if err := insert(tx, p); err != nil {
			return err
		}
		return replaceLinks(tx, "product_hashtags", "product_id", p.ID, "hashtag_id", tags)
	})
	if err != nil {
		return apperr.Classify(err, entityProduct)
	}
	s.record("create", entityProduct, p.UUID, map[string]interface{}{
		"name":            p.Name,
		"organization_id": p.OrganizationID,
		"status_id":       p.StatusID,
	})
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return findByUUID[models.Product](ctx, s.db, entityProduct, id, "Status", "Hashtags")
}

func (s *Store) ListProducts(ctx context.Context, p Page) ([]models.Product, int64, error) {
	return list[models.Product](ctx, s.db, entityProduct, p, "Status")
}

// UpdateProduct overwrites the editable columns of the product. The hashtag
// set is replaced only when p.HashtagIDs is non-nil.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, p *models.Product) error {
	if err := models.Validate(p); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.Product](ctx, tx, entityProduct, id)
		if err != nil {
			return err
		}
		p.Base = existing.Base
		if err := prepareProduct(tx, p); err != nil {
			return err
		}
		if err := save(tx, p, productColumns...); err != nil {
			return err
		}
		if p.HashtagIDs == nil {
			return nil
		}
		tags, err := requireRows(tx, &models.Hashtag{}, "hashtag_ids", p.HashtagIDs)
		if err != nil {
			return err
		}
		return replaceLinks(tx, "product_hashtags", "product_id", p.ID, "hashtag_id", tags)
	})
	if err != nil {
		return apperr.Classify(err, entityProduct)
	}
	s.record("update", entityProduct, id, map[string]interface{}{"name": p.Name})
	return nil
}

// DeleteProduct removes the product with its sales and cart lines.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByUUID[models.Product](ctx, tx, entityProduct, id)
		if err != nil {
			return err
		}
		return deleteProducts(tx, []uint{p.ID})
	})
	if err != nil {
		return apperr.Classify(err, entityProduct)
	}
	s.invalidateSales(ctx, id)
	s.record("delete", entityProduct, id, nil)
	return nil
}
