package store

import (
	"context"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entityImage = "product image"

// lockProducts checks that every product exists and, where the dialect has row
// locks, holds them until the transaction ends. Concurrent image creation for
// the same product therefore runs the main-image check one at a time.
func lockProducts(tx *gorm.DB, ids []uint) ([]uint, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return unique, nil
	}
	q := tx.Model(&models.Product{})
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var found []uint
	if err := q.Where("id IN ?", unique).Order("id").Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	if len(found) != len(unique) {
		return nil, apperr.MissingReference("product_ids")
	}
	return unique, nil
}

// promoteMainImage is the post-create hook for images: when no other image of
// the associated products is main, img becomes main. An image without
// products is always promoted.
func promoteMainImage(tx *gorm.DB, img *models.ProductImage, productIDs []uint) (bool, error) {
	if img.IsMain {
		return false, nil
	}
	if len(productIDs) > 0 {
		var count int64
		err := tx.Model(&models.ProductImage{}).
			Joins("JOIN product_image_products ON product_image_products.product_image_id = product_images.id").
			Where("product_image_products.product_id IN ?", productIDs).
			Where("product_images.is_main = ? AND product_images.id <> ?", true, img.ID).
			Count(&count).Error
		if err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
	}
	if err := tx.Model(img).Update("is_main", true).Error; err != nil {
		return false, err
	}
	img.IsMain = true
	return true, nil
}

// CreateProductImage inserts img, attaches it to img.ProductIDs and runs the
// main-image hook, all in one transaction.
func (s *Store) CreateProductImage(ctx context.Context, img *models.ProductImage) error {
	if err := models.Validate(img); err != nil {
		return err
	}
	var promoted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := lockProducts(tx, img.ProductIDs)
		if err != nil {
			return err
		}
		if err := insert(tx, img); err != nil {
			return err
		}
		if err := replaceLinks(tx, "product_image_products", "product_image_id", img.ID, "product_id", ids); err != nil {
			return err
		}
		promoted, err = promoteMainImage(tx, img, ids)
		return err
	})
	if err != nil {
		return apperr.Classify(err, entityImage)
	}

	if promoted {
		s.logger.Debug("Promoted main image",
			zap.String("image", img.UUID.String()),
			zap.Int("products", len(img.ProductIDs)))
	}
	s.record("create", entityImage, img.UUID, map[string]interface{}{
		"image":       img.Image,
		"is_main":     img.IsMain,
		"product_ids": img.ProductIDs,
	})
	return nil
}

func (s *Store) GetProductImage(ctx context.Context, id uuid.UUID) (*models.ProductImage, error) {
	return findByUUID[models.ProductImage](ctx, s.db, entityImage, id, "Products")
}

func (s *Store) ListProductImages(ctx context.Context, p Page) ([]models.ProductImage, int64, error) {
	return list[models.ProductImage](ctx, s.db, entityImage, p, "Products")
}

// ImagesForProduct lists the images attached to a product, main image first.
func (s *Store) ImagesForProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductImage, error) {
	p, err := findByUUID[models.Product](ctx, s.db, entityProduct, productID)
	if err != nil {
		return nil, err
	}
	images := make([]models.ProductImage, 0)
	err = s.db.WithContext(ctx).
		Joins("JOIN product_image_products ON product_image_products.product_image_id = product_images.id").
		Where("product_image_products.product_id = ?", p.ID).
		Order("product_images.is_main DESC, product_images.id").
		Find(&images).Error
	if err != nil {
		return nil, apperr.Classify(err, entityImage)
	}
	return images, nil
}

// UpdateProductImage overwrites image and is_main. The product set is replaced
// only when img.ProductIDs is non-nil; the main-image hook does not run again.
func (s *Store) UpdateProductImage(ctx context.Context, id uuid.UUID, img *models.ProductImage) error {
	if err := models.Validate(img); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.ProductImage](ctx, tx, entityImage, id)
		if err != nil {
			return err
		}
		img.Base = existing.Base
		if err := save(tx, img, "image", "is_main"); err != nil {
			return err
		}
		if img.ProductIDs == nil {
			return nil
		}
		ids, err := lockProducts(tx, img.ProductIDs)
		if err != nil {
			return err
		}
		return replaceLinks(tx, "product_image_products", "product_image_id", img.ID, "product_id", ids)
	})
	if err != nil {
		return apperr.Classify(err, entityImage)
	}
	s.record("update", entityImage, id, map[string]interface{}{"is_main": img.IsMain})
	return nil
}

// DetachImage removes the image from one product. Remaining images are not
// re-evaluated for main status.
func (s *Store) DetachImage(ctx context.Context, imageID uuid.UUID, productID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		img, err := findByUUID[models.ProductImage](ctx, tx, entityImage, imageID)
		if err != nil {
			return err
		}
		return tx.Exec("DELETE FROM product_image_products WHERE product_image_id = ? AND product_id = ?",
			img.ID, productID).Error
	})
	if err != nil {
		return apperr.Classify(err, entityImage)
	}
	s.record("update", entityImage, imageID, map[string]interface{}{"detached_product_id": productID})
	return nil
}

func (s *Store) DeleteProductImage(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		img, err := findByUUID[models.ProductImage](ctx, tx, entityImage, id)
		if err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM product_image_products WHERE product_image_id = ?", img.ID).Error; err != nil {
			return err
		}
		return tx.Delete(img).Error
	})
	if err != nil {
		return apperr.Classify(err, entityImage)
	}
	s.record("delete", entityImage, id, nil)
	return nil
}
