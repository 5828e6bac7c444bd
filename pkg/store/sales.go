package store

import (
	"context"
	"errors"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entitySale = "sale"
	entityCart = "cart"
)

// CreateSale inserts a sales record; Date is assigned here and never updated.
func (s *Store) CreateSale(ctx context.Context, sale *models.SalesHistory) error {
	if err := models.Validate(sale); err != nil {
		return err
	}
	var product *models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product = &models.Product{}
		if err := tx.Where("id = ?", sale.ProductID).First(product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.MissingReference("product_id")
			}
			return err
		}
		return insert(tx, sale)
	})
	if err != nil {
		return apperr.Classify(err, entitySale)
	}
	s.invalidateSales(ctx, product.UUID)
	s.record("create", entitySale, sale.UUID, map[string]interface{}{
		"product_id": sale.ProductID,
		"quantity":   sale.Quantity,
	})
	return nil
}

// RecordSale records quantity units of the product as sold now.
func (s *Store) RecordSale(ctx context.Context, productID uint, quantity int) (*models.SalesHistory, error) {
	sale := &models.SalesHistory{ProductID: productID, Quantity: quantity}
	if err := s.CreateSale(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id uuid.UUID) (*models.SalesHistory, error) {
	return findByUUID[models.SalesHistory](ctx, s.db, entitySale, id, "Product")
}

func (s *Store) ListSales(ctx context.Context, p Page) ([]models.SalesHistory, int64, error) {
	return list[models.SalesHistory](ctx, s.db, entitySale, p)
}

// UpdateSale changes the quantity of a sale. Product and date are fixed.
func (s *Store) UpdateSale(ctx context.Context, id uuid.UUID, sale *models.SalesHistory) error {
	var productUUID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.SalesHistory](ctx, tx, entitySale, id, "Product")
		if err != nil {
			return err
		}
		sale.Base = existing.Base
		sale.ProductID = existing.ProductID
		sale.Date = existing.Date
		if err := models.Validate(sale); err != nil {
			return err
		}
		if existing.Product != nil {
			productUUID = existing.Product.UUID
		}
		return save(tx, sale, "quantity")
	})
	if err != nil {
		return apperr.Classify(err, entitySale)
	}
	s.invalidateSales(ctx, productUUID)
	s.record("update", entitySale, id, map[string]interface{}{"quantity": sale.Quantity})
	return nil
}

func (s *Store) DeleteSale(ctx context.Context, id uuid.UUID) error {
	var productUUID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := findByUUID[models.SalesHistory](ctx, tx, entitySale, id, "Product")
		if err != nil {
			return err
		}
		if sale.Product != nil {
			productUUID = sale.Product.UUID
		}
		return tx.Delete(sale).Error
	})
	if err != nil {
		return apperr.Classify(err, entitySale)
	}
	s.invalidateSales(ctx, productUUID)
	s.record("delete", entitySale, id, nil)
	return nil
}

// SalesTotal sums the quantities sold of a product.
func (s *Store) SalesTotal(ctx context.Context, productID uuid.UUID) (int64, error) {
	p, err := findByUUID[models.Product](ctx, s.db, entityProduct, productID)
	if err != nil {
		return 0, err
	}

	var version int64
	cacheable := false
	if s.cache != nil {
		total, v, ok, err := s.cache.GetSalesTotal(ctx, productID)
		if err != nil {
			s.logger.Warn("Sales cache read failed", zap.String("product", productID.String()), zap.Error(err))
		} else if ok {
			return total, nil
		} else {
			version, cacheable = v, true
		}
	}

	var total int64
	err = s.db.WithContext(ctx).Model(&models.SalesHistory{}).
		Where("product_id = ?", p.ID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, apperr.Classify(err, entitySale)
	}

	if cacheable {
		if err := s.cache.SetSalesTotal(ctx, productID, version, total); err != nil {
			s.logger.Warn("Sales cache write failed", zap.String("product", productID.String()), zap.Error(err))
		}
	}
	return total, nil
}

func (s *Store) invalidateSales(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil || productID == uuid.Nil {
		return
	}
	if err := s.cache.InvalidateSalesTotal(ctx, productID); err != nil {
		s.logger.Warn("Sales cache invalidation failed", zap.String("product", productID.String()), zap.Error(err))
	}
}

func checkCartRefs(tx *gorm.DB, c *models.Cart) error {
	if err := requireRow(tx, &models.User{}, "user_id", c.UserID); err != nil {
		return err
	}
	return requireRow(tx, &models.Product{}, "product_id", c.ProductID)
}

// CreateCart inserts a cart line. A second line for the same user and product
// is a conflict.
func (s *Store) CreateCart(ctx context.Context, c *models.Cart) error {
	if err := models.Validate(c); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCartRefs(tx, c); err != nil {
			return err
		}
		return insert(tx, c)
	})
	if err != nil {
		return apperr.Classify(err, entityCart)
	}
	s.record("create", entityCart, c.UUID, map[string]interface{}{
		"user_id":          c.UserID,
		"product_id":       c.ProductID,
		"product_quantity": c.ProductQuantity,
	})
	return nil
}

func (s *Store) AddToCart(ctx context.Context, userID, productID uint, quantity int) (*models.Cart, error) {
	c := &models.Cart{UserID: userID, ProductID: productID, ProductQuantity: quantity}
	if err := s.CreateCart(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCart returns the cart lines of a user with their products.
func (s *Store) ListCart(ctx context.Context, userID uuid.UUID) ([]models.Cart, error) {
	u, err := findByUUID[models.User](ctx, s.db, entityUser, userID)
	if err != nil {
		return nil, err
	}
	lines := make([]models.Cart, 0)
	if err := s.db.WithContext(ctx).Preload("Product").Where("user_id = ?", u.ID).Order("id").Find(&lines).Error; err != nil {
		return nil, apperr.Classify(err, entityCart)
	}
	return lines, nil
}

func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return findByUUID[models.Cart](ctx, s.db, entityCart, id, "User", "Product")
}

func (s *Store) ListCarts(ctx context.Context, p Page) ([]models.Cart, int64, error) {
	return list[models.Cart](ctx, s.db, entityCart, p)
}

func (s *Store) UpdateCart(ctx context.Context, id uuid.UUID, c *models.Cart) error {
	if err := models.Validate(c); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByUUID[models.Cart](ctx, tx, entityCart, id)
		if err != nil {
			return err
		}
		c.Base = existing.Base
		if err := checkCartRefs(tx, c); err != nil {
			return err
		}
		return save(tx, c, "user_id", "product_id", "product_quantity")
	})
	if err != nil {
		return apperr.Classify(err, entityCart)
	}
	s.record("update", entityCart, id, map[string]interface{}{"product_quantity": c.ProductQuantity})
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := findByUUID[models.Cart](ctx, tx, entityCart, id)
		if err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
	if err != nil {
		return apperr.Classify(err, entityCart)
	}
	s.record("delete", entityCart, id, nil)
	return nil
}
