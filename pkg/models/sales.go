package models

import (
	"fmt"
	"time"
)

// SalesHistory records one sale. Date is assigned by the store at insert and
// cannot be changed afterwards.
type SalesHistory struct {
	Base
	ProductID uint      `gorm:"index;not null" json:"product_id" validate:"required"`
	Product   *Product  `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty" validate:"-"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity" validate:"gte=1"`
	Date      time.Time `gorm:"autoCreateTime;<-:create" json:"date"`
}

func (SalesHistory) TableName() string {
	return "sales_history"
}

func (s SalesHistory) String() string {
	name := ""
	if s.Product != nil {
		name = s.Product.Name
	}
	return fmt.Sprintf("Sale of %s (Quantity: %d)", name, s.Quantity)
}

// Cart is one line of a user's cart; a user holds at most one line per product.
type Cart struct {
	Base
	UserID          uint     `gorm:"uniqueIndex:idx_carts_user_product;not null" json:"user_id" validate:"required"`
	User            *User    `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty" validate:"-"`
	ProductID       uint     `gorm:"uniqueIndex:idx_carts_user_product;not null" json:"product_id" validate:"required"`
	Product         *Product `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty" validate:"-"`
	ProductQuantity int      `gorm:"not null" json:"product_quantity"`
}

func (Cart) TableName() string {
	return "carts"
}

func (c Cart) String() string {
	var user, product string
	if c.User != nil {
		user = c.User.Username
	}
	if c.Product != nil {
		product = c.Product.Name
	}
	return fmt.Sprintf("Cart for %s with %s", user, product)
}
