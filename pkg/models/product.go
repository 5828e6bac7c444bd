package models

import (
	"fmt"
	"strings"
)

type Hashtag struct {
	Base
	Name string `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
}

func (Hashtag) TableName() string {
	return "hashtags"
}

func (h Hashtag) String() string {
	return h.Name
}

type Organization struct {
	Base
	Name   string `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
	UserID uint   `gorm:"uniqueIndex;not null" json:"user_id" validate:"required"`
	User   *User  `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty" validate:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

func (o Organization) String() string {
	return o.Name
}

// StatusCode enumerates product availability.
type StatusCode string

const (
	StatusAvailable    StatusCode = "available"
	StatusOutOfStock   StatusCode = "out_of_stock"
	StatusDiscontinued StatusCode = "discontinued"
)

// StatusCodes lists the valid codes in display order.
var StatusCodes = []StatusCode{StatusAvailable, StatusOutOfStock, StatusDiscontinued}

// Label returns the human readable form of the code.
func (c StatusCode) Label() string {
	switch c {
	case StatusAvailable:
		return "Available"
	case StatusOutOfStock:
		return "Out of Stock"
	case StatusDiscontinued:
		return "Discontinued"
	}
	return string(c)
}

type ProductStatus struct {
	Base
	Status StatusCode `gorm:"size:30;not null" json:"status" validate:"required,oneof=available out_of_stock discontinued"`
}

func (ProductStatus) TableName() string {
	return "product_statuses"
}

func (s ProductStatus) String() string {
	return string(s.Status)
}

type Product struct {
	Base
	OrganizationID uint           `gorm:"index;not null" json:"organization_id" validate:"required"`
	Organization   *Organization  `gorm:"constraint:OnDelete:CASCADE" json:"organization,omitempty" validate:"-"`
	Name           string         `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
	OrgPrice       float64        `gorm:"not null" json:"org_price"`
	SellingPrice   float64        `gorm:"not null" json:"selling_price"`
	Discount       float64        `gorm:"not null;default:0" json:"discount"`
	Description    string         `gorm:"type:text" json:"description"`
	Rating         float64        `gorm:"not null;default:0" json:"rating" validate:"gte=0,lte=5"`
	StatusID       uint           `gorm:"index;not null" json:"status_id" validate:"required_without=StatusCode"`
	Status         *ProductStatus `gorm:"constraint:OnDelete:CASCADE" json:"status,omitempty" validate:"-"`
	Hashtags       []Hashtag      `gorm:"many2many:product_hashtags" json:"hashtags,omitempty" validate:"-"`

	// StatusCode may be given instead of StatusID; it resolves to the matching
	// ProductStatus row.
	StatusCode StatusCode `gorm:"-" json:"status_code,omitempty" validate:"omitempty,oneof=available out_of_stock discontinued"`
	// HashtagIDs replaces the hashtag set on create and update when non-nil.
	HashtagIDs []uint `gorm:"-" json:"hashtag_ids,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

func (p Product) String() string {
	return p.Name
}

// ProductImage references a stored image. A single image may belong to several
// products; IsMain marks the representative image for its product set.
type ProductImage struct {
	Base
	Image    string    `gorm:"size:255;not null" json:"image" validate:"required,max=255"`
	IsMain   bool      `gorm:"not null;default:false" json:"is_main"`
	Products []Product `gorm:"many2many:product_image_products" json:"products,omitempty" validate:"-"`

	// ProductIDs sets the product association on create and update when non-nil.
	ProductIDs []uint `gorm:"-" json:"product_ids,omitempty"`
}

func (ProductImage) TableName() string {
	return "product_images"
}

func (i ProductImage) String() string {
	names := make([]string, 0, len(i.Products))
	for _, p := range i.Products {
		names = append(names, p.Name)
	}
	return fmt.Sprintf("Image for %s", strings.Join(names, ", "))
}
