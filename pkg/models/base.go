package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every storefront entity. UUID is the external identifier
// and is never rewritten after insert; IsActive is the soft-delete flag.
type Base struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"size:36;uniqueIndex;not null;<-:create" json:"uuid"`
	IsActive bool      `gorm:"not null;default:true" json:"is_active"`
}

// BeforeCreate assigns the external identifier. New records always start active.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	b.UUID = uuid.New()
	b.IsActive = true
	return nil
}

// ResetIdentity clears the keys so the database assigns them on insert.
func (b *Base) ResetIdentity() {
	b.ID = 0
	b.UUID = uuid.Nil
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&UserAddress{},
		&Permission{},
		&Group{},
		&User{},
		&Organization{},
		&ProductStatus{},
		&Hashtag{},
		&Product{},
		&ProductImage{},
		&SalesHistory{},
		&Cart{},
	}
}
