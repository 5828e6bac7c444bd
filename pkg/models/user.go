package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type UserAddress struct {
	Base
	Address string `gorm:"type:text;not null" json:"address" validate:"required"`
}

func (UserAddress) TableName() string {
	return "user_addresses"
}

func (a UserAddress) String() string {
	return a.Address
}

// User is a storefront account. Browsing history and reviewed product each hold a
// single product reference, not a log.
type User struct {
	Base
	Username    string     `gorm:"size:150;uniqueIndex;not null" json:"username" validate:"required,max=150,username"`
	FirstName   string     `gorm:"size:150" json:"first_name" validate:"max=150"`
	LastName    string     `gorm:"size:150" json:"last_name" validate:"max=150"`
	Email       string     `gorm:"size:254" json:"email" validate:"omitempty,email,max=254"`
	Password    string     `gorm:"size:128;not null" json:"-"`
	IsStaff     bool       `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool       `gorm:"not null;default:false" json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	DateJoined  time.Time  `gorm:"autoCreateTime" json:"date_joined"`
	Balance     float64    `gorm:"not null;default:0" json:"balance"`

	AddressID         *uint        `gorm:"index" json:"address_id"`
	Address           *UserAddress `gorm:"constraint:OnDelete:CASCADE" json:"address,omitempty" validate:"-"`
	BrowsingHistoryID *uint        `gorm:"index" json:"browsing_history_id"`
	ReviewedProductID *uint        `gorm:"index" json:"reviewed_product_id"`

	Groups      []Group      `gorm:"many2many:user_groups" json:"groups,omitempty" validate:"-"`
	Permissions []Permission `gorm:"many2many:user_permissions" json:"permissions,omitempty" validate:"-"`

	// RawPassword carries a plaintext password on input only.
	RawPassword string `gorm:"-" json:"password,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u User) String() string {
	return u.Username
}

var ErrEmptyPassword = errors.New("password must not be empty")

// SetPassword stores a bcrypt hash of raw and clears RawPassword.
func (u *User) SetPassword(raw string) error {
	if raw == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	u.RawPassword = ""
	return nil
}

func (u *User) CheckPassword(raw string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(raw)) == nil
}

// Group and Permission mirror the authorization subsystem's tables. Only the
// associations are stored here; access decisions are made elsewhere.
type Group struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:150;uniqueIndex;not null" json:"name" validate:"required,max=150"`
	Permissions []Permission `gorm:"many2many:group_permissions" json:"permissions,omitempty" validate:"-"`
}

func (Group) TableName() string {
	return "auth_groups"
}

type Permission struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
	Codename string `gorm:"size:100;uniqueIndex;not null" json:"codename" validate:"required,max=100"`
}

func (Permission) TableName() string {
	return "auth_permissions"
}
