// internal/models/listing.go
package models

import (
	"github.com/lib/pq"
)

// Listing is a supplier offering. It keeps the historical "suppliers" table
// name and "supplier_id" foreign key columns.
type Listing struct {
	BaseModel
	CompanyName     string         `json:"company_name" gorm:"size:255;not null" validate:"required,min=2,max=255"`
	ProductName     string         `json:"product_name" gorm:"size:255;not null" validate:"required,min=2,max=255"`
	Description     string         `json:"description" gorm:"type:text"`
	CategoryID      int64          `json:"category_id" gorm:"not null;index" validate:"required"`
	Country         string         `json:"country,omitempty" gorm:"size:100"`
	Region          string         `json:"region,omitempty" gorm:"size:100"`
	City            string         `json:"city,omitempty" gorm:"size:100"`
	Address         string         `json:"address,omitempty" gorm:"type:text"`
	ContactUsername string         `json:"contact_username,omitempty" gorm:"size:100"`
	ContactPhone    string         `json:"contact_phone,omitempty" gorm:"size:20" validate:"omitempty,phone"`
	ContactEmail    string         `json:"contact_email,omitempty" gorm:"size:255" validate:"omitempty,email"`
	Website         string         `json:"website,omitempty" gorm:"size:255" validate:"omitempty,url"`
	Tags            pq.StringArray `json:"tags,omitempty" gorm:"type:text[]"`
	Status          ListingStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index" validate:"listing_status"`
	RejectionReason *string        `json:"rejection_reason,omitempty" gorm:"type:text"`
	CreatedByID     int64          `json:"created_by_id" gorm:"not null;index" validate:"required"`
	VerifiedByID    *int64         `json:"verified_by_id,omitempty"`

	// Relationships
	Category   *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedBy  *User     `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	VerifiedBy *User     `json:"verified_by,omitempty" gorm:"foreignKey:VerifiedByID"`
	Files      []File    `json:"files,omitempty" gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
}

func (Listing) TableName() string {
	return "suppliers"
}
