// internal/models/request.go
package models

type Request struct {
	BaseModel
	CategoryID      int64         `json:"category_id" gorm:"not null;index" validate:"required"`
	Description     string        `json:"description" gorm:"type:text;not null" validate:"required,min=5"`
	ContactUsername string        `json:"contact_username,omitempty" gorm:"size:100"`
	ContactPhone    string        `json:"contact_phone,omitempty" gorm:"size:20" validate:"omitempty,phone"`
	ContactEmail    string        `json:"contact_email,omitempty" gorm:"size:255" validate:"omitempty,email"`
	Status          RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index" validate:"request_status"`
	RejectionReason *string       `json:"rejection_reason,omitempty" gorm:"type:text"`
	CreatedByID     int64         `json:"created_by_id" gorm:"not null;index" validate:"required"`
	VerifiedByID    *int64        `json:"verified_by_id,omitempty"`

	// Relationships
	Category  *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedBy *User     `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	Files     []File    `json:"files,omitempty" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}
