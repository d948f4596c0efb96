// internal/models/file.go
package models

import (
	"time"
)

// File is the metadata row for an uploaded attachment. Exactly one of
// RequestID and ListingID is set.
type File struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Type        FileType  `json:"type" gorm:"type:varchar(20);not null"`
	StoragePath string    `json:"storage_path" gorm:"column:file_path;type:text;not null"`
	Name        string    `json:"name,omitempty" gorm:"size:255"`
	RequestID   *int64    `json:"request_id,omitempty" gorm:"index"`
	ListingID   *int64    `json:"supplier_id,omitempty" gorm:"column:supplier_id;index"`
	UploadedAt  time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}

// HasSingleOwner reports whether the request XOR listing rule holds.
func (f *File) HasSingleOwner() bool {
	return (f.RequestID == nil) != (f.ListingID == nil)
}
