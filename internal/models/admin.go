// internal/models/admin.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records moderation actions. ActorID is deliberately not a foreign
// key so history outlives the users it mentions.
type AuditLog struct {
	ID           int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	ActorID      *int64            `json:"actor_id" gorm:"index"`
	Action       string            `json:"action" gorm:"size:100;not null;index"`
	ResourceType string            `json:"resource_type" gorm:"size:50;not null"`
	ResourceID   int64             `json:"resource_id" gorm:"not null"`
	OldValues    datatypes.JSONMap `json:"old_values" gorm:"type:jsonb"`
	NewValues    datatypes.JSONMap `json:"new_values" gorm:"type:jsonb"`
	CreatedAt    time.Time         `json:"created_at"`
}

// CleanupFailure is a stored object whose removal failed after its File row
// was deleted. The retry job resolves it later.
type CleanupFailure struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	FileID      int64      `json:"file_id" gorm:"not null"`
	StoragePath string     `json:"storage_path" gorm:"type:text;not null"`
	Backend     string     `json:"backend" gorm:"size:20;not null"`
	LastError   string     `json:"last_error" gorm:"type:text;not null"`
	Attempts    int        `json:"attempts" gorm:"not null;default:1"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" gorm:"index"`
}

func (CleanupFailure) TableName() string {
	return "file_cleanup_failures"
}
