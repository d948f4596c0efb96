// internal/services/delete.go
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/cleanup"
	"github.com/javajoker/supplymatch-backend/internal/database"
	"github.com/javajoker/supplymatch-backend/internal/models"
)

// deleteWithCleanup runs fn in a transaction. fn adds every File row the
// delete removes, directly or by cascade, to the batch. The stored objects
// are purged only after the transaction commits; a rollback drops the batch.
func deleteWithCleanup(ctx context.Context, db *gorm.DB, cleaner *cleanup.Cleaner, fn func(tx *gorm.DB, batch *cleanup.Batch) error) (cleanup.Report, error) {
	batch := cleanup.NewBatch()

	err := database.WithTransaction(db.WithContext(ctx), func(tx *gorm.DB) error {
		return fn(tx, batch)
	})
	if err != nil {
		return cleanup.Report{}, err
	}

	return cleaner.Purge(ctx, batch), nil
}

// collectFiles locks and collects the files owned through column.
func collectFiles(tx *gorm.DB, column string, ownerID int64, batch *cleanup.Batch) error {
	var files []models.File
	if err := lockForUpdate(tx).Where(column+" = ?", ownerID).Order("id").Find(&files).Error; err != nil {
		return err
	}
	batch.Add(files...)
	return nil
}
