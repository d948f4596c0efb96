// internal/database/seed.go
package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/supplymatch-backend/internal/config"
	"github.com/javajoker/supplymatch-backend/internal/models"
)

// DefaultTaxonomy is the starter category tree created by the seed command.
var DefaultTaxonomy = map[string][]string{
	"Electronics":      {"Components", "Consumer devices", "Hardware"},
	"Food":             {"Beverages", "Groceries", "Produce"},
	"Construction":     {"Building materials", "Tools"},
	"Industrial goods": {"Machinery", "Packaging", "Raw materials"},
}

// SeedInitialData creates the default taxonomy and promotes configured admins.
// It is idempotent.
func SeedInitialData(ctx context.Context, db *gorm.DB, cfg config.ModerationConfig, log logrus.FieldLogger) error {
	log.Info("Seeding initial data...")

	err := WithTransaction(db.WithContext(ctx), func(tx *gorm.DB) error {
		for mainName, names := range DefaultTaxonomy {
			main := models.MainCategory{Name: mainName}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&main).Error; err != nil {
				return fmt.Errorf("failed to seed main category %q: %w", mainName, err)
			}

			for _, name := range names {
				category := models.Category{Name: name, MainCategoryName: mainName}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&category).Error; err != nil {
					return fmt.Errorf("failed to seed category %q: %w", name, err)
				}
			}
		}

		for _, externalID := range cfg.AdminExternalIDs {
			admin := models.User{ExternalID: externalID, Role: models.RoleAdmin}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"role": models.RoleAdmin}),
			}).Create(&admin).Error
			if err != nil {
				return fmt.Errorf("failed to seed admin %d: %w", externalID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.WithField("admins", len(cfg.AdminExternalIDs)).Info("Initial data seeding completed")
	return nil
}
