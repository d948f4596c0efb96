// internal/database/migrate.go
package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func prepareGoose(log logrus.FieldLogger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(log)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// RunMigrations applies every pending migration.
func RunMigrations(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) error {
	log.Info("Running database migrations...")

	if err := prepareGoose(log); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations completed successfully")
	return nil
}

// RollbackMigration reverts the latest applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) error {
	if err := prepareGoose(log); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := goose.DownContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// MigrationStatus logs the state of every known migration.
func MigrationStatus(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) error {
	if err := prepareGoose(log); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return goose.StatusContext(ctx, sqlDB, migrationsDir)
}
