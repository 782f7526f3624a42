package initializers

import (
	"errors"
	"fmt"

	"github.com/cntrlcomply/backend/models"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tables lists every persisted model, in dependency order.
var Tables = []interface{}{
	&models.RegulatoryItem{},
	&models.ComplianceGap{},
	&models.PolicyAmendment{},
	&models.AuditEvent{},
	&models.MonitoringSource{},
	&models.IngestedDocument{},
	&models.UploadedDocument{},
	&models.SystemUser{},
	&models.UserRole{},
	&models.AnalysisDocument{},
	&models.CrossImpactRun{},
	&models.ExecutiveReport{},
	&models.WorkspaceSession{},
}

// Migrate brings the schema up to date. Postgres runs the versioned SQL files
// under cfg.MigrateDir; the in-memory SQLite database is built by AutoMigrate.
func Migrate(db *gorm.DB, cfg Config, log *zap.SugaredLogger) error {
	log.Infof("[Migrate] Starting database migration (%s)...", cfg.DBDriver)

	if cfg.DBDriver != "postgres" {
		if err := AutoMigrate(db); err != nil {
			return err
		}
		log.Infof("[Migrate] Migration completed successfully!")
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("error getting underlying *sql.DB: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create the postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrateDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("error creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}

	log.Infof("[Migrate] Migration completed successfully!")
	return nil
}

// AutoMigrate creates every table from the model definitions.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Tables...); err != nil {
		return fmt.Errorf("error running auto-migration: %w", err)
	}
	return nil
}
