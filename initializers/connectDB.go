package initializers

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// ConnectDB opens the database selected by cfg.DBDriver.
func ConnectDB(cfg Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	log.Infof("[ConnectDB] Connecting to %s database", cfg.DBDriver)

	gormCfg := &gorm.Config{
		PrepareStmt:          false,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	}
	if cfg.AppEnv == "development" {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		pgConfig := postgres.Config{
			PreferSimpleProtocol: true, // Disable implicit prepared statement usage
			DriverName:           "postgres",
			DSN:                  cfg.DatabaseURL,
		}
		db, err = gorm.Open(postgres.New(pgConfig), gormCfg)
	default:
		db, err = OpenMemoryDB(gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	log.Infof("[ConnectDB] Database connection successful")
	return db, nil
}

// OpenMemoryDB opens a private in-memory SQLite database. Each call yields an
// independent database, which is what tests rely on.
func OpenMemoryDB(gormCfg *gorm.Config) (*gorm.DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %w", err)
	}
	// every pooled connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}
	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite",
		Conn:       sqlDB,
	}), gormCfg)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
