package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/syllabus-dashboard/internal/config"
	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// Connect opens the attempt-record database for the configured driver and migrates its schema.
func Connect(driver, dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch driver {
	case config.DriverPostgres:
		db, err = ConnectPostgres(dsn)
	case config.DriverSQLite:
		db, err = ConnectSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.IngestionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
