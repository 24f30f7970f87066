package db

import (
	"fmt"

	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var PgDB *gorm.DB

func InitPostgresORM(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	PgDB = db
	return db, nil
}

// Migrate applies the schema for every entity the server persists.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&gormModels.User{},
		&gormModels.Aircraft{},
		&gormModels.ChecklistTemplate{},
		&gormModels.TemplateItem{},
		&gormModels.Flight{},
		&gormModels.ChecklistRun{},
		&gormModels.RunItem{},
		&gormModels.TrackPoint{},
	)
}
