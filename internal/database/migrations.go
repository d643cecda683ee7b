package database

import (
	"gorm.io/gorm"
)

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Session{},
		&Setting{},
	)
}
