package database

import (
	"keygate/internal/database/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.VisitorLog{},
		&models.BlockedLog{},
		&models.BannedCountry{},
		&models.BannedIP{},
		&models.BannedCustomer{},
		&models.SiteSetting{},
	)
}
