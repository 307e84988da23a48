package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/nftsurface/internal/infrastructure/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	return db, err
}

func MigratePostgres(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Asset{},
		&models.RevokedID{},
		&models.Approval{},
		&models.LedgerState{},
		&models.RoleGrant{},
		&models.PayeeShare{},
		&models.FundTransfer{},
	)
	if err != nil {
		return err
	}
	// ensure the singleton state row exists
	return db.Where(models.LedgerState{ID: 1}).FirstOrCreate(&models.LedgerState{ID: 1, TotalReceived: "0"}).Error
}
