package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_usage_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.UsageRecordModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("usage_records")
			},
		},
	})

	return m.Migrate()
}
