package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/readypush/newsletter-push/internal/repository"
	"gorm.io/gorm"
)

func createPushAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_push_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PushAttemptModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_push_attempts_push_id ON push_attempts (push_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PushAttemptModel{})
		},
	}
}
