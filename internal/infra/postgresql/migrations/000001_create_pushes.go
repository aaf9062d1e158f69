package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/readypush/newsletter-push/internal/repository"
	"gorm.io/gorm"
)

func createPushesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_pushes",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PushModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_pushes_status_created ON pushes (status, created_at)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_pushes_idempotency_key ON pushes (idempotency_key) WHERE idempotency_key IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_pushes_correlation_id ON pushes (correlation_id)`,
				`CREATE INDEX IF NOT EXISTS idx_pushes_scheduled_due ON pushes (scheduled_at) WHERE status = 'ACCEPTED' AND scheduled_at IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PushModel{})
		},
	}
}
