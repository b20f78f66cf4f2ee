package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/munchmtxi/notification-engine/internal/repository"
	"gorm.io/gorm"
)

func createNotificationLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notification_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationLogModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_logs_notification_id ON notification_logs (notification_id)`,
				// The sweep predicate: FAILED rows ordered by due time.
				`CREATE INDEX IF NOT EXISTS idx_logs_retry_due ON notification_logs (next_retry_at) WHERE status = 'FAILED'`,
				`CREATE INDEX IF NOT EXISTS idx_logs_status_type_created ON notification_logs (status, type, created_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationLogModel{})
		},
	}
}
