package migrations

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"github.com/munchmtxi/notification-engine/internal/domain"
	"github.com/munchmtxi/notification-engine/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedDefaultTemplates inserts the baseline order-lifecycle templates so a
// fresh deployment can dispatch without an out-of-band seeding step.
func seedDefaultTemplates() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_seed_templates",
		Migrate: func(tx *gorm.DB) error {
			now := time.Now().UTC()

			templates := []repository.TemplateModel{
				{
					Name:    "order_confirmed",
					Channel: domain.ChannelWhatsApp,
					Content: "Hi {{customer_name}}, your order {{order_number}} has been confirmed. Estimated delivery: {{eta}}.",
				},
				{
					Name:    "order_confirmed",
					Channel: domain.ChannelSMS,
					Content: "Order {{order_number}} confirmed. ETA {{eta}}.",
				},
				{
					Name:    "order_confirmed",
					Channel: domain.ChannelEmail,
					Subject: "Order {{order_number}} confirmed",
					Content: "Hi {{customer_name}},\n\nYour order {{order_number}} has been confirmed and is being prepared.\nEstimated delivery: {{eta}}.\n\nThank you for ordering with us.",
				},
				{
					Name:    "driver_assigned",
					Channel: domain.ChannelWhatsApp,
					Content: "Good news {{customer_name}}! {{driver_name}} is on the way with order {{order_number}}.",
				},
				{
					Name:    "driver_assigned",
					Channel: domain.ChannelSMS,
					Content: "{{driver_name}} is delivering order {{order_number}}.",
				},
				{
					Name:    "order_delivered",
					Channel: domain.ChannelSMS,
					Content: "Order {{order_number}} delivered. Enjoy your meal!",
				},
				{
					Name:    "order_receipt",
					Channel: domain.ChannelEmail,
					Subject: "Receipt for order {{order_number}}",
					Content: "Hi {{customer_name}},\n\nHere is your receipt for order {{order_number}}.\nTotal: {{total}}\n\nWe hope to see you again soon.",
				},
			}

			for i := range templates {
				templates[i].ID = uuid.New().String()
				templates[i].Status = domain.TemplateActive
				templates[i].Language = "en"
				templates[i].CreatedAt = now
				templates[i].UpdatedAt = now
			}

			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}, {Name: "type"}},
				DoNothing: true,
			}).Create(&templates).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Where("name IN ?", []string{
				"order_confirmed", "driver_assigned", "order_delivered", "order_receipt",
			}).Delete(&repository.TemplateModel{}).Error
		},
	}
}
