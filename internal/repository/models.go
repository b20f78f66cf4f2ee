package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/munchmtxi/notification-engine/internal/domain"
)

// JSONMap persists template parameters as a JSONB column.
type JSONMap map[string]string

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
}

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID            string          `gorm:"type:uuid;primaryKey"`
	CorrelationID string          `gorm:"type:varchar(36);not null"`
	RecipientID   string          `gorm:"type:varchar(64);not null"`
	TemplateID    *string         `gorm:"type:uuid"`
	Priority      domain.Priority `gorm:"type:varchar(10);not null"`
	CreatedAt     time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// NotificationLogModel is the persistence model for notification_logs. One
// row per channel per dispatch, mutated in place across retries.
type NotificationLogModel struct {
	ID             string           `gorm:"type:uuid;primaryKey"`
	NotificationID string           `gorm:"type:uuid;not null"`
	Channel        domain.Channel   `gorm:"column:type;type:varchar(10);not null"`
	Recipient      string           `gorm:"type:varchar(255);not null"`
	TemplateName   string           `gorm:"type:varchar(100)"`
	Parameters     JSONMap          `gorm:"type:jsonb"`
	Content        string           `gorm:"type:text;not null"`
	Subject        string           `gorm:"type:text"`
	Status         domain.LogStatus `gorm:"type:varchar(20);not null"`
	RetryCount     int              `gorm:"not null;default:0"`
	NextRetryAt    *time.Time
	Error          *string `gorm:"type:text"`
	MessageID      *string `gorm:"type:varchar(255)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (NotificationLogModel) TableName() string {
	return "notification_logs"
}

// TemplateModel is the persistence model for templates.
type TemplateModel struct {
	ID        string                `gorm:"type:uuid;primaryKey"`
	Name      string                `gorm:"type:varchar(100);not null"`
	Channel   domain.Channel        `gorm:"column:type;type:varchar(10);not null"`
	Content   string                `gorm:"type:text;not null"`
	Subject   string                `gorm:"type:text"`
	Status    domain.TemplateStatus `gorm:"type:varchar(20);not null"`
	Language  string                `gorm:"type:varchar(10);not null;default:en"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TemplateModel) TableName() string {
	return "templates"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:            n.ID,
		CorrelationID: n.CorrelationID,
		RecipientID:   n.RecipientID,
		TemplateID:    n.TemplateID,
		Priority:      n.Priority,
		CreatedAt:     n.CreatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:            m.ID,
		CorrelationID: m.CorrelationID,
		RecipientID:   m.RecipientID,
		TemplateID:    m.TemplateID,
		Priority:      m.Priority,
		CreatedAt:     m.CreatedAt,
	}
}

func logModelFromDomain(l *domain.NotificationLog) *NotificationLogModel {
	if l == nil {
		return nil
	}

	return &NotificationLogModel{
		ID:             l.ID,
		NotificationID: l.NotificationID,
		Channel:        l.Channel,
		Recipient:      l.Recipient,
		TemplateName:   l.TemplateName,
		Parameters:     JSONMap(l.Parameters),
		Content:        l.Content,
		Subject:        l.Subject,
		Status:         l.Status,
		RetryCount:     l.RetryCount,
		NextRetryAt:    l.NextRetryAt,
		Error:          l.Error,
		MessageID:      l.MessageID,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func logModelToDomain(m *NotificationLogModel) *domain.NotificationLog {
	if m == nil {
		return nil
	}

	return &domain.NotificationLog{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Channel:        m.Channel,
		Recipient:      m.Recipient,
		TemplateName:   m.TemplateName,
		Parameters:     map[string]string(m.Parameters),
		Content:        m.Content,
		Subject:        m.Subject,
		Status:         m.Status,
		RetryCount:     m.RetryCount,
		NextRetryAt:    m.NextRetryAt,
		Error:          m.Error,
		MessageID:      m.MessageID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:        m.ID,
		Name:      m.Name,
		Channel:   m.Channel,
		Content:   m.Content,
		Subject:   m.Subject,
		Status:    m.Status,
		Language:  m.Language,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
