package repository

import (
	"context"
	"errors"

	"github.com/munchmtxi/notification-engine/internal/domain"
	"gorm.io/gorm"
)

// TemplateRepository is the engine's read-only view of templates. Writes
// happen through administrative tooling.
type TemplateRepository interface {
	FindActiveByName(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) FindActiveByName(ctx context.Context, name string, channel domain.Channel) (*domain.Template, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).
		Where("name = ? AND type = ? AND status = ?", name, channel, domain.TemplateActive).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}
