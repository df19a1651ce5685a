package repository

import (
	"context"
	"errors"

	"contractflow/internal/model"

	"gorm.io/gorm"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*model.CompanySettings, error)
	Save(ctx context.Context, settings *model.CompanySettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns the singleton settings row, creating it with defaults on first
// access.
func (r *settingsRepository) Get(ctx context.Context) (*model.CompanySettings, error) {
	db := GetDB(ctx, r.db)

	var settings model.CompanySettings
	err := db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = model.CompanySettings{ID: 1}
		if createErr := db.Create(&settings).Error; createErr != nil {
			return nil, createErr
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings *model.CompanySettings) error {
	return GetDB(ctx, r.db).Save(settings).Error
}
