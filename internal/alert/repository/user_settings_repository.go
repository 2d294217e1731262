package repository

import (
	"context"

	"gorm.io/gorm"

	"tradeedge-alerts/internal/entity"
)

type UserSettingsRepository interface {
	FindByUserID(ctx context.Context, userID uint) (*entity.UserSetting, error)
	Save(ctx context.Context, setting *entity.UserSetting) error
}

type userSettingsRepository struct {
	db *gorm.DB
}

func NewUserSettingsRepository(db *gorm.DB) UserSettingsRepository {
	return &userSettingsRepository{
		db: db,
	}
}

func (r *userSettingsRepository) FindByUserID(ctx context.Context, userID uint) (*entity.UserSetting, error) {
	var setting entity.UserSetting
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *userSettingsRepository) Save(ctx context.Context, setting *entity.UserSetting) error {
	return r.db.WithContext(ctx).Save(setting).Error
}
