package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
)

// UserSettingService manages the per-user global channel switches.
type UserSettingService interface {
	Get(ctx context.Context, userID uint) (*entity.UserSetting, error)
	Update(ctx context.Context, userID uint, req *dto.UpdateUserSettingRequest) (*entity.UserSetting, error)
}

// NewUserSettingService creates a new UserSettingService.
func NewUserSettingService(settings repository.UserSettingsRepository, log *logger.Logger) UserSettingService {
	return &userSettingService{
		settings: settings,
		logger:   log,
	}
}

type userSettingService struct {
	settings repository.UserSettingsRepository
	logger   *logger.Logger
}

func (s *userSettingService) Get(ctx context.Context, userID uint) (*entity.UserSetting, error) {
	return s.settings.FindByUserID(ctx, userID)
}

func (s *userSettingService) Update(ctx context.Context, userID uint, req *dto.UpdateUserSettingRequest) (*entity.UserSetting, error) {
	setting, err := s.settings.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		setting = &entity.UserSetting{UserID: userID, Tier: entity.TierFree}
	}

	if req.Channels != nil {
		setting.Channels = *req.Channels
	}
	if req.Email != nil {
		setting.Email = *req.Email
	}
	if req.PhoneNumber != nil {
		setting.PhoneNumber = *req.PhoneNumber
	}

	if err := s.settings.Save(ctx, setting); err != nil {
		return nil, err
	}

	s.logger.Info("User settings saved", logger.Field("user_id", userID))
	return setting, nil
}
