package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/entity"
)

type NotificationPreferencesRepository interface {
	Get(ctx context.Context, param dto.GetPreferencesParam) ([]entity.NotificationPreference, error)
	FindByUserAndAlert(ctx context.Context, userID, stockAlertID uint) (*entity.NotificationPreference, error)
	Save(ctx context.Context, pref *entity.NotificationPreference) error
	MarkFired(ctx context.Context, preferenceID uint, kind entity.ThresholdKind, revision int, firedAt time.Time) error
}

type preferencesRepository struct {
	db *gorm.DB
}

func NewNotificationPreferencesRepository(db *gorm.DB) NotificationPreferencesRepository {
	return &preferencesRepository{
		db: db,
	}
}

func (r *preferencesRepository) Get(ctx context.Context, param dto.GetPreferencesParam) ([]entity.NotificationPreference, error) {
	var prefs []entity.NotificationPreference

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if param.UserID != nil {
		qFilter = append(qFilter, "user_id = ?")
		qFilterParam = append(qFilterParam, *param.UserID)
	}

	if param.StockAlertID != nil {
		qFilter = append(qFilter, "stock_alert_id = ?")
		qFilterParam = append(qFilterParam, *param.StockAlertID)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	if err := r.db.WithContext(ctx).Preload("Thresholds").Where(strings.Join(qFilter, " AND "), qFilterParam...).Find(&prefs).Error; err != nil {
		return nil, err
	}

	return prefs, nil
}

func (r *preferencesRepository) FindByUserAndAlert(ctx context.Context, userID, stockAlertID uint) (*entity.NotificationPreference, error) {
	var pref entity.NotificationPreference
	err := r.db.WithContext(ctx).Preload("Thresholds").
		Where("user_id = ? AND stock_alert_id = ?", userID, stockAlertID).
		First(&pref).Error
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Save persists the preference and its threshold settings in one transaction.
func (r *preferencesRepository) Save(ctx context.Context, pref *entity.NotificationPreference) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if pref.ID == 0 {
			return tx.Create(pref).Error
		}
		if err := tx.Save(pref).Error; err != nil {
			return err
		}
		for i := range pref.Thresholds {
			pref.Thresholds[i].PreferenceID = pref.ID
			if err := tx.Save(&pref.Thresholds[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkFired flips the denormalized threshold state after a successful ledger
// commit. The revision guard keeps a commit for a superseded revision from
// firing a freshly re-armed threshold.
func (r *preferencesRepository) MarkFired(ctx context.Context, preferenceID uint, kind entity.ThresholdKind, revision int, firedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.ThresholdSetting{}).
		Where("preference_id = ? AND kind = ? AND revision = ?", preferenceID, kind, revision).
		Updates(map[string]interface{}{
			"state":    entity.ThresholdFired,
			"fired_at": firedAt,
		}).Error
}
