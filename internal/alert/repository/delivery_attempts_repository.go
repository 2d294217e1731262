package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/entity"
)

type DeliveryAttemptsRepository interface {
	// CreateIfAbsent creates the attempt row for (event, channel) or loads the
	// existing one, so a replayed dispatch never produces a second attempt.
	CreateIfAbsent(ctx context.Context, attempt *entity.DeliveryAttempt) (bool, error)
	Update(ctx context.Context, attempt *entity.DeliveryAttempt) error
	FindByID(ctx context.Context, id uint) (*entity.DeliveryAttempt, error)
	Get(ctx context.Context, param dto.GetDeliveryAttemptsParam) ([]entity.DeliveryAttempt, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]entity.DeliveryAttempt, error)
}

type deliveryAttemptsRepository struct {
	db *gorm.DB
}

func NewDeliveryAttemptsRepository(db *gorm.DB) DeliveryAttemptsRepository {
	return &deliveryAttemptsRepository{
		db: db,
	}
}

func (r *deliveryAttemptsRepository) CreateIfAbsent(ctx context.Context, attempt *entity.DeliveryAttempt) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "firing_event_id"},
			{Name: "channel"},
		},
		DoNothing: true,
	}).Create(attempt)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing entity.DeliveryAttempt
	err := r.db.WithContext(ctx).
		Where("firing_event_id = ? AND channel = ?", attempt.FiringEventID, attempt.Channel).
		First(&existing).Error
	if err != nil {
		return false, err
	}
	*attempt = existing
	return false, nil
}

func (r *deliveryAttemptsRepository) Update(ctx context.Context, attempt *entity.DeliveryAttempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *deliveryAttemptsRepository) FindByID(ctx context.Context, id uint) (*entity.DeliveryAttempt, error) {
	var attempt entity.DeliveryAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *deliveryAttemptsRepository) Get(ctx context.Context, param dto.GetDeliveryAttemptsParam) ([]entity.DeliveryAttempt, error) {
	var attempts []entity.DeliveryAttempt

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if param.FiringEventID != nil {
		qFilter = append(qFilter, "firing_event_id = ?")
		qFilterParam = append(qFilterParam, *param.FiringEventID)
	}

	if len(param.Statuses) > 0 {
		qFilter = append(qFilter, "status IN (?)")
		qFilterParam = append(qFilterParam, param.Statuses)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	if err := r.db.WithContext(ctx).Where(strings.Join(qFilter, " AND "), qFilterParam...).Order("updated_at desc").Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

// FindDue returns failed attempts whose backoff has elapsed.
func (r *deliveryAttemptsRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]entity.DeliveryAttempt, error) {
	var attempts []entity.DeliveryAttempt
	q := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", entity.DeliveryFailed, now).
		Order("next_retry_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
