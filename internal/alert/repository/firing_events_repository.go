package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeedge-alerts/internal/entity"
)

type FiringEventsRepository interface {
	// CreateIfAbsent performs the conditional write that makes firing
	// idempotent: if an event already exists for the (user, alert, kind,
	// revision) key, the stored event is loaded into event and false is
	// returned.
	CreateIfAbsent(ctx context.Context, event *entity.FiringEvent) (bool, error)
	FindByID(ctx context.Context, id uint) (*entity.FiringEvent, error)
	FindByUser(ctx context.Context, userID uint) ([]entity.FiringEvent, error)
	FindUndispatched(ctx context.Context, limit int) ([]entity.FiringEvent, error)
	MarkDispatched(ctx context.Context, id uint, at time.Time) error
}

type firingEventsRepository struct {
	db *gorm.DB
}

func NewFiringEventsRepository(db *gorm.DB) FiringEventsRepository {
	return &firingEventsRepository{
		db: db,
	}
}

func (r *firingEventsRepository) CreateIfAbsent(ctx context.Context, event *entity.FiringEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "stock_alert_id"},
			{Name: "threshold_kind"},
			{Name: "revision"},
		},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Lost the race or replayed; return the event that won.
	var existing entity.FiringEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND stock_alert_id = ? AND threshold_kind = ? AND revision = ?",
			event.UserID, event.StockAlertID, event.ThresholdKind, event.Revision).
		First(&existing).Error
	if err != nil {
		return false, err
	}
	*event = existing
	return false, nil
}

func (r *firingEventsRepository) FindByID(ctx context.Context, id uint) (*entity.FiringEvent, error) {
	var event entity.FiringEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *firingEventsRepository) FindByUser(ctx context.Context, userID uint) ([]entity.FiringEvent, error) {
	var events []entity.FiringEvent
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("fired_at desc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindUndispatched returns committed events whose dispatch never completed,
// e.g. after a crash between ledger commit and delivery fan-out.
func (r *firingEventsRepository) FindUndispatched(ctx context.Context, limit int) ([]entity.FiringEvent, error) {
	var events []entity.FiringEvent
	q := r.db.WithContext(ctx).Where("dispatched_at IS NULL").Order("fired_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *firingEventsRepository) MarkDispatched(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.FiringEvent{}).
		Where("id = ?", id).
		Update("dispatched_at", at).Error
}
