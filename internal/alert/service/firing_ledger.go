package service

import (
	"context"
	"time"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
	"tradeedge-alerts/pkg/utils"
)

// FiringLedger turns a detected crossing into a durable, exactly-once fact.
// Commit is safe to call any number of times with the same key; only the first
// call reports isNew.
type FiringLedger struct {
	events      repository.FiringEventsRepository
	logger      *logger.Logger
	maxRetries  int
	backoffBase time.Duration
}

// NewFiringLedger creates a new FiringLedger. Transient write failures are
// retried maxRetries times before the commit is reported as failed.
func NewFiringLedger(events repository.FiringEventsRepository, log *logger.Logger, maxRetries int, backoffBase time.Duration) *FiringLedger {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &FiringLedger{
		events:      events,
		logger:      log,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}
}

// Commit records the firing event, or loads the already-recorded event for the
// same (user, alert, kind, revision) key. The caller must not dispatch before
// a successful commit: dispatch-before-commit would deliver a notification the
// ledger does not remember and duplicate it on retry.
func (l *FiringLedger) Commit(ctx context.Context, event *entity.FiringEvent) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		isNew, err := l.events.CreateIfAbsent(ctx, event)
		if err == nil {
			return isNew, nil
		}
		lastErr = err
		l.logger.Warn("Ledger commit attempt failed",
			logger.ErrorField(err),
			logger.IntField("attempt", attempt),
			logger.Field("user_id", event.UserID),
			logger.Field("stock_alert_id", event.StockAlertID),
			logger.StringField("kind", string(event.ThresholdKind)))

		select {
		case <-ctx.Done():
			return false, &dto.LedgerWriteError{Err: ctx.Err()}
		case <-time.After(utils.BackoffDuration(attempt, l.backoffBase, 10*l.backoffBase)):
		}
	}
	return false, &dto.LedgerWriteError{Err: lastErr}
}
