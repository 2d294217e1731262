package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/channel"
	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/common"
	"tradeedge-alerts/pkg/logger"
	redisPkg "tradeedge-alerts/pkg/redis"
	"tradeedge-alerts/pkg/telegram"
	"tradeedge-alerts/pkg/utils"
)

// DeliveryDispatcher fans committed firing events out to the channels the
// policy currently allows. Channels are independent: one adapter failing never
// blocks the others and never touches the firing state.
type DeliveryDispatcher interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(event entity.FiringEvent)
	Dispatch(ctx context.Context, event *entity.FiringEvent)
	ProcessRetries(ctx context.Context)
}

// NewDeliveryDispatcher creates a new DeliveryDispatcher.
func NewDeliveryDispatcher(
	cfg *config.Config,
	attempts repository.DeliveryAttemptsRepository,
	events repository.FiringEventsRepository,
	settings repository.UserSettingsRepository,
	prefs repository.NotificationPreferencesRepository,
	policy *PolicyGate,
	adapters []channel.Adapter,
	redisClient *redisPkg.Client,
	opsNotifier telegram.Notifier,
	log *logger.Logger,
) DeliveryDispatcher {
	adapterMap := make(map[entity.Channel]channel.Adapter)
	for _, a := range adapters {
		adapterMap[a.Channel()] = a
	}

	return &deliveryDispatcher{
		cfg:         cfg,
		attempts:    attempts,
		events:      events,
		settings:    settings,
		prefs:       prefs,
		policy:      policy,
		adapters:    adapterMap,
		redisClient: redisClient,
		opsNotifier: opsNotifier,
		logger:      log,
		queue:       make(chan entity.FiringEvent, cfg.Engine.DispatcherQueueSize),
		stopChan:    make(chan struct{}),
	}
}

type deliveryDispatcher struct {
	cfg         *config.Config
	attempts    repository.DeliveryAttemptsRepository
	events      repository.FiringEventsRepository
	settings    repository.UserSettingsRepository
	prefs       repository.NotificationPreferencesRepository
	policy      *PolicyGate
	adapters    map[entity.Channel]channel.Adapter
	redisClient *redisPkg.Client
	opsNotifier telegram.Notifier
	logger      *logger.Logger
	queue       chan entity.FiringEvent
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// Start launches the delivery worker pool.
func (d *deliveryDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Engine.DispatcherWorkers; i++ {
		d.wg.Add(1)
		utils.GoSafe(func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-d.stopChan:
					return
				case event := <-d.queue:
					d.Dispatch(ctx, &event)
				}
			}
		})
	}
	d.logger.Info("Delivery dispatcher started", logger.IntField("workers", d.cfg.Engine.DispatcherWorkers))
}

// Stop drains the workers.
func (d *deliveryDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	d.wg.Wait()
	d.logger.Info("Delivery dispatcher stopped")
}

// Enqueue hands a committed event to the delivery pool without blocking the
// caller's symbol lane. A full queue is not fatal: the event stays
// undispatched and the recovery sweep picks it up.
func (d *deliveryDispatcher) Enqueue(event entity.FiringEvent) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("Dispatcher queue full, leaving event for recovery sweep",
			logger.Field("firing_event_id", event.ID))
	}
}

// Dispatch creates delivery attempts for every allowed channel of the event
// and runs them. Safe to call repeatedly for the same event.
func (d *deliveryDispatcher) Dispatch(ctx context.Context, event *entity.FiringEvent) {
	delivery, threshold, ok := d.buildDelivery(ctx, event)
	if !ok {
		return
	}

	userSetting, err := d.settings.FindByUserID(ctx, event.UserID)
	if err != nil {
		d.logger.Error("Failed to load user settings for dispatch", logger.ErrorField(err), logger.Field("user_id", event.UserID))
		return
	}
	delivery.EmailAddress = userSetting.Email
	delivery.PhoneNumber = userSetting.PhoneNumber

	var thresholdChannels entity.ChannelSet
	if threshold != nil {
		thresholdChannels = threshold.Channels
	}
	allowed := d.policy.AllowedChannels(userSetting.Channels, thresholdChannels)

	for _, ch := range allowed {
		attempt := &entity.DeliveryAttempt{
			FiringEventID: event.ID,
			Channel:       ch,
			Status:        entity.DeliveryPending,
		}
		if _, err := d.attempts.CreateIfAbsent(ctx, attempt); err != nil {
			d.logger.Error("Failed to create delivery attempt",
				logger.ErrorField(err),
				logger.Field("firing_event_id", event.ID),
				logger.StringField("channel", string(ch)))
			continue
		}
		if attempt.Status.Terminal() {
			continue
		}
		d.deliver(ctx, attempt, delivery)
	}

	if err := d.events.MarkDispatched(ctx, event.ID, time.Now().UTC()); err != nil {
		d.logger.Error("Failed to mark event dispatched", logger.ErrorField(err), logger.Field("firing_event_id", event.ID))
	}
}

// ProcessRetries re-delivers failed attempts whose backoff has elapsed. Policy
// is re-checked here so a channel the user disabled after the firing is not
// delivered anyway.
func (d *deliveryDispatcher) ProcessRetries(ctx context.Context) {
	due, err := d.attempts.FindDue(ctx, time.Now().UTC(), 100)
	if err != nil {
		d.logger.Error("Failed to find due delivery attempts", logger.ErrorField(err))
		return
	}

	for i := range due {
		attempt := &due[i]

		event, err := d.events.FindByID(ctx, attempt.FiringEventID)
		if err != nil {
			d.logger.Error("Failed to load firing event for retry", logger.ErrorField(err), logger.Field("attempt_id", attempt.ID))
			continue
		}

		delivery, threshold, ok := d.buildDelivery(ctx, event)
		if !ok {
			continue
		}

		userSetting, err := d.settings.FindByUserID(ctx, event.UserID)
		if err != nil {
			d.logger.Error("Failed to load user settings for retry", logger.ErrorField(err), logger.Field("user_id", event.UserID))
			continue
		}
		delivery.EmailAddress = userSetting.Email
		delivery.PhoneNumber = userSetting.PhoneNumber

		var thresholdChannels entity.ChannelSet
		if threshold != nil {
			thresholdChannels = threshold.Channels
		}
		if !channelAllowed(d.policy.AllowedChannels(userSetting.Channels, thresholdChannels), attempt.Channel) {
			// The user turned the channel off after the firing; surface it
			// instead of retrying forever or dropping silently.
			d.deadLetter(ctx, attempt, delivery, fmt.Errorf("channel disabled after firing, delivery suppressed"))
			continue
		}

		d.deliver(ctx, attempt, delivery)
	}
}

func channelAllowed(allowed []entity.Channel, ch entity.Channel) bool {
	for _, a := range allowed {
		if a == ch {
			return true
		}
	}
	return false
}

func (d *deliveryDispatcher) buildDelivery(ctx context.Context, event *entity.FiringEvent) (channel.Delivery, *entity.ThresholdSetting, bool) {
	var payload entity.FiringPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		d.logger.Error("Failed to unmarshal firing payload", logger.ErrorField(err), logger.Field("firing_event_id", event.ID))
		return channel.Delivery{}, nil, false
	}

	delivery := channel.Delivery{
		UserID:  event.UserID,
		Subject: channel.FormatSubject(payload),
		Message: channel.FormatMessage(payload),
		Payload: payload,
	}

	var threshold *entity.ThresholdSetting
	pref, err := d.prefs.FindByUserAndAlert(ctx, event.UserID, event.StockAlertID)
	switch {
	case err == nil:
		threshold = pref.Threshold(event.ThresholdKind)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Preference deleted after firing; no channel intent remains, so the
		// dispatch completes with zero attempts.
	default:
		d.logger.Error("Failed to load preference for dispatch", logger.ErrorField(err),
			logger.Field("user_id", event.UserID), logger.Field("stock_alert_id", event.StockAlertID))
		return channel.Delivery{}, nil, false
	}

	return delivery, threshold, true
}

// deliver runs one adapter call and advances the attempt's state machine:
// pending -> sent, or pending -> failed -> ... -> sent | deadlettered.
func (d *deliveryDispatcher) deliver(ctx context.Context, attempt *entity.DeliveryAttempt, delivery channel.Delivery) {
	adapter, ok := d.adapters[attempt.Channel]
	if !ok {
		d.deadLetter(ctx, attempt, delivery, fmt.Errorf("no adapter registered for channel %s", attempt.Channel))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Engine.DeliveryTimeout)
	err := adapter.Send(sendCtx, delivery)
	cancel()

	attempt.Attempts++

	if err == nil {
		now := time.Now().UTC()
		attempt.Status = entity.DeliverySent
		attempt.SentAt = &now
		attempt.NextRetryAt = nil
		attempt.LastError = sql.NullString{}
		if updateErr := d.attempts.Update(ctx, attempt); updateErr != nil {
			d.logger.Error("Failed to persist sent attempt", logger.ErrorField(updateErr), logger.Field("attempt_id", attempt.ID))
		}
		d.logger.Info("Delivery sent",
			logger.Field("firing_event_id", attempt.FiringEventID),
			logger.StringField("channel", string(attempt.Channel)),
			logger.IntField("attempts", attempt.Attempts))
		return
	}

	if channel.IsPermanent(err) {
		d.deadLetter(ctx, attempt, delivery, err)
		return
	}

	// Transient failure, including timeouts: back off and retry up to the cap.
	if attempt.Attempts >= d.cfg.Engine.MaxDeliveryAttempts {
		d.deadLetter(ctx, attempt, delivery, err)
		return
	}

	retryAt := time.Now().UTC().Add(utils.BackoffDuration(attempt.Attempts, d.cfg.Engine.RetryBackoffBase, d.cfg.Engine.RetryBackoffMax))
	attempt.Status = entity.DeliveryFailed
	attempt.LastError = sql.NullString{String: err.Error(), Valid: true}
	attempt.NextRetryAt = &retryAt
	if updateErr := d.attempts.Update(ctx, attempt); updateErr != nil {
		d.logger.Error("Failed to persist failed attempt", logger.ErrorField(updateErr), logger.Field("attempt_id", attempt.ID))
		return
	}
	d.logger.Warn("Delivery failed, scheduled for retry",
		logger.ErrorField(err),
		logger.Field("firing_event_id", attempt.FiringEventID),
		logger.StringField("channel", string(attempt.Channel)),
		logger.IntField("attempts", attempt.Attempts),
		logger.Field("next_retry_at", retryAt))
}

// deadLetter terminates the attempt and surfaces it on the operational queue.
// It never re-fires the underlying threshold.
func (d *deliveryDispatcher) deadLetter(ctx context.Context, attempt *entity.DeliveryAttempt, delivery channel.Delivery, cause error) {
	attempt.Status = entity.DeliveryDeadlettered
	attempt.LastError = sql.NullString{String: cause.Error(), Valid: true}
	attempt.NextRetryAt = nil
	if err := d.attempts.Update(ctx, attempt); err != nil {
		d.logger.Error("Failed to persist dead-lettered attempt", logger.ErrorField(err), logger.Field("attempt_id", attempt.ID))
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"attempt_id":      attempt.ID,
		"firing_event_id": attempt.FiringEventID,
		"channel":         attempt.Channel,
		"user_id":         delivery.UserID,
		"symbol":          delivery.Payload.Symbol,
		"threshold_kind":  delivery.Payload.ThresholdKind,
		"attempts":        attempt.Attempts,
		"last_error":      cause.Error(),
	})
	if err == nil {
		if xerr := d.redisClient.XAdd(ctx, &goRedis.XAddArgs{
			Stream: common.RedisStreamDeliveryDeadLetter,
			Values: map[string]interface{}{"payload": string(body)},
		}).Err(); xerr != nil {
			d.logger.Error("Failed to publish dead letter", logger.ErrorField(xerr), logger.Field("attempt_id", attempt.ID))
		}
	}

	if d.opsNotifier != nil {
		msg := telegram.FormatDeadLetterForTelegram(
			delivery.Payload.Symbol,
			string(delivery.Payload.ThresholdKind),
			string(attempt.Channel),
			delivery.UserID,
			attempt.Attempts,
			cause.Error(),
			time.Now().UTC(),
		)
		if err := d.opsNotifier.SendMessage(msg); err != nil {
			d.logger.Error("Failed to notify operators of dead letter", logger.ErrorField(err), logger.Field("attempt_id", attempt.ID))
		}
	}

	d.logger.Error("Delivery dead-lettered",
		logger.ErrorField(cause),
		logger.Field("firing_event_id", attempt.FiringEventID),
		logger.StringField("channel", string(attempt.Channel)),
		logger.IntField("attempts", attempt.Attempts))
}
