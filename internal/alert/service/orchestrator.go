package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
	"tradeedge-alerts/pkg/utils"
)

// AlertOrchestrator is the control loop binding evaluation, the ledger and
// dispatch together. Ticks for one symbol are processed on a single serial
// lane; lanes for different symbols run concurrently.
type AlertOrchestrator interface {
	Start(ctx context.Context)
	Stop()
	HandleTick(ctx context.Context, tick dto.PriceTick)
	ResumePending(ctx context.Context)
}

// NewAlertOrchestrator creates a new AlertOrchestrator.
func NewAlertOrchestrator(
	cfg *config.Config,
	alerts repository.StockAlertsRepository,
	prefs repository.NotificationPreferencesRepository,
	events repository.FiringEventsRepository,
	evaluator *CrossingEvaluator,
	ledger *FiringLedger,
	dispatcher DeliveryDispatcher,
	log *logger.Logger,
) AlertOrchestrator {
	return &alertOrchestrator{
		cfg:        cfg,
		alerts:     alerts,
		prefs:      prefs,
		events:     events,
		evaluator:  evaluator,
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     log,
		lanes:      make(map[string]chan dto.PriceTick),
		stopChan:   make(chan struct{}),
	}
}

type alertOrchestrator struct {
	cfg        *config.Config
	alerts     repository.StockAlertsRepository
	prefs      repository.NotificationPreferencesRepository
	events     repository.FiringEventsRepository
	evaluator  *CrossingEvaluator
	ledger     *FiringLedger
	dispatcher DeliveryDispatcher
	logger     *logger.Logger

	ctx      context.Context
	mu       sync.Mutex
	lanes    map[string]chan dto.PriceTick
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// Start records the run context for lazily created lanes.
func (o *alertOrchestrator) Start(ctx context.Context) {
	o.ctx = ctx
	o.logger.Info("Alert orchestrator started")
}

// Stop closes all lanes and waits for in-flight ticks to finish.
func (o *alertOrchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopChan) })
	o.wg.Wait()
	o.logger.Info("Alert orchestrator stopped")
}

// HandleTick routes the tick to its symbol lane, starting the lane on first
// use. Backpressure from a busy lane deliberately slows the caller rather
// than reordering ticks.
func (o *alertOrchestrator) HandleTick(ctx context.Context, tick dto.PriceTick) {
	lane := o.lane(tick.Symbol)
	select {
	case lane <- tick:
	case <-ctx.Done():
	case <-o.stopChan:
	}
}

func (o *alertOrchestrator) lane(symbol string) chan dto.PriceTick {
	o.mu.Lock()
	defer o.mu.Unlock()

	if lane, ok := o.lanes[symbol]; ok {
		return lane
	}

	lane := make(chan dto.PriceTick, o.cfg.Engine.LaneBufferSize)
	o.lanes[symbol] = lane
	o.wg.Add(1)
	utils.GoSafe(func() {
		defer o.wg.Done()
		o.runLane(symbol, lane)
	})
	o.logger.Info("Symbol lane started", logger.StringField("symbol", symbol))
	return lane
}

func (o *alertOrchestrator) runLane(symbol string, lane chan dto.PriceTick) {
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.stopChan:
			return
		case tick := <-lane:
			o.processTick(o.ctx, tick)
		}
	}
}

// processTick runs one tick through evaluate, commit and dispatch. The price
// update is last: a crash before it loses at most a pending delivery, never a
// duplicate or a missing fire.
func (o *alertOrchestrator) processTick(ctx context.Context, tick dto.PriceTick) {
	alert, err := o.alerts.FindBySymbol(ctx, tick.Symbol)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			o.logger.DebugContext(ctx, "Tick for unknown symbol dropped", logger.StringField("symbol", tick.Symbol))
			return
		}
		o.logger.Error("Failed to load stock alert", logger.ErrorField(err), logger.StringField("symbol", tick.Symbol))
		return
	}

	// Stale ticks would rewind currentPrice and fabricate crossings.
	if alert.LastObservedAt != nil && tick.ObservedAt.Before(*alert.LastObservedAt) {
		o.logger.DebugContext(ctx, "Stale tick dropped",
			logger.StringField("symbol", tick.Symbol),
			logger.Field("observed_at", tick.ObservedAt))
		return
	}

	prefs, err := o.prefs.Get(ctx, dto.GetPreferencesParam{StockAlertID: &alert.ID})
	if err != nil {
		o.logger.Error("Failed to load preferences for symbol", logger.ErrorField(err), logger.StringField("symbol", tick.Symbol))
		return
	}

	// Preferences are independent state, so evaluation fans out across a
	// bounded worker set while the lane itself stays serial.
	var (
		wg           sync.WaitGroup
		commitFailed atomic.Bool
		sem          = make(chan struct{}, o.cfg.Engine.EvalConcurrency)
	)
	for i := range prefs {
		pref := &prefs[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if !o.evaluatePreference(ctx, alert, pref, tick) {
				commitFailed.Store(true)
			}
		}()
	}
	wg.Wait()

	if commitFailed.Load() {
		// Keep the previous reference price so the next tick re-detects the
		// crossing and the commit is retried.
		o.logger.Warn("Ledger commit failed for at least one preference, price update withheld",
			logger.StringField("symbol", tick.Symbol))
		return
	}

	if err := o.alerts.UpdatePrice(ctx, alert.ID, tick.Price, tick.ObservedAt); err != nil {
		o.logger.Error("Failed to update current price", logger.ErrorField(err), logger.StringField("symbol", tick.Symbol))
	}
}

// evaluatePreference detects and commits crossings for one preference.
// Returns false when a ledger commit ultimately failed.
func (o *alertOrchestrator) evaluatePreference(ctx context.Context, alert *entity.StockAlert, pref *entity.NotificationPreference, tick dto.PriceTick) bool {
	crossings := o.evaluator.Evaluate(alert.CurrentPrice, tick.Price, alert, pref)
	ok := true

	for _, crossing := range crossings {
		payload := entity.FiringPayload{
			Symbol:         alert.Symbol,
			CompanyName:    alert.CompanyName,
			ThresholdKind:  crossing.Kind,
			ThresholdPrice: crossing.ThresholdPrice,
			CrossingPrice:  tick.Price,
			Direction:      crossing.Direction,
			ObservedAt:     tick.ObservedAt,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			o.logger.Error("Failed to marshal firing payload", logger.ErrorField(err), logger.StringField("symbol", alert.Symbol))
			ok = false
			continue
		}

		event := &entity.FiringEvent{
			UserID:        pref.UserID,
			StockAlertID:  alert.ID,
			ThresholdKind: crossing.Kind,
			Revision:      crossing.Setting.Revision,
			CrossingPrice: tick.Price,
			Payload:       body,
			FiredAt:       time.Now().UTC(),
		}

		isNew, err := o.ledger.Commit(ctx, event)
		if err != nil {
			o.logger.Error("Ledger commit failed", logger.ErrorField(err),
				logger.Field("user_id", pref.UserID),
				logger.StringField("symbol", alert.Symbol),
				logger.StringField("kind", string(crossing.Kind)))
			ok = false
			continue
		}
		if !isNew {
			// Duplicate detection of an already-recorded crossing; nothing to
			// deliver again.
			continue
		}

		if err := o.prefs.MarkFired(ctx, pref.ID, crossing.Kind, crossing.Setting.Revision, event.FiredAt); err != nil {
			o.logger.Error("Failed to mark threshold fired", logger.ErrorField(err),
				logger.Field("preference_id", pref.ID),
				logger.StringField("kind", string(crossing.Kind)))
		}

		o.logger.Info("Threshold fired",
			logger.Field("user_id", pref.UserID),
			logger.StringField("symbol", alert.Symbol),
			logger.StringField("kind", string(crossing.Kind)),
			logger.StringField("price", tick.Price.String()))

		o.dispatcher.Enqueue(*event)
	}

	return ok
}

// ResumePending re-enqueues committed events whose dispatch never completed.
// Crossings are not re-evaluated; the ledger is authoritative.
func (o *alertOrchestrator) ResumePending(ctx context.Context) {
	events, err := o.events.FindUndispatched(ctx, 100)
	if err != nil {
		o.logger.Error("Failed to scan undispatched firing events", logger.ErrorField(err))
		return
	}
	for _, event := range events {
		o.logger.Info("Resuming dispatch for firing event", logger.Field("firing_event_id", event.ID))
		o.dispatcher.Enqueue(event)
	}
}
