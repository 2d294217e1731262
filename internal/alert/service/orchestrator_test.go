package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
)

type orchestratorFixture struct {
	orchestrator *alertOrchestrator
	alerts       *fakeStockAlertsRepo
	prefs        *fakePreferencesRepo
	events       *fakeFiringEventsRepo
	dispatcher   *fakeDispatcher
}

func newOrchestratorFixture(prefs ...*entity.NotificationPreference) *orchestratorFixture {
	cfg := &config.Config{Engine: config.Engine{LaneBufferSize: 8, EvalConcurrency: 4}}
	alertsRepo := newFakeStockAlertsRepo(testAlert())
	prefsRepo := newFakePreferencesRepo(prefs...)
	eventsRepo := newFakeFiringEventsRepo()
	dispatcher := &fakeDispatcher{}
	ledger := NewFiringLedger(eventsRepo, logger.NewNop(), 1, time.Millisecond)

	o := NewAlertOrchestrator(cfg, alertsRepo, prefsRepo, eventsRepo, NewCrossingEvaluator(), ledger, dispatcher, logger.NewNop()).(*alertOrchestrator)
	o.ctx = context.Background()

	return &orchestratorFixture{
		orchestrator: o,
		alerts:       alertsRepo,
		prefs:        prefsRepo,
		events:       eventsRepo,
		dispatcher:   dispatcher,
	}
}

func tick(price string, at time.Time) dto.PriceTick {
	return dto.PriceTick{Symbol: "ACME", Price: dec(price), ObservedAt: at}
}

func TestProcessTickSequenceFiresEachThresholdOnce(t *testing.T) {
	pref := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{
			{Kind: entity.ThresholdTarget1, Channels: entity.ChannelSet{Web: true}, State: entity.ThresholdArmed, Revision: 1},
			{Kind: entity.ThresholdBuyZoneHigh, Channels: entity.ChannelSet{Email: true}, State: entity.ThresholdArmed, Revision: 1},
		},
	}
	f := newOrchestratorFixture(pref)
	ctx := context.Background()
	t0 := time.Now().UTC()

	// First observation only seeds the reference price.
	f.orchestrator.processTick(ctx, tick("102", t0))
	assert.Empty(t, f.dispatcher.events())

	alert, err := f.alerts.FindBySymbol(ctx, "ACME")
	require.NoError(t, err)
	require.True(t, alert.CurrentPrice.Valid)
	assert.True(t, alert.CurrentPrice.Decimal.Equal(dec("102")))

	// Drop through the buy zone ceiling.
	f.orchestrator.processTick(ctx, tick("96", t0.Add(time.Second)))
	events := f.dispatcher.events()
	require.Len(t, events, 1)
	assert.Equal(t, entity.ThresholdBuyZoneHigh, events[0].ThresholdKind)

	// The fired threshold stays quiet on later motion; target 1 fires fresh.
	f.orchestrator.processTick(ctx, tick("120", t0.Add(2*time.Second)))
	events = f.dispatcher.events()
	require.Len(t, events, 2)
	assert.Equal(t, entity.ThresholdTarget1, events[1].ThresholdKind)

	// Denormalized state followed the ledger.
	stored, err := f.prefs.FindByUserAndAlert(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.ThresholdFired, stored.Threshold(entity.ThresholdTarget1).State)
	assert.Equal(t, entity.ThresholdFired, stored.Threshold(entity.ThresholdBuyZoneHigh).State)
}

func TestProcessTickUnknownSymbolIsDropped(t *testing.T) {
	f := newOrchestratorFixture()

	f.orchestrator.processTick(context.Background(), dto.PriceTick{Symbol: "NOPE", Price: dec("10"), ObservedAt: time.Now().UTC()})

	assert.Empty(t, f.dispatcher.events())
}

func TestProcessTickStaleObservationIsDropped(t *testing.T) {
	pref := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{
			{Kind: entity.ThresholdBuyZoneLow, Channels: entity.ChannelSet{Web: true}, State: entity.ThresholdArmed, Revision: 1},
		},
	}
	f := newOrchestratorFixture(pref)
	ctx := context.Background()
	t0 := time.Now().UTC()

	f.orchestrator.processTick(ctx, tick("100", t0))

	// An older observation arriving late must not rewind the price or fire.
	f.orchestrator.processTick(ctx, tick("90", t0.Add(-time.Minute)))

	alert, err := f.alerts.FindBySymbol(ctx, "ACME")
	require.NoError(t, err)
	assert.True(t, alert.CurrentPrice.Decimal.Equal(dec("100")))
	assert.Empty(t, f.dispatcher.events())
}

func TestProcessTickWithholdsPriceOnCommitFailure(t *testing.T) {
	pref := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{
			{Kind: entity.ThresholdTarget1, Channels: entity.ChannelSet{Web: true}, State: entity.ThresholdArmed, Revision: 1},
		},
	}
	f := newOrchestratorFixture(pref)
	ctx := context.Background()
	t0 := time.Now().UTC()

	f.orchestrator.processTick(ctx, tick("100", t0))

	// The ledger write fails: no dispatch, and the reference price must stay
	// at 100 so the next tick re-detects the crossing.
	f.events.failures = 10
	f.orchestrator.processTick(ctx, tick("121", t0.Add(time.Second)))
	assert.Empty(t, f.dispatcher.events())

	alert, err := f.alerts.FindBySymbol(ctx, "ACME")
	require.NoError(t, err)
	assert.True(t, alert.CurrentPrice.Decimal.Equal(dec("100")))

	// Storage recovers; the same observation now fires exactly once.
	f.events.failures = 0
	f.orchestrator.processTick(ctx, tick("121", t0.Add(time.Second)))
	require.Len(t, f.dispatcher.events(), 1)

	alert, err = f.alerts.FindBySymbol(ctx, "ACME")
	require.NoError(t, err)
	assert.True(t, alert.CurrentPrice.Decimal.Equal(dec("121")))
}

func TestEvaluatePreferenceReplayDoesNotDuplicate(t *testing.T) {
	pref := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{
			{Kind: entity.ThresholdTarget1, Channels: entity.ChannelSet{Web: true}, State: entity.ThresholdArmed, Revision: 1},
		},
	}
	f := newOrchestratorFixture(pref)
	ctx := context.Background()

	alert := testAlert()
	alert.CurrentPrice = nullDec("100")
	redelivered := tick("125", time.Now().UTC())

	// The same tick delivered twice against the same reference price, as after
	// a consumer redelivery. The ledger deduplicates; delivery happens once.
	loaded, err := f.prefs.FindByUserAndAlert(ctx, 42, 1)
	require.NoError(t, err)
	assert.True(t, f.orchestrator.evaluatePreference(ctx, alert, loaded, redelivered))
	assert.True(t, f.orchestrator.evaluatePreference(ctx, alert, loaded, redelivered))

	assert.Len(t, f.dispatcher.events(), 1)
	assert.Len(t, f.events.all(), 1)
}

func TestRearmedThresholdFiresAgainUnderNewRevision(t *testing.T) {
	pref := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{
			{Kind: entity.ThresholdBuyLimit, LimitPrice: nullDec("92"), Channels: entity.ChannelSet{SMS: true}, State: entity.ThresholdArmed, Revision: 1},
		},
	}
	f := newOrchestratorFixture(pref)
	ctx := context.Background()
	t0 := time.Now().UTC()

	f.orchestrator.processTick(ctx, tick("95", t0))
	f.orchestrator.processTick(ctx, tick("91", t0.Add(time.Second)))
	require.Len(t, f.dispatcher.events(), 1)

	// The user edits the limit; the bumped revision re-arms the threshold.
	stored, err := f.prefs.FindByUserAndAlert(ctx, 42, 1)
	require.NoError(t, err)
	setting := stored.Threshold(entity.ThresholdBuyLimit)
	setting.LimitPrice = nullDec("90")
	setting.State = entity.ThresholdArmed
	setting.Revision = 2
	setting.FiredAt = nil
	require.NoError(t, f.prefs.Save(ctx, stored))

	f.orchestrator.processTick(ctx, tick("93", t0.Add(2*time.Second)))
	f.orchestrator.processTick(ctx, tick("89", t0.Add(3*time.Second)))

	events := f.dispatcher.events()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Revision)
	assert.Equal(t, 2, events[1].Revision)
}

func TestResumePendingEnqueuesUndispatchedEvents(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	pending := testEvent()
	_, err := f.events.CreateIfAbsent(ctx, pending)
	require.NoError(t, err)

	done := testEvent()
	done.ThresholdKind = entity.ThresholdTarget2
	_, err = f.events.CreateIfAbsent(ctx, done)
	require.NoError(t, err)
	require.NoError(t, f.events.MarkDispatched(ctx, done.ID, time.Now().UTC()))

	f.orchestrator.ResumePending(ctx)

	events := f.dispatcher.events()
	require.Len(t, events, 1)
	assert.Equal(t, pending.ID, events[0].ID)
}

func TestHandleTickRunsOnSymbolLane(t *testing.T) {
	pref := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{
			{Kind: entity.ThresholdTarget1, Channels: entity.ChannelSet{Web: true}, State: entity.ThresholdArmed, Revision: 1},
		},
	}
	f := newOrchestratorFixture(pref)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.orchestrator.Start(ctx)
	defer f.orchestrator.Stop()

	t0 := time.Now().UTC()
	f.orchestrator.HandleTick(ctx, tick("100", t0))
	f.orchestrator.HandleTick(ctx, tick("125", t0.Add(time.Second)))

	assert.Eventually(t, func() bool {
		return len(f.dispatcher.events()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
