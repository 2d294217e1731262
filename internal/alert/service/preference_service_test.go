package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
	"tradeedge-alerts/pkg/utils"
)

func newPreferenceFixture(tier entity.MembershipTier, prefs ...*entity.NotificationPreference) (PreferenceService, *fakePreferencesRepo) {
	alerts := newFakeStockAlertsRepo(testAlert())
	prefsRepo := newFakePreferencesRepo(prefs...)
	settings := newFakeUserSettingsRepo(&entity.UserSetting{UserID: 42, Tier: tier})
	gate := NewPolicyGate(NewTierOracle(settings, time.Minute), logger.NewNop())
	return NewPreferenceService(prefsRepo, alerts, gate, logger.NewNop()), prefsRepo
}

func TestUpdateCreatesPreference(t *testing.T) {
	svc, prefsRepo := newPreferenceFixture(entity.TierFree)

	resp, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdTarget1: {Channels: &entity.ChannelSet{Web: true, Email: true}},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Thresholds, 1)
	assert.Equal(t, entity.ThresholdTarget1, resp.Thresholds[0].Kind)
	assert.Equal(t, entity.ThresholdArmed, resp.Thresholds[0].State)
	assert.Equal(t, "ACME", resp.Symbol)

	stored, err := prefsRepo.FindByUserAndAlert(context.Background(), 42, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.Threshold(entity.ThresholdTarget1))
	assert.Equal(t, 1, stored.Threshold(entity.ThresholdTarget1).Revision)
}

func TestUpdateRejectsGatedKindsForFreeTier(t *testing.T) {
	svc, prefsRepo := newPreferenceFixture(entity.TierFree)

	pct := dec("10")
	_, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdCustomTarget: {
				Channels:      &entity.ChannelSet{Web: true},
				CustomPercent: &pct,
			},
		},
	})

	assert.True(t, dto.IsTierRestricted(err))
	// A rejected write must not leave anything behind.
	assert.Zero(t, prefsRepo.saveCalls)
	_, err = prefsRepo.FindByUserAndAlert(context.Background(), 42, 1)
	assert.Error(t, err)
}

func TestUpdateRejectsWholeWriteOnOneViolation(t *testing.T) {
	svc, prefsRepo := newPreferenceFixture(entity.TierFree)

	limit := dec("90")
	_, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdTarget1:  {Channels: &entity.ChannelSet{Web: true}},
			entity.ThresholdBuyLimit: {Channels: &entity.ChannelSet{Web: true}, LimitPrice: &limit},
		},
	})

	assert.True(t, dto.IsTierRestricted(err))
	assert.Zero(t, prefsRepo.saveCalls, "the valid part of a rejected write must not be applied")
}

func TestUpdateAllowsGatedKindsForPaidTier(t *testing.T) {
	svc, _ := newPreferenceFixture(entity.TierPaid)

	pct := dec("15")
	limit := dec("92")
	resp, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdCustomTarget: {Channels: &entity.ChannelSet{Web: true}, CustomPercent: &pct},
			entity.ThresholdBuyLimit:     {Channels: &entity.ChannelSet{SMS: true}, LimitPrice: &limit},
		},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Thresholds, 2)
}

func TestUpdateRejectsIncompleteCustomTarget(t *testing.T) {
	svc, _ := newPreferenceFixture(entity.TierPaid)

	_, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdCustomTarget: {Channels: &entity.ChannelSet{Web: true}},
		},
	})
	assert.True(t, dto.IsInvalidThreshold(err))

	neg := dec("-5")
	_, err = svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdCustomTarget: {Channels: &entity.ChannelSet{Web: true}, CustomPercent: &neg},
		},
	})
	assert.True(t, dto.IsInvalidThreshold(err))
}

func TestUpdateRejectsUnknownKind(t *testing.T) {
	svc, _ := newPreferenceFixture(entity.TierFree)

	_, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdKind("target9"): {Channels: &entity.ChannelSet{Web: true}},
		},
	})

	assert.True(t, dto.IsInvalidThreshold(err))
}

func TestUpdateSpecEditRearmsFiredThreshold(t *testing.T) {
	firedAt := time.Now().UTC()
	existing := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{{
			Kind:          entity.ThresholdCustomTarget,
			CustomPercent: nullDec("10"),
			Channels:      entity.ChannelSet{Web: true},
			State:         entity.ThresholdFired,
			Revision:      1,
			FiredAt:       &firedAt,
		}},
	}
	svc, prefsRepo := newPreferenceFixture(entity.TierPaid, existing)

	pct := dec("12")
	resp, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdCustomTarget: {CustomPercent: &pct},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Thresholds, 1)
	assert.Equal(t, entity.ThresholdArmed, resp.Thresholds[0].State)
	assert.Nil(t, resp.Thresholds[0].FiredAt)

	stored, err := prefsRepo.FindByUserAndAlert(context.Background(), 42, 1)
	require.NoError(t, err)
	setting := stored.Threshold(entity.ThresholdCustomTarget)
	require.NotNil(t, setting)
	assert.Equal(t, 2, setting.Revision)
	assert.Equal(t, entity.ThresholdArmed, setting.State)
}

func TestUpdateChannelEditDoesNotRearm(t *testing.T) {
	firedAt := time.Now().UTC()
	existing := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{{
			Kind:     entity.ThresholdTarget1,
			Channels: entity.ChannelSet{Web: true},
			State:    entity.ThresholdFired,
			Revision: 1,
			FiredAt:  &firedAt,
		}},
	}
	svc, prefsRepo := newPreferenceFixture(entity.TierFree, existing)

	_, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdTarget1: {Channels: &entity.ChannelSet{Web: true, Email: true}},
		},
	})
	require.NoError(t, err)

	stored, err := prefsRepo.FindByUserAndAlert(context.Background(), 42, 1)
	require.NoError(t, err)
	setting := stored.Threshold(entity.ThresholdTarget1)
	require.NotNil(t, setting)
	assert.Equal(t, entity.ThresholdFired, setting.State)
	assert.Equal(t, 1, setting.Revision)
	assert.True(t, setting.Channels.Email)
}

func TestUpdateUnchangedSpecDoesNotRearm(t *testing.T) {
	existing := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{{
			Kind:          entity.ThresholdCustomTarget,
			CustomPercent: nullDec("10"),
			Channels:      entity.ChannelSet{Web: true},
			State:         entity.ThresholdFired,
			Revision:      3,
		}},
	}
	svc, prefsRepo := newPreferenceFixture(entity.TierPaid, existing)

	same := dec("10")
	_, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdCustomTarget: {CustomPercent: &same},
		},
	})
	require.NoError(t, err)

	stored, err := prefsRepo.FindByUserAndAlert(context.Background(), 42, 1)
	require.NoError(t, err)
	setting := stored.Threshold(entity.ThresholdCustomTarget)
	assert.Equal(t, 3, setting.Revision)
	assert.Equal(t, entity.ThresholdFired, setting.State)
}

func TestGetUnconfiguredPreferenceIsEmpty(t *testing.T) {
	svc, _ := newPreferenceFixture(entity.TierFree)

	resp, err := svc.Get(context.Background(), 42, 1)
	require.NoError(t, err)

	assert.Equal(t, uint(42), resp.UserID)
	assert.Equal(t, "ACME", resp.Symbol)
	assert.Empty(t, resp.Thresholds)
}

func TestGetUnknownAlertFails(t *testing.T) {
	svc, _ := newPreferenceFixture(entity.TierFree)

	_, err := svc.Get(context.Background(), 42, 999)
	assert.Error(t, err)
}

func TestUpdatePartialLeavesOtherKindsAlone(t *testing.T) {
	existing := &entity.NotificationPreference{
		UserID:       42,
		StockAlertID: 1,
		Thresholds: []entity.ThresholdSetting{
			{Kind: entity.ThresholdTarget1, Channels: entity.ChannelSet{Web: true}, State: entity.ThresholdArmed, Revision: 1},
			{Kind: entity.ThresholdBuyZoneLow, Channels: entity.ChannelSet{Email: true}, State: entity.ThresholdArmed, Revision: 1},
		},
	}
	svc, prefsRepo := newPreferenceFixture(entity.TierFree, existing)

	_, err := svc.Update(context.Background(), 42, 1, &dto.UpdatePreferenceRequest{
		Thresholds: map[entity.ThresholdKind]dto.ThresholdUpdate{
			entity.ThresholdTarget1: {Channels: utils.ToPointer(entity.ChannelSet{SMS: true})},
		},
	})
	require.NoError(t, err)

	stored, err := prefsRepo.FindByUserAndAlert(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.True(t, stored.Threshold(entity.ThresholdTarget1).Channels.SMS)
	assert.True(t, stored.Threshold(entity.ThresholdBuyZoneLow).Channels.Email)
}
