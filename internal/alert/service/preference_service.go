package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
)

// PreferenceService implements the preference write API. All validation and
// tier gating happens before any mutation: a rejected write leaves the stored
// preference untouched, so a disallowed threshold never exists for a free
// user and never reaches evaluation.
type PreferenceService interface {
	Update(ctx context.Context, userID, stockAlertID uint, req *dto.UpdatePreferenceRequest) (*dto.PreferenceResponse, error)
	Get(ctx context.Context, userID, stockAlertID uint) (*dto.PreferenceResponse, error)
}

// NewPreferenceService creates a new PreferenceService.
func NewPreferenceService(
	prefs repository.NotificationPreferencesRepository,
	alerts repository.StockAlertsRepository,
	policy *PolicyGate,
	log *logger.Logger,
) PreferenceService {
	return &preferenceService{
		prefs:  prefs,
		alerts: alerts,
		policy: policy,
		logger: log,
	}
}

type preferenceService struct {
	prefs  repository.NotificationPreferencesRepository
	alerts repository.StockAlertsRepository
	policy *PolicyGate
	logger *logger.Logger
}

func (s *preferenceService) Get(ctx context.Context, userID, stockAlertID uint) (*dto.PreferenceResponse, error) {
	alert, err := s.alerts.FindByID(ctx, stockAlertID)
	if err != nil {
		return nil, err
	}
	pref, err := s.prefs.FindByUserAndAlert(ctx, userID, stockAlertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.PreferenceResponse{UserID: userID, StockAlertID: stockAlertID, Symbol: alert.Symbol}, nil
		}
		return nil, err
	}
	return dto.NewPreferenceResponse(pref, alert), nil
}

func (s *preferenceService) Update(ctx context.Context, userID, stockAlertID uint, req *dto.UpdatePreferenceRequest) (*dto.PreferenceResponse, error) {
	alert, err := s.alerts.FindByID(ctx, stockAlertID)
	if err != nil {
		return nil, err
	}

	pref, err := s.prefs.FindByUserAndAlert(ctx, userID, stockAlertID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// First configuration for this (user, alert) pair.
		pref = &entity.NotificationPreference{UserID: userID, StockAlertID: stockAlertID}
	}

	merged, err := s.mergeAndValidate(ctx, userID, pref, req)
	if err != nil {
		return nil, err
	}

	pref.Thresholds = merged
	if err := s.prefs.Save(ctx, pref); err != nil {
		return nil, err
	}

	s.logger.Info("Notification preference saved",
		logger.Field("user_id", userID),
		logger.Field("stock_alert_id", stockAlertID))

	return dto.NewPreferenceResponse(pref, alert), nil
}

// mergeAndValidate computes the post-write threshold set without mutating the
// stored one, rejecting the whole write on the first violation.
func (s *preferenceService) mergeAndValidate(ctx context.Context, userID uint, pref *entity.NotificationPreference, req *dto.UpdatePreferenceRequest) ([]entity.ThresholdSetting, error) {
	merged := make([]entity.ThresholdSetting, len(pref.Thresholds))
	copy(merged, pref.Thresholds)

	indexOf := func(kind entity.ThresholdKind) int {
		for i := range merged {
			if merged[i].Kind == kind {
				return i
			}
		}
		return -1
	}

	for _, kind := range entity.AllThresholdKinds() {
		update, ok := req.Thresholds[kind]
		if !ok {
			continue
		}

		allowed, err := s.policy.MayConfigure(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, dto.NewTierRestrictedError(kind)
		}

		idx := indexOf(kind)
		if idx < 0 {
			merged = append(merged, entity.ThresholdSetting{Kind: kind, Revision: 1, State: entity.ThresholdArmed})
			idx = len(merged) - 1
		}
		setting := &merged[idx]

		if update.Channels != nil {
			setting.Channels = *update.Channels
		}

		// A specification edit re-arms this kind only; editing channels or
		// other kinds leaves the arm/fire state alone.
		if update.CustomPercent != nil && specChanged(setting.CustomPercent, *update.CustomPercent) {
			setting.CustomPercent = decimal.NullDecimal{Decimal: *update.CustomPercent, Valid: true}
			s.rearm(setting)
		}
		if update.LimitPrice != nil && specChanged(setting.LimitPrice, *update.LimitPrice) {
			setting.LimitPrice = decimal.NullDecimal{Decimal: *update.LimitPrice, Valid: true}
			s.rearm(setting)
		}

		if err := validateThreshold(setting); err != nil {
			return nil, err
		}
	}

	// Also reject unknown kinds so typos do not get silently ignored.
	for kind := range req.Thresholds {
		if !kind.IsValid() {
			return nil, dto.NewInvalidThresholdError(kind, "unknown threshold kind")
		}
	}

	return merged, nil
}

func (s *preferenceService) rearm(setting *entity.ThresholdSetting) {
	setting.Revision++
	setting.State = entity.ThresholdArmed
	setting.FiredAt = nil
}

func specChanged(current decimal.NullDecimal, next decimal.Decimal) bool {
	return !current.Valid || !current.Decimal.Equal(next)
}

// validateThreshold enforces the specification invariants of gated kinds: an
// enabled custom target needs a positive percent and an enabled buy limit a
// positive price.
func validateThreshold(setting *entity.ThresholdSetting) error {
	if !setting.Channels.Any() {
		return nil
	}
	switch setting.Kind {
	case entity.ThresholdCustomTarget:
		if !setting.CustomPercent.Valid || !setting.CustomPercent.Decimal.IsPositive() {
			return dto.NewInvalidThresholdError(setting.Kind, "custom_percent must be a positive number")
		}
	case entity.ThresholdBuyLimit:
		if !setting.LimitPrice.Valid || !setting.LimitPrice.Decimal.IsPositive() {
			return dto.NewInvalidThresholdError(setting.Kind, "limit_price must be a positive number")
		}
	}
	return nil
}
