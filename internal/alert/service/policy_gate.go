package service

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
)

// Capabilities consulted by the policy gate.
const (
	CapabilityCustomTarget = "alerts.custom_target"
	CapabilityBuyLimit     = "alerts.buy_limit"
)

// CapabilityOracle answers tier/permission questions. The engine never looks
// at how tiers are stored; it only asks this narrow interface.
type CapabilityOracle interface {
	HasCapability(ctx context.Context, userID uint, capability string) (bool, error)
}

// tierOracle derives capabilities from the stored membership tier, with a
// short-lived cache so the hot dispatch path does not hit the database for
// every delivery.
type tierOracle struct {
	settings repository.UserSettingsRepository
	cache    *cache.Cache
}

// NewTierOracle creates a CapabilityOracle backed by user settings.
func NewTierOracle(settings repository.UserSettingsRepository, ttl time.Duration) CapabilityOracle {
	return &tierOracle{
		settings: settings,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (o *tierOracle) HasCapability(ctx context.Context, userID uint, capability string) (bool, error) {
	switch capability {
	case CapabilityCustomTarget, CapabilityBuyLimit:
	default:
		return false, fmt.Errorf("unknown capability: %s", capability)
	}

	cacheKey := fmt.Sprintf("tier:%d", userID)
	if tier, found := o.cache.Get(cacheKey); found {
		return tier.(entity.MembershipTier).AtLeast(entity.TierPaid), nil
	}

	setting, err := o.settings.FindByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	o.cache.Set(cacheKey, setting.Tier, cache.DefaultExpiration)

	return setting.Tier.AtLeast(entity.TierPaid), nil
}

// PolicyGate composes the tier capability check with the two-level channel
// enablement policy. Channel decisions are pure functions of the inputs, so
// the dispatcher re-evaluates them at send time to honor settings changed
// between firing and delivery.
type PolicyGate struct {
	oracle CapabilityOracle
	logger *logger.Logger
}

// NewPolicyGate creates a new PolicyGate.
func NewPolicyGate(oracle CapabilityOracle, log *logger.Logger) *PolicyGate {
	return &PolicyGate{
		oracle: oracle,
		logger: log,
	}
}

// MayConfigure reports whether the user's tier allows configuring the given
// threshold kind.
func (g *PolicyGate) MayConfigure(ctx context.Context, userID uint, kind entity.ThresholdKind) (bool, error) {
	if !kind.RequiresPaidTier() {
		return true, nil
	}
	capability := CapabilityCustomTarget
	if kind == entity.ThresholdBuyLimit {
		capability = CapabilityBuyLimit
	}
	return g.oracle.HasCapability(ctx, userID, capability)
}

// AllowedChannels returns the channels a firing may be delivered on: a channel
// is enabled iff the global master switch and the per-threshold toggle both
// are. Global settings win without touching per-stock configuration.
func (g *PolicyGate) AllowedChannels(global entity.ChannelSet, threshold entity.ChannelSet) []entity.Channel {
	var allowed []entity.Channel
	for _, ch := range entity.AllChannels() {
		if global.Enabled(ch) && threshold.Enabled(ch) {
			allowed = append(allowed, ch)
		}
	}
	return allowed
}
