package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/channel"
	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/entity"
)

type fakeStockAlertsRepo struct {
	mu     sync.Mutex
	alerts map[uint]*entity.StockAlert
}

func newFakeStockAlertsRepo(alerts ...*entity.StockAlert) *fakeStockAlertsRepo {
	r := &fakeStockAlertsRepo{alerts: make(map[uint]*entity.StockAlert)}
	for _, a := range alerts {
		r.alerts[a.ID] = a
	}
	return r
}

func (r *fakeStockAlertsRepo) FindByID(_ context.Context, id uint) (*entity.StockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeStockAlertsRepo) FindBySymbol(_ context.Context, symbol string) (*entity.StockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.Symbol == symbol {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeStockAlertsRepo) GetAll(_ context.Context) ([]entity.StockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.StockAlert
	for _, a := range r.alerts {
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeStockAlertsRepo) Save(_ context.Context, alert *entity.StockAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if alert.ID == 0 {
		alert.ID = uint(len(r.alerts) + 1)
	}
	cp := *alert
	r.alerts[alert.ID] = &cp
	return nil
}

func (r *fakeStockAlertsRepo) UpdatePrice(_ context.Context, id uint, price decimal.Decimal, observedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.CurrentPrice = decimal.NullDecimal{Decimal: price, Valid: true}
	at := observedAt
	a.LastObservedAt = &at
	return nil
}

type markFiredCall struct {
	preferenceID uint
	kind         entity.ThresholdKind
	revision     int
}

type fakePreferencesRepo struct {
	mu         sync.Mutex
	prefs      map[uint]*entity.NotificationPreference
	nextID     uint
	saveCalls  int
	firedCalls []markFiredCall
}

func newFakePreferencesRepo(prefs ...*entity.NotificationPreference) *fakePreferencesRepo {
	r := &fakePreferencesRepo{prefs: make(map[uint]*entity.NotificationPreference), nextID: 1}
	for _, p := range prefs {
		if p.ID == 0 {
			p.ID = r.nextID
		}
		if p.ID >= r.nextID {
			r.nextID = p.ID + 1
		}
		r.prefs[p.ID] = p
	}
	return r
}

func copyPref(p *entity.NotificationPreference) *entity.NotificationPreference {
	cp := *p
	cp.Thresholds = make([]entity.ThresholdSetting, len(p.Thresholds))
	copy(cp.Thresholds, p.Thresholds)
	return &cp
}

func (r *fakePreferencesRepo) Get(_ context.Context, param dto.GetPreferencesParam) ([]entity.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.NotificationPreference
	for _, p := range r.prefs {
		if param.UserID != nil && p.UserID != *param.UserID {
			continue
		}
		if param.StockAlertID != nil && p.StockAlertID != *param.StockAlertID {
			continue
		}
		out = append(out, *copyPref(p))
	}
	return out, nil
}

func (r *fakePreferencesRepo) FindByUserAndAlert(_ context.Context, userID, stockAlertID uint) (*entity.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prefs {
		if p.UserID == userID && p.StockAlertID == stockAlertID {
			return copyPref(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePreferencesRepo) Save(_ context.Context, pref *entity.NotificationPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if pref.ID == 0 {
		pref.ID = r.nextID
		r.nextID++
	}
	r.prefs[pref.ID] = copyPref(pref)
	return nil
}

func (r *fakePreferencesRepo) MarkFired(_ context.Context, preferenceID uint, kind entity.ThresholdKind, revision int, firedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firedCalls = append(r.firedCalls, markFiredCall{preferenceID: preferenceID, kind: kind, revision: revision})
	p, ok := r.prefs[preferenceID]
	if !ok {
		return nil
	}
	for i := range p.Thresholds {
		t := &p.Thresholds[i]
		if t.Kind == kind && t.Revision == revision {
			t.State = entity.ThresholdFired
			at := firedAt
			t.FiredAt = &at
		}
	}
	return nil
}

type firingKey struct {
	userID       uint
	stockAlertID uint
	kind         entity.ThresholdKind
	revision     int
}

type fakeFiringEventsRepo struct {
	mu          sync.Mutex
	events      map[firingKey]*entity.FiringEvent
	nextID      uint
	failures    int
	createCalls int
}

func newFakeFiringEventsRepo() *fakeFiringEventsRepo {
	return &fakeFiringEventsRepo{events: make(map[firingKey]*entity.FiringEvent), nextID: 1}
}

func (r *fakeFiringEventsRepo) CreateIfAbsent(_ context.Context, event *entity.FiringEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.failures > 0 {
		r.failures--
		return false, fmt.Errorf("connection reset")
	}
	key := firingKey{event.UserID, event.StockAlertID, event.ThresholdKind, event.Revision}
	if existing, ok := r.events[key]; ok {
		*event = *existing
		return false, nil
	}
	event.ID = r.nextID
	r.nextID++
	cp := *event
	r.events[key] = &cp
	return true, nil
}

func (r *fakeFiringEventsRepo) FindByID(_ context.Context, id uint) (*entity.FiringEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeFiringEventsRepo) FindByUser(_ context.Context, userID uint) ([]entity.FiringEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.FiringEvent
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeFiringEventsRepo) FindUndispatched(_ context.Context, limit int) ([]entity.FiringEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.FiringEvent
	for _, e := range r.events {
		if e.DispatchedAt == nil {
			out = append(out, *e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeFiringEventsRepo) MarkDispatched(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			t := at
			e.DispatchedAt = &t
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeFiringEventsRepo) all() []entity.FiringEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.FiringEvent
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out
}

type fakeUserSettingsRepo struct {
	mu       sync.Mutex
	settings map[uint]*entity.UserSetting
}

func newFakeUserSettingsRepo(settings ...*entity.UserSetting) *fakeUserSettingsRepo {
	r := &fakeUserSettingsRepo{settings: make(map[uint]*entity.UserSetting)}
	for _, s := range settings {
		r.settings[s.UserID] = s
	}
	return r
}

func (r *fakeUserSettingsRepo) FindByUserID(_ context.Context, userID uint) (*entity.UserSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeUserSettingsRepo) Save(_ context.Context, setting *entity.UserSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *setting
	r.settings[setting.UserID] = &cp
	return nil
}

type attemptKey struct {
	eventID uint
	channel entity.Channel
}

type fakeDeliveryAttemptsRepo struct {
	mu       sync.Mutex
	attempts map[attemptKey]*entity.DeliveryAttempt
	nextID   uint
}

func newFakeDeliveryAttemptsRepo() *fakeDeliveryAttemptsRepo {
	return &fakeDeliveryAttemptsRepo{attempts: make(map[attemptKey]*entity.DeliveryAttempt), nextID: 1}
}

func (r *fakeDeliveryAttemptsRepo) CreateIfAbsent(_ context.Context, attempt *entity.DeliveryAttempt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attemptKey{attempt.FiringEventID, attempt.Channel}
	if existing, ok := r.attempts[key]; ok {
		*attempt = *existing
		return false, nil
	}
	attempt.ID = r.nextID
	r.nextID++
	cp := *attempt
	r.attempts[key] = &cp
	return true, nil
}

func (r *fakeDeliveryAttemptsRepo) Update(_ context.Context, attempt *entity.DeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *attempt
	r.attempts[attemptKey{attempt.FiringEventID, attempt.Channel}] = &cp
	return nil
}

func (r *fakeDeliveryAttemptsRepo) FindByID(_ context.Context, id uint) (*entity.DeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeDeliveryAttemptsRepo) Get(_ context.Context, param dto.GetDeliveryAttemptsParam) ([]entity.DeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.DeliveryAttempt
	for _, a := range r.attempts {
		if param.FiringEventID != nil && a.FiringEventID != *param.FiringEventID {
			continue
		}
		if len(param.Statuses) > 0 {
			match := false
			for _, s := range param.Statuses {
				if a.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeDeliveryAttemptsRepo) FindDue(_ context.Context, now time.Time, limit int) ([]entity.DeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.DeliveryAttempt
	for _, a := range r.attempts {
		if a.Status == entity.DeliveryFailed && a.NextRetryAt != nil && !a.NextRetryAt.After(now) {
			out = append(out, *a)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeDeliveryAttemptsRepo) get(eventID uint, ch entity.Channel) *entity.DeliveryAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptKey{eventID, ch}]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// fakeAdapter returns the scripted errors in order, then succeeds.
type fakeAdapter struct {
	mu      sync.Mutex
	ch      entity.Channel
	errs    []error
	sends   int
	lastMsg channel.Delivery
}

func (a *fakeAdapter) Channel() entity.Channel { return a.ch }

func (a *fakeAdapter) Send(_ context.Context, d channel.Delivery) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sends++
	a.lastMsg = d
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		return err
	}
	return nil
}

func (a *fakeAdapter) sendCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sends
}

type fakeDispatcher struct {
	mu       sync.Mutex
	enqueued []entity.FiringEvent
}

func (d *fakeDispatcher) Start(context.Context)                         {}
func (d *fakeDispatcher) Stop()                                         {}
func (d *fakeDispatcher) Dispatch(context.Context, *entity.FiringEvent) {}
func (d *fakeDispatcher) ProcessRetries(context.Context)                {}

func (d *fakeDispatcher) Enqueue(event entity.FiringEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueued = append(d.enqueued, event)
}

func (d *fakeDispatcher) events() []entity.FiringEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]entity.FiringEvent, len(d.enqueued))
	copy(out, d.enqueued)
	return out
}
