package subscription_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/subscription"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeSource is a scripted subscription.Source.
type fakeSource struct {
	mu       sync.Mutex
	provider subscription.Provider
	notif    subscription.Notification
	parseErr error
	resource *subscription.Resource
	fetchErr error
	fetches  int
}

func (s *fakeSource) Provider() subscription.Provider { return s.provider }

func (s *fakeSource) ParseNotification(_ *http.Request, _ []byte) (subscription.Notification, error) {
	if s.parseErr != nil {
		return subscription.Notification{}, s.parseErr
	}
	return s.notif, nil
}

func (s *fakeSource) Fetch(_ context.Context, _ subscription.Notification) (*subscription.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	res := *s.resource
	if s.resource.Payment != nil {
		p := *s.resource.Payment
		res.Payment = &p
	}
	return &res, nil
}

func (s *fakeSource) MapStatus(native string) subscription.Status {
	return subscription.StatusMapping{
		"active":   subscription.StatusActive,
		"past_due": subscription.StatusPastDue,
		"canceled": subscription.StatusCanceled,
		"paused":   subscription.StatusPaused,
	}.Map(native)
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// recordingEscalator keeps every escalated item.
type recordingEscalator struct {
	mu    sync.Mutex
	items []subscription.ReviewItem
}

func (e *recordingEscalator) Escalate(_ context.Context, item subscription.ReviewItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, item)
	return nil
}

// mapLedger is a minimal in-test Ledger; failErr makes every call fail.
type mapLedger struct {
	mu      sync.Mutex
	keys    map[string]bool
	failErr error
}

func newMapLedger() *mapLedger { return &mapLedger{keys: make(map[string]bool)} }

func (l *mapLedger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return false, l.failErr
	}
	return l.keys[key], nil
}

func (l *mapLedger) Mark(_ context.Context, key string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return l.failErr
	}
	l.keys[key] = true
	return nil
}

// failingCounter wraps a store and fails usage counts for the listed kinds.
type failingCounter struct {
	*subscription.MemoryStore
	fail map[subscription.ResourceKind]bool
}

var errCountFailed = errors.New("count failed")

func (f failingCounter) CountUsage(ctx context.Context, businessID uuid.UUID, kind subscription.ResourceKind, now time.Time) (int64, error) {
	if f.fail[kind] {
		return 0, errCountFailed
	}
	return f.MemoryStore.CountUsage(ctx, businessID, kind, now)
}

func seed(store *subscription.MemoryStore, plan subscription.PlanType, status subscription.Status, mutate ...func(*subscription.SubscriptionInfo)) uuid.UUID {
	id := uuid.New()
	limits, err := subscription.MustDefaultCatalog().Limits(plan)
	if err != nil {
		panic(err)
	}
	sub := &subscription.SubscriptionInfo{
		BusinessID:             id,
		Provider:               subscription.ProviderStripe,
		ProviderSubscriptionID: "sub_" + id.String()[:8],
		Plan:                   plan,
		Cycle:                  subscription.CycleMonthly,
		Status:                 status,
		CurrentPeriodStart:     testNow.AddDate(0, 0, -10),
		CurrentPeriodEnd:       testNow.AddDate(0, 0, 20),
		Amount:                 2900,
		Currency:               "USD",
		Limits:                 limits,
		CreatedAt:              testNow.AddDate(0, 0, -10),
		UpdatedAt:              testNow.AddDate(0, 0, -10),
	}
	for _, m := range mutate {
		m(sub)
	}
	if err := store.UpsertSubscription(context.Background(), sub); err != nil {
		panic(err)
	}
	return id
}
