package subscription

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type usageKey struct {
	business uuid.UUID
	kind     ResourceKind
}

type paymentKey struct {
	provider Provider
	ref      string
}

// MemoryStore is an in-process Store for tests and local development.
// Values are copied on the way in and out so callers cannot mutate stored rows.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[uuid.UUID]SubscriptionInfo
	payments      map[paymentKey]PaymentHistory
	events        []SubscriptionEvent
	checkouts     map[uuid.UUID]PendingCheckout
	discounts     map[string]DiscountCode
	usage         map[usageKey]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[uuid.UUID]SubscriptionInfo),
		payments:      make(map[paymentKey]PaymentHistory),
		checkouts:     make(map[uuid.UUID]PendingCheckout),
		discounts:     make(map[string]DiscountCode),
		usage:         make(map[usageKey]int64),
	}
}

func (s *MemoryStore) GetSubscription(_ context.Context, businessID uuid.UUID) (*SubscriptionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[businessID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) UpsertSubscription(_ context.Context, sub *SubscriptionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *sub
	if existing, ok := s.subscriptions[sub.BusinessID]; ok && !existing.CreatedAt.IsZero() {
		row.CreatedAt = existing.CreatedAt
	}
	s.subscriptions[sub.BusinessID] = row
	return nil
}

func (s *MemoryStore) ListSweepCandidates(_ context.Context, now time.Time, grace time.Duration) ([]SubscriptionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SubscriptionInfo
	for _, sub := range s.subscriptions {
		if sub.Status.Terminal() {
			continue
		}
		dueCancel := sub.CancelAtPeriodEnd && !sub.CurrentPeriodEnd.After(now)
		overdue := sub.Status == StatusPastDue && !sub.CurrentPeriodEnd.Add(grace).After(now)
		if dueCancel || overdue {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b SubscriptionInfo) int {
		return a.CurrentPeriodEnd.Compare(b.CurrentPeriodEnd)
	})
	return out, nil
}

func (s *MemoryStore) UpsertPayment(_ context.Context, p *PaymentHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := paymentKey{provider: p.Provider, ref: p.ReferenceID}
	row := *p
	if existing, ok := s.payments[key]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	}
	s.payments[key] = row
	return nil
}

func (s *MemoryStore) ListPayments(_ context.Context, businessID uuid.UUID, limit int) ([]PaymentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PaymentHistory
	for _, p := range s.payments {
		if p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b PaymentHistory) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetPayment(_ context.Context, provider Provider, ref string) (*PaymentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentKey{provider: provider, ref: ref}]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *SubscriptionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

// Events returns a copy of every appended event for businessID.
func (s *MemoryStore) Events(businessID uuid.UUID) []SubscriptionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SubscriptionEvent
	for _, e := range s.events {
		if e.BusinessID == businessID {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) SavePendingCheckout(_ context.Context, pc *PendingCheckout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkouts[pc.BusinessID] = *pc
	return nil
}

func (s *MemoryStore) GetPendingCheckout(_ context.Context, businessID uuid.UUID) (*PendingCheckout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.checkouts[businessID]
	if !ok {
		return nil, ErrPendingCheckoutNotFound
	}
	return &pc, nil
}

func (s *MemoryStore) DeletePendingCheckout(_ context.Context, pc *PendingCheckout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.checkouts[pc.BusinessID]
	if ok && stored.SessionID == pc.SessionID && stored.CreatedAt.Equal(pc.CreatedAt) {
		delete(s.checkouts, pc.BusinessID)
	}
	return nil
}

func (s *MemoryStore) GetDiscount(_ context.Context, code string) (*DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.discounts[NormalizeDiscountCode(code)]
	if !ok {
		return nil, ErrDiscountNotFound
	}
	d.Plans = slices.Clone(d.Plans)
	return &d, nil
}

// PutDiscount stores a discount code under its normalized form.
func (s *MemoryStore) PutDiscount(d DiscountCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Code = NormalizeDiscountCode(d.Code)
	s.discounts[d.Code] = d
}

func (s *MemoryStore) CountUsage(_ context.Context, businessID uuid.UUID, kind ResourceKind, _ time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[usageKey{business: businessID, kind: kind}], nil
}

// SetUsage sets the count CountUsage reports for (businessID, kind).
func (s *MemoryStore) SetUsage(businessID uuid.UUID, kind ResourceKind, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[usageKey{business: businessID, kind: kind}] = n
}

// NormalizeDiscountCode trims and upper-cases a user-entered code.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
