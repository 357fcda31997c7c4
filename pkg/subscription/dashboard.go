package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/slotbook/billing/pkg/logger"
)

// dashboardPayments is how many recent payments a dashboard shows.
const dashboardPayments = 10

// Usage is the consumption of one resource against its ceiling.
type Usage struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
	Percent int   `json:"percent"` // -1 when unlimited, capped at 100
}

// Dashboard is a read-only view assembled for the billing screen.
type Dashboard struct {
	Subscription        *SubscriptionInfo      `json:"subscription"`
	Limits              PlanLimits             `json:"limits"`
	Usage               map[ResourceKind]Usage `json:"usage"`
	Payments            []PaymentHistory       `json:"payments"`
	PendingCancellation bool                   `json:"pending_cancellation"`
	DaysUntilRenewal    int                    `json:"days_until_renewal"`
}

// DashboardAggregator composes a Dashboard from several store reads.
type DashboardAggregator struct {
	subs     SubscriptionStore
	payments PaymentStore
	counter  UsageCounter
	log      *slog.Logger
	now      func() time.Time
}

// NewDashboardAggregator creates an aggregator over the given stores.
func NewDashboardAggregator(subs SubscriptionStore, payments PaymentStore, counter UsageCounter, log *slog.Logger, now func() time.Time) *DashboardAggregator {
	if subs == nil || payments == nil || counter == nil {
		panic("dashboard stores are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &DashboardAggregator{subs: subs, payments: payments, counter: counter, log: log, now: now}
}

// Get loads the subscription, recent payments and per-resource usage concurrently.
// A failed usage count degrades to zero rather than failing the whole view.
func (a *DashboardAggregator) Get(ctx context.Context, businessID uuid.UUID) (*Dashboard, error) {
	now := a.now().UTC()

	var (
		sub      *SubscriptionInfo
		payments []PaymentHistory
		mu       sync.Mutex
		counts   = make(map[ResourceKind]int64, len(ResourceKinds))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.subs.GetSubscription(gctx, businessID)
		if err != nil {
			return err
		}
		sub = s
		return nil
	})
	g.Go(func() error {
		p, err := a.payments.ListPayments(gctx, businessID, dashboardPayments)
		if err != nil {
			return err
		}
		payments = p
		return nil
	})
	for _, kind := range ResourceKinds {
		g.Go(func() error {
			n, err := a.counter.CountUsage(gctx, businessID, kind, now)
			if err != nil {
				a.log.WarnContext(ctx, "dashboard usage count failed",
					logger.BusinessID(businessID),
					logger.Resource(string(kind)),
					logger.Error(err),
				)
				n = 0
			}
			mu.Lock()
			counts[kind] = n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, CallerError(ErrCodeSubscriptionNotFound, http.StatusNotFound, err)
		}
		return nil, StoreError(err)
	}

	usage := make(map[ResourceKind]Usage, len(ResourceKinds))
	for _, kind := range ResourceKinds {
		limit, _ := sub.Limits.For(kind)
		usage[kind] = Usage{Current: counts[kind], Limit: limit, Percent: usagePercent(counts[kind], limit)}
	}

	if payments == nil {
		payments = []PaymentHistory{}
	}

	return &Dashboard{
		Subscription:        sub,
		Limits:              sub.Limits,
		Usage:               usage,
		Payments:            payments,
		PendingCancellation: sub.PendingCancellation(),
		DaysUntilRenewal:    sub.DaysUntilRenewalAt(now),
	}, nil
}

func usagePercent(current, limit int64) int {
	switch {
	case limit == Unlimited:
		return -1
	case limit <= 0:
		return 100
	}
	pct := int(current * 100 / limit)
	return min(pct, 100)
}
