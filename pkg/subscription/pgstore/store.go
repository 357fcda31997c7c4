package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/slotbook/billing/pkg/pg"
	"github.com/slotbook/billing/pkg/subscription"
)

// DB is the subset of pgxpool.Pool and pgx.Tx the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a subscription.Store backed by PostgreSQL.
type Store struct {
	db DB
}

var _ subscription.Store = (*Store)(nil)

// New creates a Store on db. Panics if db is nil.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: database is required")
	}
	return &Store{db: db}
}

const subscriptionColumns = `business_id, provider, provider_subscription_id, provider_customer_id,
	plan, billing_cycle, status, current_period_start, current_period_end, trial_end, canceled_at,
	paused_at, cancel_at_period_end, amount, currency, max_locations, max_employees, max_services,
	max_monthly_appointments, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.SubscriptionInfo, error) {
	var (
		s                             subscription.SubscriptionInfo
		provider, plan, cycle, status string
	)
	err := row.Scan(
		&s.BusinessID, &provider, &s.ProviderSubscriptionID, &s.ProviderCustomerID,
		&plan, &cycle, &status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.TrialEnd, &s.CanceledAt,
		&s.PausedAt, &s.CancelAtPeriodEnd, &s.Amount, &s.Currency,
		&s.Limits.MaxLocations, &s.Limits.MaxEmployees, &s.Limits.MaxServices, &s.Limits.MaxMonthlyAppointments,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Provider = subscription.Provider(provider)
	s.Plan = subscription.PlanType(plan)
	s.Cycle = subscription.BillingCycle(cycle)
	s.Status = subscription.Status(status)
	return &s, nil
}

func (s *Store) GetSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM billing_subscriptions WHERE business_id = $1`, businessID))
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// UpsertSubscription keeps created_at of an existing row.
func (s *Store) UpsertSubscription(ctx context.Context, sub *subscription.SubscriptionInfo) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO billing_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (business_id) DO UPDATE SET
			provider                 = EXCLUDED.provider,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			provider_customer_id     = EXCLUDED.provider_customer_id,
			plan                     = EXCLUDED.plan,
			billing_cycle            = EXCLUDED.billing_cycle,
			status                   = EXCLUDED.status,
			current_period_start     = EXCLUDED.current_period_start,
			current_period_end       = EXCLUDED.current_period_end,
			trial_end                = EXCLUDED.trial_end,
			canceled_at              = EXCLUDED.canceled_at,
			paused_at                = EXCLUDED.paused_at,
			cancel_at_period_end     = EXCLUDED.cancel_at_period_end,
			amount                   = EXCLUDED.amount,
			currency                 = EXCLUDED.currency,
			max_locations            = EXCLUDED.max_locations,
			max_employees            = EXCLUDED.max_employees,
			max_services             = EXCLUDED.max_services,
			max_monthly_appointments = EXCLUDED.max_monthly_appointments,
			updated_at               = EXCLUDED.updated_at`,
		sub.BusinessID, string(sub.Provider), sub.ProviderSubscriptionID, sub.ProviderCustomerID,
		string(sub.Plan), string(sub.Cycle), string(sub.Status), sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.TrialEnd, sub.CanceledAt, sub.PausedAt, sub.CancelAtPeriodEnd, sub.Amount, sub.Currency,
		sub.Limits.MaxLocations, sub.Limits.MaxEmployees, sub.Limits.MaxServices, sub.Limits.MaxMonthlyAppointments,
		createdAt(sub.CreatedAt, sub.UpdatedAt), sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *Store) ListSweepCandidates(ctx context.Context, now time.Time, grace time.Duration) ([]subscription.SubscriptionInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM billing_subscriptions
		WHERE status NOT IN ('canceled', 'expired')
		  AND ((cancel_at_period_end AND current_period_end <= $1)
		       OR (status = 'past_due' AND current_period_end <= $2))
		ORDER BY current_period_end`,
		now, now.Add(-grace),
	)
	if err != nil {
		return nil, fmt.Errorf("list sweep candidates: %w", err)
	}
	defer rows.Close()

	var out []subscription.SubscriptionInfo
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sweep candidate: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

const paymentColumns = `id, business_id, provider, reference_id, status, amount, currency, failure_reason, created_at, updated_at`

func scanPayment(row pgx.Row) (*subscription.PaymentHistory, error) {
	var (
		p                subscription.PaymentHistory
		provider, status string
	)
	if err := row.Scan(&p.ID, &p.BusinessID, &provider, &p.ReferenceID, &status, &p.Amount, &p.Currency,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Provider = subscription.Provider(provider)
	p.Status = subscription.PaymentStatus(status)
	return &p, nil
}

// UpsertPayment converges on one row per (provider, reference id).
func (s *Store) UpsertPayment(ctx context.Context, p *subscription.PaymentHistory) error {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO billing_payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (provider, reference_id) DO UPDATE SET
			business_id    = EXCLUDED.business_id,
			status         = EXCLUDED.status,
			amount         = EXCLUDED.amount,
			currency       = EXCLUDED.currency,
			failure_reason = EXCLUDED.failure_reason,
			updated_at     = EXCLUDED.updated_at`,
		id, p.BusinessID, string(p.Provider), p.ReferenceID, string(p.Status), p.Amount, p.Currency,
		p.FailureReason, createdAt(p.CreatedAt, p.UpdatedAt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, provider subscription.Provider, referenceID string) (*subscription.PaymentHistory, error) {
	p, err := scanPayment(s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM billing_payments WHERE provider = $1 AND reference_id = $2`,
		string(provider), referenceID))
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, businessID uuid.UUID, limit int) ([]subscription.PaymentHistory, error) {
	query := `SELECT ` + paymentColumns + ` FROM billing_payments WHERE business_id = $1 ORDER BY created_at DESC`
	args := []any{businessID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []subscription.PaymentHistory
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, e *subscription.SubscriptionEvent) error {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO billing_events (id, business_id, provider, event_type, from_status, to_status, reference_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, e.BusinessID, string(e.Provider), string(e.Type), string(e.FromStatus), string(e.ToStatus),
		e.ReferenceID, e.Metadata, created,
	)
	if pg.IsDuplicateKeyError(err) {
		// Same event appended twice.
		return nil
	}
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// SavePendingCheckout replaces the expectation recorded for the business.
func (s *Store) SavePendingCheckout(ctx context.Context, pc *subscription.PendingCheckout) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO billing_pending_checkouts (business_id, provider, plan, billing_cycle, session_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (business_id) DO UPDATE SET
			provider      = EXCLUDED.provider,
			plan          = EXCLUDED.plan,
			billing_cycle = EXCLUDED.billing_cycle,
			session_id    = EXCLUDED.session_id,
			amount        = EXCLUDED.amount,
			currency      = EXCLUDED.currency,
			created_at    = EXCLUDED.created_at`,
		pc.BusinessID, string(pc.Provider), string(pc.Plan), string(pc.Cycle), pc.SessionID, pc.Amount,
		pc.Currency, createdAt(pc.CreatedAt, time.Time{}),
	)
	if err != nil {
		return fmt.Errorf("save pending checkout: %w", err)
	}
	return nil
}

func (s *Store) GetPendingCheckout(ctx context.Context, businessID uuid.UUID) (*subscription.PendingCheckout, error) {
	var (
		pc                    subscription.PendingCheckout
		provider, plan, cycle string
	)
	err := s.db.QueryRow(ctx, `
		SELECT business_id, provider, plan, billing_cycle, session_id, amount, currency, created_at
		FROM billing_pending_checkouts WHERE business_id = $1`, businessID,
	).Scan(&pc.BusinessID, &provider, &plan, &cycle, &pc.SessionID, &pc.Amount, &pc.Currency, &pc.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrPendingCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending checkout: %w", err)
	}
	pc.Provider = subscription.Provider(provider)
	pc.Plan = subscription.PlanType(plan)
	pc.Cycle = subscription.BillingCycle(cycle)
	return &pc, nil
}

// DeletePendingCheckout consumes pc unless a newer checkout replaced it.
func (s *Store) DeletePendingCheckout(ctx context.Context, pc *subscription.PendingCheckout) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM billing_pending_checkouts
		WHERE business_id = $1 AND session_id = $2 AND created_at = $3`,
		pc.BusinessID, pc.SessionID, pc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("delete pending checkout: %w", err)
	}
	return nil
}

func (s *Store) GetDiscount(ctx context.Context, code string) (*subscription.DiscountCode, error) {
	var (
		d     subscription.DiscountCode
		kind  string
		plans []string
		refs  map[string]string
	)
	err := s.db.QueryRow(ctx, `
		SELECT code, kind, percent, amount, currency, valid_from, valid_until, plans,
		       max_redemptions, times_redeemed, provider_refs
		FROM billing_discount_codes WHERE code = $1`, subscription.NormalizeDiscountCode(code),
	).Scan(&d.Code, &kind, &d.Percent, &d.Amount, &d.Currency, &d.ValidFrom, &d.ValidUntil, &plans,
		&d.MaxRedemptions, &d.TimesRedeemed, &refs)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrDiscountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	d.Kind = subscription.DiscountKind(kind)
	for _, p := range plans {
		d.Plans = append(d.Plans, subscription.PlanType(p))
	}
	if len(refs) > 0 {
		d.ProviderRefs = make(map[subscription.Provider]string, len(refs))
		for k, v := range refs {
			d.ProviderRefs[subscription.Provider(k)] = v
		}
	}
	return &d, nil
}

// CountUsage calls count_business_resources. Monthly kinds are counted
// within the UTC calendar month containing now.
func (s *Store) CountUsage(ctx context.Context, businessID uuid.UUID, kind subscription.ResourceKind, now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count_business_resources($1, $2, $3)`, businessID, string(kind), now).Scan(&n)
	if err != nil {
		return 0, errors.Join(subscription.ErrFailedToCountResourceUsage, err)
	}
	return n, nil
}

// createdAt picks the creation timestamp for an insert.
func createdAt(created, fallback time.Time) time.Time {
	switch {
	case !created.IsZero():
		return created
	case !fallback.IsZero():
		return fallback
	}
	return time.Now().UTC()
}
