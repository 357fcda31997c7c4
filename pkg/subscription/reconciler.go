package subscription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/slotbook/billing/pkg/logger"
)

const (
	// DefaultLedgerTTL is how long processed notification keys are remembered.
	DefaultLedgerTTL = 72 * time.Hour
	// DefaultMaxWebhookBody caps the notification body size.
	DefaultMaxWebhookBody int64 = 1 << 20

	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodePayloadTooLarge  = "payload_too_large"
)

// NotificationKind says which authoritative object a notification points at.
type NotificationKind string

const (
	KindPayment      NotificationKind = "payment"
	KindSubscription NotificationKind = "subscription"
	KindCheckout     NotificationKind = "checkout"
	KindIgnored      NotificationKind = "ignored"
)

// Notification is all the reconciler trusts from a webhook body: which object
// changed. Everything else is re-fetched from the processor.
type Notification struct {
	Provider    Provider
	EventID     string // processor delivery id; empty when the processor sends none
	Kind        NotificationKind
	NativeType  string
	ReferenceID string
}

// PaymentSnapshot is the charge carried by an authoritative resource.
type PaymentSnapshot struct {
	ReferenceID   string
	Status        PaymentStatus
	Amount        int64
	Currency      string
	FailureReason string
}

// Resource is the authoritative state fetched from the processor.
type Resource struct {
	ReferenceID            string
	ProviderSubscriptionID string
	ProviderCustomerID     string
	NativeStatus           string
	Metadata               Metadata
	Amount                 int64
	Currency               string
	TrialEnd               *time.Time
	CancelAtPeriodEnd      bool
	Payment                *PaymentSnapshot
	// PaymentOnly marks a resource read from a charge alone. It says nothing
	// about cancellation, trial or pause state, and an empty NativeStatus
	// means the charge carries no subscription status at all.
	PaymentOnly bool
}

// Source is the processor-specific half of webhook reconciliation.
type Source interface {
	Provider() Provider
	// ParseNotification authenticates the request and extracts the reference.
	// It returns ErrWebhookVerificationFailed or ErrMalformedNotification on bad input.
	ParseNotification(r *http.Request, body []byte) (Notification, error)
	// Fetch re-reads the referenced object. A missing object is reported as
	// an integrity error with code resource_not_found.
	Fetch(ctx context.Context, n Notification) (*Resource, error)
	// MapStatus is total: unknown native values map to StatusInactive.
	MapStatus(native string) Status
}

// Ledger remembers processed notification keys for a bounded time.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// ReviewItem describes a notification that retrying cannot fix.
type ReviewItem struct {
	Provider    Provider
	EventID     string
	NativeType  string
	ReferenceID string
	BusinessID  string
	Code        string
	Reason      string
	ReceivedAt  time.Time
}

// Escalator routes unfixable notifications to a human.
type Escalator interface {
	Escalate(ctx context.Context, item ReviewItem) error
}

// Outcome is how a notification was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeReview    Outcome = "review"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Result reports what a reconciliation did.
type Result struct {
	Outcome     Outcome
	BusinessID  uuid.UUID
	Status      Status
	ReferenceID string
}

// Reconciler turns processor notifications into canonical writes.
// It keeps no state between calls beyond what lives in the store and ledger.
type Reconciler struct {
	store     Store
	catalog   *Catalog
	ledger    Ledger
	escalator Escalator
	log       *slog.Logger
	now       func() time.Time
	metrics   *Metrics
	tracer    trace.Tracer
	ledgerTTL time.Duration
	maxBody   int64
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithLedger(l Ledger) ReconcilerOption { return func(r *Reconciler) { r.ledger = l } }

func WithEscalator(e Escalator) ReconcilerOption { return func(r *Reconciler) { r.escalator = e } }

func WithCatalog(c *Catalog) ReconcilerOption { return func(r *Reconciler) { r.catalog = c } }

func WithLogger(l *slog.Logger) ReconcilerOption { return func(r *Reconciler) { r.log = l } }

func WithClock(now func() time.Time) ReconcilerOption { return func(r *Reconciler) { r.now = now } }

func WithMetrics(m *Metrics) ReconcilerOption { return func(r *Reconciler) { r.metrics = m } }

func WithTracer(t trace.Tracer) ReconcilerOption { return func(r *Reconciler) { r.tracer = t } }

// WithLedgerTTL sets how long processed keys are remembered.
func WithLedgerTTL(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.ledgerTTL = d
		}
	}
}

// WithMaxBody caps the accepted notification body size.
func WithMaxBody(n int64) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

// NewReconciler creates a Reconciler. Panics if store is nil.
func NewReconciler(store Store, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("subscription store is required")
	}
	r := &Reconciler{
		store:     store,
		log:       slog.Default(),
		now:       time.Now,
		ledgerTTL: DefaultLedgerTTL,
		maxBody:   DefaultMaxWebhookBody,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = MustDefaultCatalog()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer("github.com/slotbook/billing/pkg/subscription")
	}
	r.log = r.log.With(logger.Component("reconciler"))
	return r
}

// Reconcile handles one webhook delivery from src.
//
// A nil error means the delivery should be acknowledged, including duplicates,
// irrelevant kinds and notifications routed to manual review. A returned
// error carries the HTTP status for the response; retryable errors ask the
// processor to deliver again.
func (r *Reconciler) Reconcile(ctx context.Context, src Source, req *http.Request) (res *Result, err error) {
	provider := src.Provider()
	start := r.now()

	ctx, span := r.tracer.Start(ctx, "billing.reconcile", trace.WithAttributes(
		attribute.String("billing.provider", string(provider)),
	))
	defer func() {
		outcome := OutcomeFailed
		if res != nil {
			outcome = res.Outcome
		} else if ge, ok := AsGatewayError(err); ok && ge.Class == ClassCaller {
			outcome = OutcomeRejected
		}
		span.SetAttributes(attribute.String("billing.outcome", string(outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, CodeOf(err))
		}
		span.End()
		r.metrics.webhook(provider, outcome, r.now().Sub(start))
	}()

	body, err := io.ReadAll(io.LimitReader(req.Body, r.maxBody+1))
	if err != nil {
		return nil, CallerError(ErrCodeInvalidRequest, http.StatusBadRequest, err).WithProvider(provider)
	}
	if int64(len(body)) > r.maxBody {
		return nil, CallerError(ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge, nil).WithProvider(provider)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	n, err := src.ParseNotification(req, body)
	if err != nil {
		if errors.Is(err, ErrWebhookVerificationFailed) {
			r.log.WarnContext(ctx, "webhook signature rejected", logger.Provider(string(provider)), logger.Error(err))
			return nil, CallerError(ErrCodeInvalidSignature, http.StatusUnauthorized, err).WithProvider(provider)
		}
		return nil, CallerError(ErrCodeInvalidRequest, http.StatusBadRequest, err).WithProvider(provider)
	}
	n.Provider = provider
	log := r.log.With(
		logger.Provider(string(provider)),
		logger.EventID(n.EventID),
		logger.EventType(n.NativeType),
		logger.ReferenceID(n.ReferenceID),
	)
	span.SetAttributes(
		attribute.String("billing.event_type", n.NativeType),
		attribute.String("billing.reference_id", n.ReferenceID),
	)

	if n.Kind == KindIgnored || n.ReferenceID == "" {
		log.DebugContext(ctx, "webhook ignored")
		return &Result{Outcome: OutcomeIgnored, ReferenceID: n.ReferenceID}, nil
	}

	var keys []string
	if n.EventID != "" {
		key := eventKey(provider, n.EventID)
		if r.seen(ctx, log, key) {
			log.InfoContext(ctx, "webhook already processed")
			return &Result{Outcome: OutcomeDuplicate, ReferenceID: n.ReferenceID}, nil
		}
		keys = append(keys, key)
	}

	resource, err := src.Fetch(ctx, n)
	if err != nil {
		if permanent(err) {
			return r.review(ctx, log, n, "", err)
		}
		return nil, r.fail(ctx, log, n, err)
	}

	businessID, plan, cycle, err := parseMetadata(resource.Metadata)
	if err != nil {
		return r.review(ctx, log, n, resource.Metadata.BusinessID, err)
	}
	log = log.With(logger.BusinessID(businessID))

	expected, err := r.crossCheck(ctx, log, provider, businessID, plan, cycle)
	if err != nil {
		return r.review(ctx, log, n, businessID.String(), err)
	}

	status := src.MapStatus(resource.NativeStatus)
	if n.EventID == "" {
		key := fingerprintKey(provider, n, resource, plan, cycle)
		if r.seen(ctx, log, key) {
			log.InfoContext(ctx, "webhook state already reconciled")
			return &Result{Outcome: OutcomeDuplicate, BusinessID: businessID, Status: status, ReferenceID: n.ReferenceID}, nil
		}
		keys = append(keys, key)
	}

	settled := status == StatusActive || status == StatusTrialing
	prev, status, err := r.upsertSubscription(ctx, provider, businessID, plan, cycle, status, resource)
	if err != nil {
		if permanent(err) {
			return r.review(ctx, log, n, businessID.String(), err)
		}
		return nil, r.fail(ctx, log, n, err)
	}

	if resource.Payment != nil {
		if err := r.upsertPayment(ctx, provider, businessID, resource.Payment); err != nil {
			return nil, r.fail(ctx, log, n, err)
		}
	}

	appendEvent(ctx, r.store, log, provider, r.now().UTC(), &SubscriptionEvent{
		BusinessID:  businessID,
		Type:        EventWebhookReconciled,
		FromStatus:  prev,
		ToStatus:    status,
		ReferenceID: n.ReferenceID,
		Metadata: map[string]string{
			"event_id":      n.EventID,
			"event_type":    n.NativeType,
			"native_status": resource.NativeStatus,
		},
	})

	if expected != nil && settled {
		if err := r.store.DeletePendingCheckout(ctx, expected); err != nil {
			log.WarnContext(ctx, "failed to consume pending checkout", logger.Error(err))
		}
	}

	if r.ledger != nil {
		for _, key := range keys {
			if err := r.ledger.Mark(ctx, key, r.ledgerTTL); err != nil {
				log.WarnContext(ctx, "failed to record processed notification", logger.Error(err))
			}
		}
	}

	log.InfoContext(ctx, "webhook reconciled",
		logger.StatusChange(string(prev), string(status)),
		logger.Plan(string(plan)),
	)
	return &Result{Outcome: OutcomeProcessed, BusinessID: businessID, Status: status, ReferenceID: n.ReferenceID}, nil
}

// upsertSubscription writes the canonical row and returns the previous and
// the stored status.
func (r *Reconciler) upsertSubscription(ctx context.Context, provider Provider, businessID uuid.UUID, plan PlanType, cycle BillingCycle, status Status, res *Resource) (Status, Status, error) {
	now := r.now().UTC()

	existing, err := r.store.GetSubscription(ctx, businessID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return "", "", StoreError(err)
	}

	if existing != nil && res.PaymentOnly {
		if res.NativeStatus == "" {
			// A charge outside any subscription leaves the row as it is.
			return existing.Status, existing.Status, nil
		}
		if existing.Status == StatusPaused && !status.Terminal() {
			status = StatusPaused
		}
	}

	limits, err := r.catalog.Limits(plan)
	if err != nil {
		return "", "", IntegrityError(ErrCodeInvalidMetadata, false, err)
	}
	amount, currency := res.Amount, strings.ToUpper(res.Currency)
	if amount <= 0 || currency == "" {
		price, err := r.catalog.Price(plan, cycle)
		if err != nil {
			return "", "", IntegrityError(ErrCodeInvalidMetadata, false, err)
		}
		amount, currency = price.Amount, price.Currency
	}

	next := &SubscriptionInfo{
		BusinessID:             businessID,
		Provider:               provider,
		ProviderSubscriptionID: res.ProviderSubscriptionID,
		ProviderCustomerID:     res.ProviderCustomerID,
		Plan:                   plan,
		Cycle:                  cycle,
		Status:                 status,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       cycle.PeriodEnd(now),
		TrialEnd:               res.TrialEnd,
		CancelAtPeriodEnd:      res.CancelAtPeriodEnd && !status.Terminal(),
		Amount:                 amount,
		Currency:               currency,
		Limits:                 limits,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	var prev Status
	if existing != nil {
		prev = existing.Status
		next.CreatedAt = existing.CreatedAt
		if next.ProviderSubscriptionID == "" && existing.Provider == provider {
			next.ProviderSubscriptionID = existing.ProviderSubscriptionID
		}
		if next.ProviderCustomerID == "" && existing.Provider == provider {
			next.ProviderCustomerID = existing.ProviderCustomerID
		}
		next.CanceledAt = existing.CanceledAt
		next.PausedAt = existing.PausedAt
		if res.PaymentOnly {
			next.CancelAtPeriodEnd = existing.CancelAtPeriodEnd && !status.Terminal()
			next.TrialEnd = existing.TrialEnd
		}

		renewal, err := r.isRenewal(ctx, provider, res.Payment)
		if err != nil {
			return "", "", err
		}
		if next.sameTerms(existing) && existing.CurrentPeriodEnd.After(now) && !renewal {
			next.CurrentPeriodStart = existing.CurrentPeriodStart
			next.CurrentPeriodEnd = existing.CurrentPeriodEnd
			if existing.CancelAtPeriodEnd == next.CancelAtPeriodEnd && sameTime(existing.TrialEnd, next.TrialEnd) && existing.Limits == next.Limits {
				// Nothing changed; a replay leaves the row untouched.
				return prev, status, nil
			}
		}
	}

	switch status {
	case StatusCanceled, StatusExpired:
		if next.CanceledAt == nil {
			next.CanceledAt = &now
		}
	case StatusPaused:
		if next.PausedAt == nil {
			next.PausedAt = &now
		}
	default:
		next.PausedAt = nil
	}

	if err := r.store.UpsertSubscription(ctx, next); err != nil {
		return "", "", StoreError(err)
	}
	return prev, status, nil
}

// isRenewal reports whether p is a completed charge not yet recorded as completed.
func (r *Reconciler) isRenewal(ctx context.Context, provider Provider, p *PaymentSnapshot) (bool, error) {
	if p == nil || p.Status != PaymentCompleted {
		return false, nil
	}
	stored, err := r.paymentLookup(ctx, provider, p.ReferenceID)
	if err != nil {
		return false, err
	}
	return stored == nil || stored.Status != PaymentCompleted, nil
}

func (r *Reconciler) paymentLookup(ctx context.Context, provider Provider, ref string) (*PaymentHistory, error) {
	p, err := r.store.GetPayment(ctx, provider, ref)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, StoreError(err)
	}
	return p, nil
}

func (r *Reconciler) upsertPayment(ctx context.Context, provider Provider, businessID uuid.UUID, p *PaymentSnapshot) error {
	now := r.now().UTC()
	row := &PaymentHistory{
		ID:            uuid.New(),
		BusinessID:    businessID,
		Provider:      provider,
		ReferenceID:   p.ReferenceID,
		Status:        p.Status,
		Amount:        p.Amount,
		Currency:      strings.ToUpper(p.Currency),
		FailureReason: p.FailureReason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.store.UpsertPayment(ctx, row); err != nil {
		return StoreError(err)
	}
	return nil
}

// crossCheck compares the echoed plan against the recorded checkout
// expectation. It returns the expectation the notification fulfils, if any.
func (r *Reconciler) crossCheck(ctx context.Context, log *slog.Logger, provider Provider, businessID uuid.UUID, plan PlanType, cycle BillingCycle) (*PendingCheckout, error) {
	pc, err := r.store.GetPendingCheckout(ctx, businessID)
	if errors.Is(err, ErrPendingCheckoutNotFound) {
		log.DebugContext(ctx, "no pending checkout recorded for business")
		return nil, nil
	}
	if err != nil {
		log.WarnContext(ctx, "pending checkout lookup failed", logger.Error(err))
		return nil, nil
	}
	if pc.Provider != provider {
		return nil, nil
	}
	if pc.Matches(plan, cycle) {
		return pc, nil
	}
	return nil, IntegrityError(ErrCodeCheckoutMismatch, false,
		fmt.Errorf("notification says %s/%s, checkout expected %s/%s", plan, cycle, pc.Plan, pc.Cycle))
}

// fail logs err and returns it typed. Untyped errors are treated as upstream failures.
func (r *Reconciler) fail(ctx context.Context, log *slog.Logger, n Notification, err error) error {
	ge, ok := AsGatewayError(err)
	if !ok {
		ge = UpstreamError(n.Provider, err)
	}
	if ge.Provider == "" {
		ge.Provider = n.Provider
	}
	log.ErrorContext(ctx, "webhook reconciliation failed, processor will retry",
		logger.ErrorCode(ge.Code),
		logger.Error(ge),
	)
	return ge
}

// review acknowledges a notification that no retry can fix and escalates it.
func (r *Reconciler) review(ctx context.Context, log *slog.Logger, n Notification, businessID string, err error) (*Result, error) {
	ge, _ := AsGatewayError(err)
	code := ErrCodeMissingMetadata
	if ge != nil {
		code = ge.Code
	}
	log.ErrorContext(ctx, "webhook routed to manual review", logger.ErrorCode(code), logger.Error(err))
	if r.escalator != nil {
		item := ReviewItem{
			Provider:    n.Provider,
			EventID:     n.EventID,
			NativeType:  n.NativeType,
			ReferenceID: n.ReferenceID,
			BusinessID:  businessID,
			Code:        code,
			Reason:      err.Error(),
			ReceivedAt:  r.now().UTC(),
		}
		if eerr := r.escalator.Escalate(ctx, item); eerr != nil {
			log.ErrorContext(ctx, "failed to escalate webhook for review", logger.Error(eerr))
		}
	}
	return &Result{Outcome: OutcomeReview, ReferenceID: n.ReferenceID}, nil
}

func (r *Reconciler) seen(ctx context.Context, log *slog.Logger, key string) bool {
	if r.ledger == nil {
		return false
	}
	ok, err := r.ledger.Seen(ctx, key)
	if err != nil {
		// Upserts stay idempotent without the ledger.
		log.WarnContext(ctx, "processed-event ledger unavailable", logger.Error(err))
		return false
	}
	return ok
}

// parseMetadata validates the tags echoed by the processor.
// Any missing or unknown value is a permanent integrity failure.
func parseMetadata(m Metadata) (uuid.UUID, PlanType, BillingCycle, error) {
	if m.BusinessID == "" || m.Plan == "" || m.Cycle == "" {
		return uuid.Nil, "", "", IntegrityError(ErrCodeMissingMetadata, false,
			fmt.Errorf("business=%q plan=%q cycle=%q", m.BusinessID, m.Plan, m.Cycle))
	}
	id, err := uuid.Parse(m.BusinessID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, "", "", IntegrityError(ErrCodeInvalidMetadata, false, fmt.Errorf("business id %q", m.BusinessID))
	}
	plan := PlanType(strings.ToLower(m.Plan))
	if !plan.Valid() {
		return uuid.Nil, "", "", IntegrityError(ErrCodeInvalidMetadata, false, fmt.Errorf("plan %q", m.Plan))
	}
	cycle := BillingCycle(strings.ToLower(m.Cycle))
	if !cycle.Valid() {
		return uuid.Nil, "", "", IntegrityError(ErrCodeInvalidMetadata, false, fmt.Errorf("cycle %q", m.Cycle))
	}
	return id, plan, cycle, nil
}

// permanent reports whether err is an integrity failure a retry cannot fix.
func permanent(err error) bool {
	ge, ok := AsGatewayError(err)
	return ok && ge.Class == ClassIntegrity && !ge.Retryable
}

func eventKey(p Provider, eventID string) string {
	return fmt.Sprintf("billing:%s:event:%s", p, eventID)
}

func fingerprintKey(p Provider, n Notification, res *Resource, plan PlanType, cycle BillingCycle) string {
	state := res.NativeStatus
	if res.Payment != nil {
		state += "/" + string(res.Payment.Status)
	}
	return fmt.Sprintf("billing:%s:state:%s:%s:%s:%s:%s:%d", p, n.Kind, n.ReferenceID, state, plan, cycle, res.Amount)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
