package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
	"github.com/slotbook/billing/svc/billing"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeGateway implements the processor half of a Gateway without a processor.
type fakeGateway struct {
	*subscription.Core
	processorErr error
}

func newFakeGateway(store subscription.Store) *fakeGateway {
	return &fakeGateway{Core: subscription.NewCore(subscription.ProviderStripe, subscription.Deps{
		Store:  store,
		Logger: logger.Noop(),
		Clock:  fixedClock,
	})}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutSession, error) {
	q, err := g.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	if g.processorErr != nil {
		return nil, g.ProcessorError("create checkout", g.processorErr)
	}
	session, err := g.RecordCheckout(ctx, req, q, "cs_test_1")
	if err != nil {
		return nil, err
	}
	session.RedirectURL = "https://checkout.test/cs_test_1"
	return session, nil
}

func (g *fakeGateway) UpdateSubscription(ctx context.Context, businessID uuid.UUID, plan subscription.PlanType, cycle subscription.BillingCycle) (*subscription.SubscriptionInfo, error) {
	price, err := g.ValidatePlanChange(plan, cycle)
	if err != nil {
		return nil, err
	}
	sub, err := g.Load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.CheckPlanChange(ctx, sub, plan); err != nil {
		return nil, err
	}
	return g.ChangePlan(ctx, sub, plan, cycle, price)
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, businessID uuid.UUID, atPeriodEnd bool, reason string) (*subscription.SubscriptionInfo, error) {
	action := subscription.ActionCancel
	if atPeriodEnd {
		action = subscription.ActionCancelAtPeriodEnd
	}
	return g.apply(ctx, businessID, action, reason)
}

func (g *fakeGateway) PauseSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.apply(ctx, businessID, subscription.ActionPause, "")
}

func (g *fakeGateway) ResumeSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.apply(ctx, businessID, subscription.ActionResume, "")
}

func (g *fakeGateway) ReactivateSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.apply(ctx, businessID, subscription.ActionReactivate, "")
}

func (g *fakeGateway) apply(ctx context.Context, businessID uuid.UUID, action subscription.Action, reason string) (*subscription.SubscriptionInfo, error) {
	sub, err := g.Load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.Check(sub, action); err != nil {
		return nil, err
	}
	return g.Apply(ctx, sub, action, reason, nil)
}

// scriptedSource answers every delivery with the same notification and resource.
type scriptedSource struct {
	provider subscription.Provider
	notif    subscription.Notification
	parseErr error
	resource *subscription.Resource
}

func (s *scriptedSource) Provider() subscription.Provider { return s.provider }

func (s *scriptedSource) ParseNotification(_ *http.Request, _ []byte) (subscription.Notification, error) {
	return s.notif, s.parseErr
}

func (s *scriptedSource) Fetch(context.Context, subscription.Notification) (*subscription.Resource, error) {
	if s.resource == nil {
		return nil, subscription.IntegrityError(subscription.ErrCodeResourceNotFound, true, errors.New("not found"))
	}
	res := *s.resource
	return &res, nil
}

func (s *scriptedSource) MapStatus(native string) subscription.Status {
	return subscription.StatusMapping{"active": subscription.StatusActive}.Map(native)
}

func paidInvoice(businessID uuid.UUID) *scriptedSource {
	return &scriptedSource{
		provider: subscription.ProviderStripe,
		notif: subscription.Notification{
			EventID:     "evt_1",
			Kind:        subscription.KindPayment,
			NativeType:  "invoice.paid",
			ReferenceID: "in_1",
		},
		resource: &subscription.Resource{
			ReferenceID:            "in_1",
			ProviderSubscriptionID: "sub_1",
			ProviderCustomerID:     "cus_1",
			NativeStatus:           "active",
			Metadata:               subscription.MetadataFor(businessID, subscription.PlanProfessional, subscription.CycleMonthly),
			Amount:                 7900,
			Currency:               "usd",
			Payment: &subscription.PaymentSnapshot{
				ReferenceID: "in_1",
				Status:      subscription.PaymentCompleted,
				Amount:      7900,
				Currency:    "usd",
			},
		},
	}
}

type fixture struct {
	store   *subscription.MemoryStore
	gateway *fakeGateway
	svc     *billing.Service
	handler http.Handler
}

func newFixture(t *testing.T, opts ...billing.Option) *fixture {
	t.Helper()
	store := subscription.NewMemoryStore()
	gw := newFakeGateway(store)
	svc := billing.New(billing.Config{}, billing.Deps{
		Store:  store,
		Logger: logger.Noop(),
		Clock:  fixedClock,
	}, append([]billing.Option{billing.WithGateway(gw)}, opts...)...)
	return &fixture{store: store, gateway: gw, svc: svc, handler: svc.Handler(nil)}
}

func (f *fixture) seed(plan subscription.PlanType, status subscription.Status) uuid.UUID {
	id := uuid.New()
	limits, err := subscription.MustDefaultCatalog().Limits(plan)
	if err != nil {
		panic(err)
	}
	_ = f.store.UpsertSubscription(context.Background(), &subscription.SubscriptionInfo{
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
		CreatedAt:              testNow.AddDate(0, -1, 0),
		UpdatedAt:              testNow.AddDate(0, -1, 0),
	})
	return id
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code  string `json:"code"`
		Class string `json:"class"`
	} `json:"error"`
	raw string
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, apiResponse) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	resp.raw = rec.Body.String()
	return rec.Code, resp
}
