package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripesdk "github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/slotbook/billing/pkg/subscription"
)

// Source verifies Stripe-Signature headers and re-fetches the referenced
// subscription, invoice or checkout session.
type Source struct {
	api    API
	secret string
}

// NewSource creates a Source. A nil api uses the SDK client for cfg.SecretKey.
func NewSource(cfg Config, api API) *Source {
	if api == nil {
		api = newSDKAPI(cfg.SecretKey)
	}
	return &Source{api: api, secret: cfg.WebhookSecret}
}

var _ subscription.Source = (*Source)(nil)

func (s *Source) Provider() subscription.Provider { return subscription.ProviderStripe }

func (s *Source) MapStatus(native string) subscription.Status { return MapStatus(native) }

func (s *Source) ParseNotification(r *http.Request, body []byte) (subscription.Notification, error) {
	if s.secret == "" {
		return subscription.Notification{}, errors.Join(subscription.ErrWebhookVerificationFailed, subscription.ErrMissingWebhookSecret)
	}
	event, err := stripewebhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), s.secret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return subscription.Notification{}, errors.Join(subscription.ErrWebhookVerificationFailed, err)
	}
	if event.Data == nil {
		return subscription.Notification{}, fmt.Errorf("%w: event has no data", subscription.ErrMalformedNotification)
	}

	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return subscription.Notification{}, errors.Join(subscription.ErrMalformedNotification, err)
	}

	eventType := string(event.Type)
	n := subscription.Notification{
		Provider:    subscription.ProviderStripe,
		EventID:     event.ID,
		NativeType:  eventType,
		ReferenceID: object.ID,
		Kind:        kindOf(eventType),
	}
	return n, nil
}

func kindOf(eventType string) subscription.NotificationKind {
	switch {
	case strings.HasPrefix(eventType, "customer.subscription."):
		return subscription.KindSubscription
	case eventType == "invoice.paid",
		eventType == "invoice.payment_succeeded",
		eventType == "invoice.payment_failed",
		eventType == "invoice.marked_uncollectible",
		eventType == "invoice.voided":
		return subscription.KindPayment
	case eventType == "checkout.session.completed":
		return subscription.KindCheckout
	}
	return subscription.KindIgnored
}

// Fetch resolves every kind to the owning subscription, which carries the
// authoritative status and metadata. Invoices add a payment snapshot.
func (s *Source) Fetch(ctx context.Context, n subscription.Notification) (*subscription.Resource, error) {
	switch n.Kind {
	case subscription.KindSubscription:
		return s.fetchSubscription(ctx, n.ReferenceID)

	case subscription.KindCheckout:
		cs, err := s.api.GetCheckoutSession(ctx, n.ReferenceID)
		if err != nil {
			return nil, s.fail("get_checkout_session", err)
		}
		if cs.Subscription == nil || cs.Subscription.ID == "" {
			return nil, subscription.IntegrityError(subscription.ErrCodeResourceNotFound, true,
				fmt.Errorf("checkout session %s has no subscription yet", cs.ID)).WithProvider(subscription.ProviderStripe)
		}
		return s.fetchSubscription(ctx, cs.Subscription.ID)

	case subscription.KindPayment:
		inv, err := s.api.GetInvoice(ctx, n.ReferenceID)
		if err != nil {
			return nil, s.fail("get_invoice", err)
		}
		subID := invoiceSubscriptionID(inv)
		if subID == "" {
			return nil, subscription.IntegrityError(subscription.ErrCodeMissingMetadata, false,
				fmt.Errorf("invoice %s is not linked to a subscription", inv.ID)).WithProvider(subscription.ProviderStripe)
		}
		res, err := s.fetchSubscription(ctx, subID)
		if err != nil {
			return nil, err
		}
		res.ReferenceID = inv.ID
		res.Payment = invoiceSnapshot(inv)
		return res, nil
	}
	return nil, fmt.Errorf("%w: kind %q", subscription.ErrMalformedNotification, n.Kind)
}

func (s *Source) fetchSubscription(ctx context.Context, id string) (*subscription.Resource, error) {
	sub, err := s.api.GetSubscription(ctx, id)
	if err != nil {
		return nil, s.fail("get_subscription", err)
	}
	res := &subscription.Resource{
		ReferenceID:            sub.ID,
		ProviderSubscriptionID: sub.ID,
		NativeStatus:           nativeStatus(sub),
		Metadata:               subscription.MetadataFromMap(sub.Metadata),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		res.ProviderCustomerID = sub.Customer.ID
	}
	if sub.TrialEnd > 0 {
		end := time.Unix(sub.TrialEnd, 0).UTC()
		res.TrialEnd = &end
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		res.Amount = price.UnitAmount
		res.Currency = strings.ToUpper(string(price.Currency))
	}
	return res, nil
}

// nativeStatus reports an active subscription whose collection is paused
// as paused. Stripe keeps status active while pause_collection is set.
func nativeStatus(sub *stripesdk.Subscription) string {
	if sub.PauseCollection != nil && sub.PauseCollection.Behavior != "" &&
		(sub.Status == stripesdk.SubscriptionStatusActive || sub.Status == stripesdk.SubscriptionStatusTrialing) {
		return string(stripesdk.SubscriptionStatusPaused)
	}
	return string(sub.Status)
}

func (s *Source) fail(op string, err error) error {
	err = classify(err)
	if _, ok := subscription.AsGatewayError(err); ok {
		return err
	}
	return subscription.UpstreamError(subscription.ProviderStripe, fmt.Errorf("%s: %w", op, err))
}

func invoiceSubscriptionID(inv *stripesdk.Invoice) string {
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil || inv.Parent.SubscriptionDetails.Subscription == nil {
		return ""
	}
	return inv.Parent.SubscriptionDetails.Subscription.ID
}

func invoiceSnapshot(inv *stripesdk.Invoice) *subscription.PaymentSnapshot {
	status := MapInvoiceStatus(inv)
	amount := inv.AmountDue
	if status == subscription.PaymentCompleted {
		amount = inv.AmountPaid
	}
	p := &subscription.PaymentSnapshot{
		ReferenceID: inv.ID,
		Status:      status,
		Amount:      amount,
		Currency:    strings.ToUpper(string(inv.Currency)),
	}
	if status == subscription.PaymentFailed {
		p.FailureReason = "invoice " + string(inv.Status)
	}
	return p
}
