package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/slotbook/billing/pkg/subscription"
	"github.com/slotbook/billing/pkg/webhook"
)

// Notification topics MercadoPago sends for recurring billing.
const (
	TopicPayment                 = "payment"
	TopicPreapproval             = "preapproval"
	TopicSubscriptionPreapproval = "subscription_preapproval"
	TopicAuthorizedPayment       = "subscription_authorized_payment"
)

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexID(b)
	return nil
}

type envelope struct {
	ID     flexID `json:"id"`
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID flexID `json:"id"`
	} `json:"data"`
}

// Source parses and authenticates MercadoPago notifications and re-fetches
// the referenced preapproval or payment.
type Source struct {
	api       API
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewSource creates a Source. With an empty webhook secret notifications
// are accepted unsigned; the authoritative re-fetch still applies.
func NewSource(cfg Config, api API, now func() time.Time) *Source {
	if api == nil {
		api = NewClient(cfg.BaseURL, cfg.AccessToken, nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Source{api: api, secret: cfg.WebhookSecret, tolerance: cfg.SignatureTolerance, now: now}
}

var _ subscription.Source = (*Source)(nil)

func (s *Source) Provider() subscription.Provider { return subscription.ProviderMercadoPago }

func (s *Source) MapStatus(native string) subscription.Status { return MapStatus(native) }

// ParseNotification reads the topic and resource id from the query string
// (IPN style) or the JSON body (webhook style).
func (s *Source) ParseNotification(r *http.Request, body []byte) (subscription.Notification, error) {
	q := r.URL.Query()
	topic := firstNonEmpty(q.Get("type"), q.Get("topic"))
	ref := firstNonEmpty(q.Get("data.id"), q.Get("id"))

	var env envelope
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			if topic == "" || ref == "" {
				return subscription.Notification{}, errors.Join(subscription.ErrMalformedNotification, err)
			}
		}
	}
	topic = firstNonEmpty(topic, env.Type, env.Topic)
	ref = firstNonEmpty(ref, string(env.Data.ID))
	if topic == "" {
		return subscription.Notification{}, fmt.Errorf("%w: topic is missing", subscription.ErrMalformedNotification)
	}

	if s.secret != "" {
		if err := s.verify(r, ref); err != nil {
			return subscription.Notification{}, errors.Join(subscription.ErrWebhookVerificationFailed, err)
		}
	}

	n := subscription.Notification{
		Provider:    subscription.ProviderMercadoPago,
		EventID:     string(env.ID),
		NativeType:  topic,
		ReferenceID: ref,
	}
	if env.Action != "" {
		n.NativeType = topic + "." + env.Action
	}
	switch topic {
	case TopicPayment:
		n.Kind = subscription.KindPayment
	case TopicPreapproval, TopicSubscriptionPreapproval:
		n.Kind = subscription.KindSubscription
	default:
		n.Kind = subscription.KindIgnored
	}
	return n, nil
}

// verify checks the x-signature header against the
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" manifest.
func (s *Source) verify(r *http.Request, dataID string) error {
	sig, err := webhook.ParseSignatureHeader(r.Header.Get("x-signature"))
	if err != nil {
		return err
	}
	manifest := webhook.Manifest(
		webhook.Field{Name: "id", Value: strings.ToLower(dataID)},
		webhook.Field{Name: "request-id", Value: r.Header.Get("x-request-id")},
		webhook.Field{Name: "ts", Value: strconv.FormatInt(sig.Timestamp, 10)},
	)
	return webhook.Verify(s.secret, manifest, sig, s.tolerance, s.now())
}

// Fetch re-reads the preapproval or payment the notification points at.
func (s *Source) Fetch(ctx context.Context, n subscription.Notification) (*subscription.Resource, error) {
	switch n.Kind {
	case subscription.KindPayment:
		return s.fetchPayment(ctx, n.ReferenceID)
	case subscription.KindSubscription:
		return s.fetchPreapproval(ctx, n.ReferenceID)
	}
	return nil, fmt.Errorf("%w: kind %q", subscription.ErrMalformedNotification, n.Kind)
}

func (s *Source) fetchPreapproval(ctx context.Context, id string) (*subscription.Resource, error) {
	pre, err := s.api.GetPreapproval(ctx, id)
	if err != nil {
		return nil, s.fail("get_preapproval", err)
	}
	currency := strings.ToUpper(pre.AutoRecurring.CurrencyID)
	res := &subscription.Resource{
		ReferenceID:            pre.ID,
		ProviderSubscriptionID: pre.ID,
		NativeStatus:           pre.Status,
		Metadata:               decodeReference(pre.ExternalReference),
		Currency:               currency,
		Amount:                 toMinor(pre.AutoRecurring.TransactionAmount, currency),
	}
	if pre.PayerID != 0 {
		res.ProviderCustomerID = strconv.FormatInt(pre.PayerID, 10)
	}
	if pre.AutoRecurring.EndDate != "" && pre.Status != "cancelled" {
		res.CancelAtPeriodEnd = true
	}
	return res, nil
}

func (s *Source) fetchPayment(ctx context.Context, id string) (*subscription.Resource, error) {
	p, err := s.api.GetPayment(ctx, id)
	if err != nil {
		return nil, s.fail("get_payment", err)
	}
	ref := strconv.FormatInt(p.ID, 10)
	currency := strings.ToUpper(p.CurrencyID)
	amount := toMinor(p.TransactionAmount, currency)
	res := &subscription.Resource{
		ReferenceID:            ref,
		ProviderSubscriptionID: p.PointOfInteraction.TransactionData.SubscriptionID,
		ProviderCustomerID:     p.Payer.ID,
		NativeStatus:           p.Status,
		Metadata:               metadataFrom(p.Metadata, p.ExternalReference),
		Amount:                 amount,
		Currency:               currency,
		PaymentOnly:            true,
		Payment: &subscription.PaymentSnapshot{
			ReferenceID: ref,
			Status:      MapPaymentStatus(p.Status),
			Amount:      amount,
			Currency:    currency,
		},
	}
	if res.Payment.Status == subscription.PaymentFailed {
		res.Payment.FailureReason = p.StatusDetail
	}
	return res, nil
}

func (s *Source) fail(op string, err error) error {
	err = classify(err)
	if _, ok := subscription.AsGatewayError(err); ok {
		return err
	}
	return subscription.UpstreamError(subscription.ProviderMercadoPago, fmt.Errorf("%s: %w", op, err))
}

func toMinor(amount float64, currency string) int64 {
	return subscription.ToMinor(decimal.NewFromFloat(amount), currency)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
