package paddle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/slotbook/billing/pkg/subscription"
)

type envelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Source verifies Paddle-Signature headers and re-fetches the referenced
// subscription or transaction.
type Source struct {
	api      API
	verifier *paddlesdk.WebhookVerifier
}

// NewSource creates a Source. A nil api uses the SDK client for cfg.
func NewSource(cfg Config, api API) *Source {
	if api == nil {
		api = newSDKAPI(cfg)
	}
	s := &Source{api: api}
	if cfg.WebhookSecret != "" {
		s.verifier = paddlesdk.NewWebhookVerifier(cfg.WebhookSecret)
	}
	return s
}

var _ subscription.Source = (*Source)(nil)

func (s *Source) Provider() subscription.Provider { return subscription.ProviderPaddle }

func (s *Source) MapStatus(native string) subscription.Status { return MapStatus(native) }

func (s *Source) ParseNotification(r *http.Request, body []byte) (subscription.Notification, error) {
	if s.verifier == nil {
		return subscription.Notification{}, errors.Join(subscription.ErrWebhookVerificationFailed, subscription.ErrMissingWebhookSecret)
	}
	ok, err := s.verifier.Verify(r)
	if err != nil {
		return subscription.Notification{}, errors.Join(subscription.ErrWebhookVerificationFailed, err)
	}
	if !ok {
		return subscription.Notification{}, subscription.ErrWebhookVerificationFailed
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return subscription.Notification{}, errors.Join(subscription.ErrMalformedNotification, err)
	}
	if env.EventType == "" {
		return subscription.Notification{}, fmt.Errorf("%w: event_type is missing", subscription.ErrMalformedNotification)
	}

	return subscription.Notification{
		Provider:    subscription.ProviderPaddle,
		EventID:     env.EventID,
		NativeType:  env.EventType,
		ReferenceID: env.Data.ID,
		Kind:        kindOf(env.EventType),
	}, nil
}

func kindOf(eventType string) subscription.NotificationKind {
	switch eventType {
	case "subscription.created", "subscription.updated", "subscription.activated",
		"subscription.canceled", "subscription.paused", "subscription.resumed",
		"subscription.past_due", "subscription.trialing":
		return subscription.KindSubscription
	case "transaction.completed", "transaction.paid", "transaction.payment_failed",
		"transaction.past_due", "transaction.canceled":
		return subscription.KindPayment
	}
	return subscription.KindIgnored
}

func (s *Source) Fetch(ctx context.Context, n subscription.Notification) (*subscription.Resource, error) {
	switch n.Kind {
	case subscription.KindSubscription:
		return s.fetchSubscription(ctx, n.ReferenceID)
	case subscription.KindPayment:
		return s.fetchTransaction(ctx, n.ReferenceID)
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
		ProviderCustomerID:     sub.CustomerID,
		NativeStatus:           string(sub.Status),
		Metadata:               metadataOf(sub.CustomData),
		Currency:               string(sub.CurrencyCode),
	}
	if sub.ScheduledChange != nil && sub.ScheduledChange.Action == paddlesdk.ScheduledChangeActionCancel {
		res.CancelAtPeriodEnd = true
	}
	if len(sub.Items) > 0 {
		res.Amount = parseAmount(sub.Items[0].Price.UnitPrice.Amount)
	}
	if sub.Status == paddlesdk.SubscriptionStatusTrialing && sub.NextBilledAt != nil {
		if end, err := time.Parse(time.RFC3339, *sub.NextBilledAt); err == nil {
			end = end.UTC()
			res.TrialEnd = &end
		}
	}
	return res, nil
}

// fetchTransaction resolves a transaction to its subscription and attaches
// the charge. A settled transaction whose subscription Paddle has not created
// yet is retried; an unsettled one only records the charge.
func (s *Source) fetchTransaction(ctx context.Context, id string) (*subscription.Resource, error) {
	txn, err := s.api.GetTransaction(ctx, id)
	if err != nil {
		return nil, s.fail("get_transaction", err)
	}
	payment := transactionSnapshot(txn)

	if txn.SubscriptionID == nil || *txn.SubscriptionID == "" {
		if payment.Status == subscription.PaymentCompleted {
			return nil, subscription.IntegrityError(subscription.ErrCodeResourceNotFound, true,
				fmt.Errorf("transaction %s has no subscription yet", txn.ID)).WithProvider(subscription.ProviderPaddle)
		}
		return &subscription.Resource{
			ReferenceID: txn.ID,
			Metadata:    metadataOf(txn.CustomData),
			Amount:      payment.Amount,
			Currency:    payment.Currency,
			Payment:     payment,
			PaymentOnly: true,
		}, nil
	}

	res, err := s.fetchSubscription(ctx, *txn.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if res.Metadata.BusinessID == "" {
		res.Metadata = metadataOf(txn.CustomData)
	}
	res.ReferenceID = txn.ID
	res.Payment = payment
	return res, nil
}

func (s *Source) fail(op string, err error) error {
	err = classify(err)
	if _, ok := subscription.AsGatewayError(err); ok {
		return err
	}
	return subscription.UpstreamError(subscription.ProviderPaddle, fmt.Errorf("%s: %w", op, err))
}

func transactionSnapshot(txn *paddlesdk.Transaction) *subscription.PaymentSnapshot {
	status := MapTransactionStatus(string(txn.Status))
	p := &subscription.PaymentSnapshot{
		ReferenceID: txn.ID,
		Status:      status,
		Amount:      parseAmount(txn.Details.Totals.Total),
		Currency:    strings.ToUpper(string(txn.CurrencyCode)),
	}
	if status == subscription.PaymentFailed {
		p.FailureReason = "transaction " + string(txn.Status)
	}
	return p
}

func metadataOf(data paddlesdk.CustomData) subscription.Metadata {
	get := func(key string) string {
		v, _ := data[key].(string)
		return v
	}
	return subscription.Metadata{
		BusinessID: get(subscription.MetaBusinessID),
		Plan:       get(subscription.MetaPlan),
		Cycle:      get(subscription.MetaCycle),
	}
}

// parseAmount reads Paddle's minor-unit amount strings. Unparseable values
// become 0, which makes the reconciler fall back to the catalog price.
func parseAmount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
