package stripe

import (
	"fmt"

	"github.com/slotbook/billing/pkg/subscription"
)

// Config holds Stripe credentials.
type Config struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	ProductName   string `env:"STRIPE_PRODUCT_NAME" envDefault:"Slotbook"`
	// PriceIDs maps "<plan>_<cycle>" to Stripe price ids, used for plan changes
	// on existing subscriptions. Example: professional_monthly:price_123
	PriceIDs map[string]string `env:"STRIPE_PRICE_IDS" envSeparator:"," envKeyValSeparator:":"`
}

// PriceID returns the configured price for plan and cycle.
func (c Config) PriceID(plan subscription.PlanType, cycle subscription.BillingCycle) (string, error) {
	id, ok := c.PriceIDs[fmt.Sprintf("%s_%s", plan, cycle)]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s_%s", subscription.ErrMissingPriceID, plan, cycle)
	}
	return id, nil
}
