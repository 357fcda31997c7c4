package paddle

import (
	"fmt"

	"github.com/slotbook/billing/pkg/subscription"
)

// Config holds configuration for the Paddle billing provider.
type Config struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// PriceIDs maps "<plan>_<cycle>" to Paddle catalog price ids.
	PriceIDs map[string]string `env:"PADDLE_PRICE_IDS" envSeparator:"," envKeyValSeparator:":"`
}

// PriceID returns the catalog price for plan and cycle.
func (c Config) PriceID(plan subscription.PlanType, cycle subscription.BillingCycle) (string, error) {
	id, ok := c.PriceIDs[fmt.Sprintf("%s_%s", plan, cycle)]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s_%s", subscription.ErrMissingPriceID, plan, cycle)
	}
	return id, nil
}
