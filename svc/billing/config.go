package billing

import (
	"time"

	"github.com/slotbook/billing/pkg/alert"
	"github.com/slotbook/billing/pkg/subscription"
	"github.com/slotbook/billing/pkg/subscription/mercadopago"
	"github.com/slotbook/billing/pkg/subscription/paddle"
	"github.com/slotbook/billing/pkg/subscription/stripe"
)

// Config is the service configuration, loaded from the environment.
type Config struct {
	Selector subscription.SelectorConfig

	ProcessorTimeout time.Duration `env:"BILLING_PROCESSOR_TIMEOUT" envDefault:"15s"`
	LedgerTTL        time.Duration `env:"BILLING_LEDGER_TTL" envDefault:"72h"`
	LedgerPrefix     string        `env:"BILLING_LEDGER_PREFIX" envDefault:"billing:webhook:"`
	LedgerCacheSize  int           `env:"BILLING_LEDGER_CACHE_SIZE" envDefault:"10000"`
	MaxWebhookBody   int64         `env:"BILLING_MAX_WEBHOOK_BODY" envDefault:"1048576"`
	MaxRequestBody   int64         `env:"BILLING_MAX_REQUEST_BODY" envDefault:"65536"`
	SweepSchedule    string        `env:"BILLING_SWEEP_SCHEDULE" envDefault:"@every 15m"`
	GracePeriod      time.Duration `env:"BILLING_GRACE_PERIOD" envDefault:"168h"`
	ReadyTimeout     time.Duration `env:"BILLING_READY_TIMEOUT" envDefault:"3s"`

	MercadoPago mercadopago.Config
	Stripe      stripe.Config
	Paddle      paddle.Config
	Alert       alert.Config
}
