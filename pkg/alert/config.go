package alert

// Config selects where review alerts go. Email is sent only when both
// Postmark tokens and at least one recipient are set.
type Config struct {
	PostmarkServerToken  string   `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string   `env:"POSTMARK_ACCOUNT_TOKEN"`
	From                 string   `env:"BILLING_ALERT_FROM" envDefault:"billing@slotbook.app"`
	To                   []string `env:"BILLING_ALERT_TO" envSeparator:","`
	Tag                  string   `env:"BILLING_ALERT_TAG" envDefault:"billing-review"`
}

func (c Config) emailEnabled() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != "" && len(c.To) > 0
}
