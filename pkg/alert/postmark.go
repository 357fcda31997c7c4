package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/slotbook/billing/pkg/subscription"
)

var reviewTemplate = template.Must(template.New("review").Parse(`<h2>Billing notification needs review</h2>
<table>
<tr><td>Provider</td><td>{{.Provider}}</td></tr>
<tr><td>Event</td><td>{{.NativeType}} {{.EventID}}</td></tr>
<tr><td>Reference</td><td>{{.ReferenceID}}</td></tr>
<tr><td>Business</td><td>{{if .BusinessID}}{{.BusinessID}}{{else}}unknown{{end}}</td></tr>
<tr><td>Code</td><td>{{.Code}}</td></tr>
<tr><td>Received</td><td>{{.ReceivedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
</table>
<pre>{{.Reason}}</pre>
`))

// PostmarkEscalator emails review items through Postmark's transactional API.
type PostmarkEscalator struct {
	client *postmark.Client
	cfg    Config
}

// NewPostmarkEscalator validates cfg and creates the escalator.
func NewPostmarkEscalator(cfg Config, opts ...func(*postmark.Client)) (*PostmarkEscalator, error) {
	if cfg.PostmarkServerToken == "" || cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: postmark tokens are required", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %w", ErrInvalidConfig, cfg.From, err)
	}
	if len(cfg.To) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidConfig)
	}
	for _, to := range cfg.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return nil, fmt.Errorf("%w: recipient %q: %w", ErrInvalidConfig, to, err)
		}
	}

	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	for _, opt := range opts {
		opt(client)
	}
	return &PostmarkEscalator{client: client, cfg: cfg}, nil
}

// WithBaseURL points the Postmark client at another endpoint.
func WithBaseURL(u string) func(*postmark.Client) {
	return func(c *postmark.Client) { c.BaseURL = u }
}

func (e *PostmarkEscalator) Escalate(ctx context.Context, item subscription.ReviewItem) error {
	if item.ReceivedAt.IsZero() {
		item.ReceivedAt = time.Now().UTC()
	}
	var body bytes.Buffer
	if err := reviewTemplate.Execute(&body, item); err != nil {
		return errors.Join(ErrFailedToEscalate, err)
	}

	resp, err := e.client.SendEmail(ctx, postmark.Email{
		From:     e.cfg.From,
		To:       strings.Join(e.cfg.To, ","),
		Subject:  fmt.Sprintf("[billing] %s review: %s", item.Provider, item.Code),
		Tag:      e.cfg.Tag,
		HTMLBody: body.String(),
	})
	if err != nil {
		return errors.Join(ErrFailedToEscalate, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToEscalate, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
