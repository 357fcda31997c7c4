package alert_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/alert"
	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
)

var _ subscription.Escalator = (*alert.PostmarkEscalator)(nil)

func reviewItem() subscription.ReviewItem {
	return subscription.ReviewItem{
		Provider:    subscription.ProviderStripe,
		EventID:     "evt_1",
		NativeType:  "invoice.paid",
		ReferenceID: "in_1",
		Code:        subscription.ErrCodeMissingMetadata,
		Reason:      "business=\"\" plan=\"starter\" cycle=\"monthly\"",
		ReceivedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLogEscalator(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	esc := alert.NewLogEscalator(logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON)))
	require.NoError(t, esc.Escalate(context.Background(), reviewItem()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "billing notification needs manual review", entry["msg"])
	assert.Equal(t, "stripe", entry["provider"])
	assert.Equal(t, "missing_metadata", entry["error_code"])
}

func TestPostmarkEscalator(t *testing.T) {
	t.Parallel()

	cfg := alert.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		From:                 "billing@slotbook.app",
		To:                   []string{"ops@slotbook.app", "finance@slotbook.app"},
		Tag:                  "billing-review",
	}

	t.Run("sends the review email", func(t *testing.T) {
		t.Parallel()
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/email", r.URL.Path)
			assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"m-1"}`))
		}))
		t.Cleanup(srv.Close)

		esc, err := alert.NewPostmarkEscalator(cfg, alert.WithBaseURL(srv.URL))
		require.NoError(t, err)
		require.NoError(t, esc.Escalate(context.Background(), reviewItem()))

		assert.Equal(t, "ops@slotbook.app,finance@slotbook.app", got["To"])
		assert.Equal(t, "[billing] stripe review: missing_metadata", got["Subject"])
		assert.Equal(t, "billing-review", got["Tag"])
		assert.Contains(t, got["HtmlBody"], "in_1")
		assert.Contains(t, got["HtmlBody"], "unknown")
	})

	t.Run("postmark rejection", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
		}))
		t.Cleanup(srv.Close)

		esc, err := alert.NewPostmarkEscalator(cfg, alert.WithBaseURL(srv.URL))
		require.NoError(t, err)
		err = esc.Escalate(context.Background(), reviewItem())
		assert.ErrorIs(t, err, alert.ErrFailedToEscalate)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		for _, bad := range []alert.Config{
			{PostmarkAccountToken: "a", From: "billing@slotbook.app", To: []string{"ops@slotbook.app"}},
			{PostmarkServerToken: "s", PostmarkAccountToken: "a", From: "not an address", To: []string{"ops@slotbook.app"}},
			{PostmarkServerToken: "s", PostmarkAccountToken: "a", From: "billing@slotbook.app"},
			{PostmarkServerToken: "s", PostmarkAccountToken: "a", From: "billing@slotbook.app", To: []string{"nope"}},
		} {
			_, err := alert.NewPostmarkEscalator(bad)
			assert.ErrorIs(t, err, alert.ErrInvalidConfig)
		}
	})
}

type failingEscalator struct{ err error }

func (f failingEscalator) Escalate(context.Context, subscription.ReviewItem) error { return f.err }

func TestFanout(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var buf bytes.Buffer
	f := alert.Fanout{failingEscalator{err: boom}, alert.NewLogEscalator(logger.New(logger.WithOutput(&buf)))}

	err := f.Escalate(context.Background(), reviewItem())
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, buf.String(), "later escalators still run")
}

func TestNew(t *testing.T) {
	t.Parallel()

	esc, err := alert.New(alert.Config{}, logger.Noop())
	require.NoError(t, err)
	assert.IsType(t, &alert.LogEscalator{}, esc)

	esc, err = alert.New(alert.Config{
		PostmarkServerToken:  "s",
		PostmarkAccountToken: "a",
		From:                 "billing@slotbook.app",
		To:                   []string{"ops@slotbook.app"},
	}, logger.Noop())
	require.NoError(t, err)
	assert.IsType(t, alert.Fanout{}, esc)
}
