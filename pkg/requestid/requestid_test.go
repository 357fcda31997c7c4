package requestid_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/requestid"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	serve := func(header string) (ctxID, respID string) {
		h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxID = requestid.FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
		if header != "" {
			req.Header.Set(requestid.Header, header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return ctxID, rec.Header().Get(requestid.Header)
	}

	t.Run("reuses a valid id", func(t *testing.T) {
		t.Parallel()
		ctxID, respID := serve("mp-delivery-42")
		assert.Equal(t, "mp-delivery-42", ctxID)
		assert.Equal(t, ctxID, respID)
	})

	t.Run("generates an id when missing or invalid", func(t *testing.T) {
		t.Parallel()
		for _, in := range []string{"", "has space", "a/b", strings.Repeat("x", 129)} {
			ctxID, respID := serve(in)
			require.NotEmpty(t, ctxID, "input %q", in)
			assert.NotEqual(t, in, ctxID)
			assert.Equal(t, ctxID, respID)
		}
	})
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Equal(t, "abc", requestid.FromContext(requestid.WithContext(context.Background(), "abc")))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithContextExtractors(requestid.LoggerExtractor()))

	log.InfoContext(requestid.WithContext(context.Background(), "req-1"), "webhook received")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	buf.Reset()
	log.InfoContext(context.Background(), "no id")
	assert.NotContains(t, buf.String(), "request_id")
}
