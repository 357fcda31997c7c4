package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/handler"
	"github.com/slotbook/billing/pkg/subscription"
)

func render(t *testing.T, resp handler.Response) (*httptest.ResponseRecorder, handler.JSONResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, resp.Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var got handler.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return w, got
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("data", func(t *testing.T) {
		t.Parallel()
		w, got := render(t, handler.JSON(map[string]string{"status": "active"}))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, handler.JSONResponse{Data: map[string]any{"status": "active"}}, got)
	})

	t.Run("status and meta", func(t *testing.T) {
		t.Parallel()
		w, got := render(t, handler.JSON(
			map[string]string{"session_id": "cs_1"},
			handler.WithJSONStatus(http.StatusCreated),
			handler.WithJSONMeta(map[string]any{"provider": "stripe"}),
		))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, map[string]any{"provider": "stripe"}, got.Meta)
	})

	t.Run("error value is rendered as an error", func(t *testing.T) {
		t.Parallel()
		err := subscription.CallerError(subscription.ErrCodeInvalidPlan, http.StatusBadRequest, errors.New("plan \"gold\""))
		w, got := render(t, handler.JSON(err))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, got.Data)
		assert.Equal(t, &handler.ErrorDetail{Code: subscription.ErrCodeInvalidPlan, Class: "caller"}, got.Error)
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		detail handler.ErrorDetail
	}{
		{
			name:   "caller error",
			err:    subscription.CallerError(subscription.ErrCodeDowngradeExceedsUsage, http.StatusConflict, errors.New("employees: 8 in use")),
			status: http.StatusConflict,
			detail: handler.ErrorDetail{Code: subscription.ErrCodeDowngradeExceedsUsage, Class: "caller"},
		},
		{
			name:   "upstream error",
			err:    subscription.UpstreamError(subscription.ProviderStripe, errors.New("connection reset")),
			status: http.StatusBadGateway,
			detail: handler.ErrorDetail{Code: subscription.ErrCodeUpstreamFailure, Class: "upstream"},
		},
		{
			name:   "untyped error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			detail: handler.ErrorDetail{Code: handler.ErrCodeInternal, Class: "upstream"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, got := render(t, handler.JSONError(tt.err))
			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, got.Error)
			assert.Equal(t, tt.detail, *got.Error)
			assert.NotContains(t, w.Body.String(), tt.err.Error(), "error text must stay out of the body")
		})
	}

	t.Run("status override", func(t *testing.T) {
		t.Parallel()
		w, _ := render(t, handler.JSONError(errors.New("boom"), handler.WithJSONStatus(http.StatusServiceUnavailable)))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
