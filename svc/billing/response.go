package billing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/binder"
	"github.com/slotbook/billing/pkg/handler"
	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
)

var (
	ErrInvalidBody       = errors.New("invalid request body")
	ErrInvalidBusinessID = errors.New("invalid business id")
	ErrUnknownProvider   = errors.New("unknown payment processor")
)

var bindPath = binder.Path(chi.URLParam)

// businessParams is the {business} segment shared by the lifecycle routes.
type businessParams struct {
	Business uuid.UUID `path:"business"`
}

type limitParams struct {
	Business uuid.UUID                 `path:"business"`
	Kind     subscription.ResourceKind `path:"kind"`
}

type webhookParams struct {
	Provider subscription.Provider `path:"provider"`
}

// render writes resp and logs a failed write.
func (s *Service) render(w http.ResponseWriter, r *http.Request, resp handler.Response) {
	if err := resp.Render(w, r); err != nil {
		s.log.WarnContext(r.Context(), "failed to write response", logger.Error(err))
	}
}

// writeError renders the code and class of err. Human-readable detail only
// goes to the log.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, class := handler.ErrCodeInternal, subscription.ClassUpstream
	if ge, ok := subscription.AsGatewayError(err); ok {
		code, class = ge.Code, ge.Class
	}

	attrs := []any{
		logger.ErrorCode(code),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Error(err),
	}
	if class == subscription.ClassCaller {
		s.log.WarnContext(r.Context(), "billing request rejected", attrs...)
	} else {
		s.log.ErrorContext(r.Context(), "billing request failed", attrs...)
	}
	s.render(w, r, handler.JSONError(err))
}

// bindBody decodes the JSON body into v. An empty body leaves v untouched
// when optional is set.
func (s *Service) bindBody(r *http.Request, v any, optional bool) error {
	opts := []binder.JSONOption{binder.WithMaxBytes(s.cfg.MaxRequestBody)}
	if optional {
		opts = append(opts, binder.AllowEmpty())
	}
	err := binder.BindJSON(opts...)(r, v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return subscription.CallerError(subscription.ErrCodeInvalidRequest, http.StatusUnsupportedMediaType, err)
	case errors.Is(err, binder.ErrBodyTooLarge):
		return subscription.CallerError(subscription.ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge, err)
	}
	return subscription.CallerError(subscription.ErrCodeInvalidRequest, http.StatusBadRequest,
		errors.Join(ErrInvalidBody, err))
}

// businessID binds the {business} path segment.
func businessID(r *http.Request) (uuid.UUID, error) {
	var p businessParams
	if err := bindPath(r, &p); err != nil || p.Business == uuid.Nil {
		return uuid.Nil, subscription.CallerError(subscription.ErrCodeInvalidRequest, http.StatusBadRequest,
			errors.Join(ErrInvalidBusinessID, err))
	}
	return p.Business, nil
}

func limitRequest(r *http.Request) (limitParams, error) {
	var p limitParams
	if err := bindPath(r, &p); err != nil || p.Business == uuid.Nil {
		return p, subscription.CallerError(subscription.ErrCodeInvalidRequest, http.StatusBadRequest,
			errors.Join(ErrInvalidBusinessID, err))
	}
	return p, nil
}

func webhookProvider(r *http.Request) (subscription.Provider, error) {
	var p webhookParams
	if err := bindPath(r, &p); err != nil {
		return "", subscription.CallerError(subscription.ErrCodeInvalidRequest, http.StatusBadRequest, err)
	}
	return p.Provider, nil
}

func unknownProvider(p subscription.Provider) error {
	return subscription.CallerError(subscription.ErrCodeInvalidRequest, http.StatusNotFound,
		fmt.Errorf("%w: %q", ErrUnknownProvider, p))
}
