// Package binder decodes billing API requests: JSON bodies and chi path
// parameters.
package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultMaxBodySize caps a JSON body when no limit is configured.
const DefaultMaxBodySize int64 = 1 << 20

type jsonConfig struct {
	maxBytes   int64
	allowEmpty bool
}

// JSONOption configures BindJSON.
type JSONOption func(*jsonConfig)

// WithMaxBytes caps the body size. Non-positive values keep the default.
func WithMaxBytes(n int64) JSONOption {
	return func(c *jsonConfig) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// AllowEmpty accepts a request without a body and leaves the target untouched.
func AllowEmpty() JSONOption {
	return func(c *jsonConfig) { c.allowEmpty = true }
}

// BindJSON creates a strict JSON binder: the media type must be
// application/json, unknown fields are rejected and nothing may follow the
// object.
func BindJSON(opts ...JSONOption) func(r *http.Request, v any) error {
	cfg := jsonConfig{maxBytes: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(r *http.Request, v any) error {
		if cfg.allowEmpty && (r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0) {
			return nil
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType := contentType
		if idx := strings.Index(contentType, ";"); idx != -1 {
			mediaType = strings.TrimSpace(contentType[:idx])
		}
		if mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, mediaType)
		}

		data, err := io.ReadAll(io.LimitReader(r.Body, cfg.maxBytes+1))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		if int64(len(data)) > cfg.maxBytes {
			return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, cfg.maxBytes)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			if cfg.allowEmpty {
				return nil
			}
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		}

		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}

		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}
		return nil
	}
}
