package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is a parsed "ts=...,v1=..." header.
type Signature struct {
	Timestamp int64
	V1        string
}

// ParseSignatureHeader splits a signature header into its parts.
// Unknown parts are ignored; ts and v1 are required.
func ParseSignatureHeader(header string) (Signature, error) {
	var sig Signature
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return Signature{}, fmt.Errorf("%w: invalid timestamp", ErrMalformedSignature)
			}
			sig.Timestamp = ts
		case "v1":
			sig.V1 = strings.TrimSpace(v)
		}
	}
	if sig.Timestamp == 0 || sig.V1 == "" {
		return Signature{}, fmt.Errorf("%w: ts and v1 are required", ErrMalformedSignature)
	}
	return sig, nil
}

// Field is one "name:value;" segment of a manifest.
type Field struct {
	Name  string
	Value string
}

// Manifest joins non-empty fields as "name:value;" in order.
func Manifest(fields ...Field) string {
	var b strings.Builder
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// Sign returns the hex HMAC-SHA256 of manifest under secret.
func Sign(secret, manifest string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(manifest))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks sig against manifest. A positive maxAge also rejects
// timestamps older than maxAge or more than a minute in the future.
func Verify(secret, manifest string, sig Signature, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if sig.V1 == "" {
		return fmt.Errorf("%w: signature is missing", ErrMalformedSignature)
	}

	if maxAge > 0 {
		age := now.Sub(unixAuto(sig.Timestamp))
		if age > maxAge {
			return fmt.Errorf("%w: signed %v ago", ErrSignatureExpired, age)
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp is in the future", ErrSignatureExpired)
		}
	}

	expected := Sign(secret, manifest)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig.V1))) {
		return ErrSignatureMismatch
	}
	return nil
}

// unixAuto accepts timestamps in seconds or milliseconds.
func unixAuto(ts int64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
