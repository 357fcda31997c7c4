// Package webhook verifies inbound webhook signatures that follow the
// "ts=<unix>,v1=<hex hmac>" header convention, where the HMAC-SHA256 is taken
// over a manifest string built from request fields.
//
// Processors with their own SDK verifiers (Stripe, Paddle) use those; this
// package serves processors that only document the algorithm.
//
//	sig, err := webhook.ParseSignatureHeader(r.Header.Get("x-signature"))
//	manifest := webhook.Manifest(
//	    webhook.Field{Name: "id", Value: dataID},
//	    webhook.Field{Name: "request-id", Value: r.Header.Get("x-request-id")},
//	    webhook.Field{Name: "ts", Value: strconv.FormatInt(sig.Timestamp, 10)},
//	)
//	err = webhook.Verify(secret, manifest, sig, 5*time.Minute, time.Now())
package webhook
