// Package requestid attaches a correlation id to every billing request.
//
// The id is taken from X-Request-ID when the caller sends a valid one and
// generated otherwise. It is echoed in the response and exposed to the logger
// through LoggerExtractor, so reconciliation logs of one delivery share it:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r.Use(requestid.Middleware)
package requestid
