// Package logger builds *slog.Logger instances with consistent defaults and
// provides attribute helpers so that billing logs use the same keys everywhere.
//
// New creates a JSON or text handler, attaches static attributes and, when
// ContextExtractor callbacks are registered, wraps the handler so that values
// stored in a context.Context (for example a request id) are added to every
// record logged with that context.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "billing"),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "webhook reconciled",
//	    logger.Provider("stripe"),
//	    logger.BusinessID(businessID),
//	)
//
// Helpers such as Error, ReferenceID and EventID return an empty slog.Attr for
// empty input, so callers never need a nil check before logging.
package logger
