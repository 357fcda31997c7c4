// Package httpserver runs the billing HTTP surface with graceful shutdown
// and provides liveness and readiness handlers.
//
//	srv := httpserver.New(cfg, log)
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx, router); err != nil {
//	    return err
//	}
//
// Readiness takes named checks, such as pg.Healthcheck and redis.Healthcheck,
// and runs them concurrently on every probe.
package httpserver
