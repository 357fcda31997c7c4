// Package redis connects the billing service to Redis, which backs the
// processed-notification ledger shared by all service instances.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	ledger := idempotency.NewRedisLedger(client, "billing:")
//
// Healthcheck returns a probe suitable for the readiness endpoint.
package redis
