// Command billingd runs the billing engine: the lifecycle API, processor
// webhooks and the periodic sweeper, backed by PostgreSQL and Redis.
//
// Configuration is read from the environment and optional .env files; see
// billing.Config, pg.Config, redis.Config and httpserver.Config.
package main
