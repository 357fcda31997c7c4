// Package idempotency remembers which webhook notifications have already been
// processed so that redeliveries can be acknowledged without touching the
// processor or the database again.
//
// Two Ledger implementations are provided: RedisLedger for multi-instance
// deployments and MemoryLedger, an expiring LRU, for single-process setups
// and tests. Both satisfy subscription.Ledger.
package idempotency
