// Package subscription keeps a canonical, processor-independent record of each
// business's subscription and reconciles it with whichever payment processor
// bills that business.
//
// # Architecture
//
// The package is split into a processor-independent core and per-processor
// adapters living in subpackages (mercadopago, stripe, paddle):
//
//   - Gateway: the contract every adapter implements (checkout, plan change,
//     cancel, pause, resume, reactivate, dashboard, limit check, discount).
//   - Core: the shared half of a Gateway. Adapters embed it and only add the
//     processor calls.
//   - Registry and SelectGateway: pick an adapter from configuration. Unknown
//     values fall back to the registry default.
//   - Reconciler and Source: turn processor webhooks into canonical writes.
//     A Source parses and authenticates notifications and re-fetches the
//     referenced object; the Reconciler owns everything else.
//   - Store: the persistence boundary. MemoryStore ships for tests; the
//     pgstore subpackage implements it on PostgreSQL.
//   - Catalog: the plan limit and price table, embedded from plans.yaml.
//
// # Reconciliation
//
// Webhook bodies are never trusted beyond the reference id. For every
// relevant notification the Reconciler:
//
//  1. authenticates and parses the notification, dropping irrelevant kinds
//  2. skips event ids already recorded in the Ledger
//  3. re-fetches the authoritative object from the processor
//  4. reads business id, plan and billing cycle from its metadata
//  5. checks them against the PendingCheckout recorded at checkout time
//  6. maps the native status with a total mapping (unknown values become inactive)
//  7. upserts SubscriptionInfo by business id and PaymentHistory by reference id
//  8. appends a SubscriptionEvent, logging but ignoring failures
//
// Integrity failures that a retry can fix are returned so the processor
// redelivers. Failures a retry cannot fix are acknowledged and handed to the
// Escalator for manual review.
//
// # Errors
//
// Every operation returns *GatewayError with a stable Code and a Class:
// caller (4xx), upstream (5xx, retryable) or integrity. Branch on the code:
//
//	if subscription.CodeOf(err) == subscription.ErrCodeReactivationRequiresCheckout {
//	    // send the user to checkout
//	}
//
// # Limits
//
// Unlimited (-1) is checked before any comparison, so an unlimited resource is
// always allowed. Otherwise one more unit is allowed while current < limit.
package subscription
