// Package billing is the HTTP surface of the billing engine.
//
// It wires the processor adapters into a subscription.Registry, exposes the
// lifecycle API the platform UI calls, receives processor webhooks and runs
// the periodic sweeper:
//
//	POST /billing/{business}/checkout
//	PUT  /billing/{business}/subscription
//	POST /billing/{business}/subscription/{cancel|pause|resume|reactivate}
//	GET  /billing/{business}/dashboard
//	GET  /billing/{business}/limits/{kind}
//	POST /billing/{business}/discounts/apply
//	POST /webhooks/{mercadopago|stripe|paddle}
//
// Successful responses are {"data": ...}. Failures are
// {"error": {"code": ..., "class": ...}} with the status taken from the
// subscription.GatewayError; the human-readable cause is only logged.
package billing
