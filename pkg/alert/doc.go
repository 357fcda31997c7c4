// Package alert routes webhook notifications that need manual review to
// people. Every Escalator here satisfies subscription.Escalator.
//
// LogEscalator always runs; PostmarkEscalator emails the billing operators
// when Postmark credentials are configured. New picks the combination from
// Config.
package alert
