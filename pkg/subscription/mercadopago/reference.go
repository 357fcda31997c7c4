package mercadopago

import (
	"strings"

	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/subscription"
)

// MercadoPago carries no free-form metadata on preapprovals, so the
// attribution tags travel in external_reference as "business|plan|cycle".
const referenceSeparator = "|"

func encodeReference(businessID uuid.UUID, plan subscription.PlanType, cycle subscription.BillingCycle) string {
	return strings.Join([]string{businessID.String(), string(plan), string(cycle)}, referenceSeparator)
}

// decodeReference never fails; missing parts stay empty and are rejected by the reconciler.
func decodeReference(ref string) subscription.Metadata {
	parts := strings.SplitN(ref, referenceSeparator, 3)
	var m subscription.Metadata
	if len(parts) > 0 {
		m.BusinessID = parts[0]
	}
	if len(parts) > 1 {
		m.Plan = parts[1]
	}
	if len(parts) > 2 {
		m.Cycle = parts[2]
	}
	return m
}

// metadataFrom prefers payment metadata keys and falls back to the external reference.
func metadataFrom(meta map[string]any, ref string) subscription.Metadata {
	m := decodeReference(ref)
	if v, ok := meta[subscription.MetaBusinessID].(string); ok && v != "" {
		m.BusinessID = v
	}
	if v, ok := meta[subscription.MetaPlan].(string); ok && v != "" {
		m.Plan = v
	}
	if v, ok := meta[subscription.MetaCycle].(string); ok && v != "" {
		m.Cycle = v
	}
	return m
}
