package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/slotbook/billing/pkg/logger"
)

// DiscountKind selects how a discount reduces the price.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// Discount result messages.
const (
	DiscountApplied       = "discount_applied"
	DiscountNotFound      = "discount_not_found"
	DiscountNotYetValid   = "discount_not_yet_valid"
	DiscountExpired       = "discount_expired"
	DiscountNotApplicable = "discount_not_applicable"
	DiscountExhausted     = "discount_exhausted"
	DiscountCurrency      = "discount_currency_mismatch"
	DiscountMisconfigured = "discount_misconfigured"
)

// DiscountCode is a promotional code. It is evaluated, never mutated, by this package.
type DiscountCode struct {
	Code           string
	Kind           DiscountKind
	Percent        int64 // 1..100 for percentage codes
	Amount         int64 // minor units for fixed codes
	Currency       string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	Plans          []PlanType // eligible plans; empty means all
	MaxRedemptions int64      // 0 means unlimited
	TimesRedeemed  int64
	ProviderRefs   map[Provider]string // processor-side discount ids
}

// DiscountResult is the outcome of evaluating a code against a price.
type DiscountResult struct {
	IsValid        bool          `json:"is_valid"`
	DiscountAmount int64         `json:"discount_amount"`
	FinalAmount    int64         `json:"final_amount"`
	Message        string        `json:"message"`
	Discount       *DiscountCode `json:"-"`
}

// DiscountApplier computes discounts on the server side only.
type DiscountApplier struct {
	store    DiscountStore
	currency string
	log      *slog.Logger
	now      func() time.Time
}

// NewDiscountApplier creates an applier pricing in the catalog currency.
func NewDiscountApplier(store DiscountStore, catalogCurrency string, log *slog.Logger, now func() time.Time) *DiscountApplier {
	if store == nil {
		panic("discount store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &DiscountApplier{store: store, currency: catalogCurrency, log: log, now: now}
}

// Apply evaluates code for plan at amount. Unusable codes produce IsValid=false
// with the undiscounted amount; only bad input and store failures are errors.
func (a *DiscountApplier) Apply(ctx context.Context, businessID uuid.UUID, code string, plan PlanType, amount int64) (*DiscountResult, error) {
	if amount < 0 {
		return nil, CallerError(ErrCodeInvalidAmount, http.StatusBadRequest, fmt.Errorf("amount %d is negative", amount))
	}
	if !plan.Valid() {
		return nil, CallerError(ErrCodeInvalidPlan, http.StatusBadRequest, fmt.Errorf("plan %q", plan))
	}

	invalid := func(msg string) *DiscountResult {
		return &DiscountResult{FinalAmount: amount, Message: msg}
	}

	normalized := NormalizeDiscountCode(code)
	if normalized == "" {
		return invalid(DiscountNotFound), nil
	}
	d, err := a.store.GetDiscount(ctx, normalized)
	if errors.Is(err, ErrDiscountNotFound) {
		return invalid(DiscountNotFound), nil
	}
	if err != nil {
		return nil, StoreError(err)
	}

	now := a.now().UTC()
	switch {
	case d.ValidFrom != nil && now.Before(*d.ValidFrom):
		return invalid(DiscountNotYetValid), nil
	case d.ValidUntil != nil && !now.Before(*d.ValidUntil):
		return invalid(DiscountExpired), nil
	case len(d.Plans) > 0 && !slices.Contains(d.Plans, plan):
		return invalid(DiscountNotApplicable), nil
	case d.MaxRedemptions > 0 && d.TimesRedeemed >= d.MaxRedemptions:
		return invalid(DiscountExhausted), nil
	}

	var off int64
	switch d.Kind {
	case DiscountPercentage:
		if d.Percent <= 0 || d.Percent > 100 {
			a.log.WarnContext(ctx, "discount code has an out-of-range percentage",
				logger.BusinessID(businessID),
				logger.DiscountCode(normalized),
			)
			return invalid(DiscountMisconfigured), nil
		}
		off = decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(d.Percent)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case DiscountFixed:
		if !sameCurrency(d.Currency, a.currency) {
			return invalid(DiscountCurrency), nil
		}
		off = min(d.Amount, amount)
	default:
		return invalid(DiscountMisconfigured), nil
	}

	return &DiscountResult{
		IsValid:        true,
		DiscountAmount: off,
		FinalAmount:    amount - off,
		Message:        DiscountApplied,
		Discount:       d,
	}, nil
}

func sameCurrency(a, b string) bool {
	ua, err := currency.ParseISO(a)
	if err != nil {
		return false
	}
	ub, err := currency.ParseISO(b)
	if err != nil {
		return false
	}
	return ua == ub
}
