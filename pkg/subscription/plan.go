package subscription

import (
	_ "embed"
	"errors"
	"fmt"

	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultCatalogYAML []byte

// PlanLimits holds the resource ceilings of a plan tier. Unlimited (-1) disables a ceiling.
type PlanLimits struct {
	MaxLocations           int64 `yaml:"locations" json:"max_locations"`
	MaxEmployees           int64 `yaml:"employees" json:"max_employees"`
	MaxServices            int64 `yaml:"services" json:"max_services"`
	MaxMonthlyAppointments int64 `yaml:"monthly_appointments" json:"max_monthly_appointments"`
}

// For returns the ceiling for kind and whether kind is known.
func (l PlanLimits) For(kind ResourceKind) (int64, bool) {
	switch kind {
	case ResourceLocations:
		return l.MaxLocations, true
	case ResourceEmployees:
		return l.MaxEmployees, true
	case ResourceServices:
		return l.MaxServices, true
	case ResourceMonthlyAppointments:
		return l.MaxMonthlyAppointments, true
	}
	return 0, false
}

// PlanSpec is one row of the catalog.
type PlanSpec struct {
	Limits PlanLimits             `yaml:"limits"`
	Prices map[BillingCycle]int64 `yaml:"prices"`
}

// Catalog is the static plan table: limits and list prices per tier.
// It is loaded once at startup and treated as read-only.
type Catalog struct {
	Currency string                `yaml:"currency"`
	Plans    map[PlanType]PlanSpec `yaml:"plans"`
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// MustDefaultCatalog works like DefaultCatalog but panics on an invalid embedded table.
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog decodes and validates a YAML plan table.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if _, err := currency.ParseISO(c.Currency); err != nil {
		return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("catalog currency %q: %w", c.Currency, err))
	}
	for _, plan := range []PlanType{PlanStarter, PlanProfessional, PlanBusiness, PlanEnterprise} {
		spec, ok := c.Plans[plan]
		if !ok {
			return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q is missing", plan))
		}
		for _, kind := range ResourceKinds {
			limit, _ := spec.Limits.For(kind)
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q: %s limit %d is invalid", plan, kind, limit))
			}
		}
		for _, cycle := range []BillingCycle{CycleMonthly, CycleYearly} {
			if spec.Prices[cycle] <= 0 {
				return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q has no %s price", plan, cycle))
			}
		}
	}
	return nil
}

// Limits returns the limits row for plan.
func (c *Catalog) Limits(plan PlanType) (PlanLimits, error) {
	spec, ok := c.Plans[plan]
	if !ok {
		return PlanLimits{}, ErrPlanNotFound
	}
	return spec.Limits, nil
}

// Price returns the list price of plan billed every cycle.
func (c *Catalog) Price(plan PlanType, cycle BillingCycle) (Money, error) {
	spec, ok := c.Plans[plan]
	if !ok {
		return Money{}, ErrPlanNotFound
	}
	amount, ok := spec.Prices[cycle]
	if !ok {
		return Money{}, ErrInvalidBillingCycle
	}
	return Money{Amount: amount, Currency: c.Currency}, nil
}
