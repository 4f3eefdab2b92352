package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrUnknownPlan = errors.New("unknown plan")

// Plan is a purchasable balance tier. It is a closed set: NumericPlan or
// ContactSalesPlan.
type Plan interface {
	PlanID() string
	isPlan()
}

// NumericPlan credits the native equivalent of Fiat (operating currency).
type NumericPlan struct {
	ID   string
	Fiat decimal.Decimal
}

// ContactSalesPlan cannot be bought through the API.
type ContactSalesPlan struct {
	ID string
}

func (p NumericPlan) PlanID() string      { return p.ID }
func (p ContactSalesPlan) PlanID() string { return p.ID }

func (NumericPlan) isPlan()      {}
func (ContactSalesPlan) isPlan() {}

// Catalog maps plan identifiers to plans.
type Catalog map[string]Plan

// DefaultCatalog returns the published plan tiers. Amounts are in the
// operating currency.
func DefaultCatalog() Catalog {
	return Catalog{
		"mensal_10":         NumericPlan{ID: "mensal_10", Fiat: decimal.NewFromInt(30)},
		"mensal_20":         NumericPlan{ID: "mensal_20", Fiat: decimal.NewFromInt(50)},
		"anual_20":          NumericPlan{ID: "anual_20", Fiat: decimal.NewFromInt(25)},
		"anual_40":          NumericPlan{ID: "anual_40", Fiat: decimal.NewFromInt(45)},
		"premium_anual_100": NumericPlan{ID: "premium_anual_100", Fiat: decimal.NewFromInt(60)},
		"corporativo":       ContactSalesPlan{ID: "corporativo"},
	}
}

func (c Catalog) Lookup(planID string) (Plan, error) {
	p, ok := c[planID]
	if !ok {
		return nil, ErrUnknownPlan
	}
	return p, nil
}
