package crafting

import (
	"context"
	"sort"

	"marketwatch/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TaxRates are the market tax percentages applied to sales.
type TaxRates struct {
	Premium    decimal.Decimal
	NonPremium decimal.Decimal
}

// DefaultTaxRates are the in-game market taxes.
var DefaultTaxRates = TaxRates{
	Premium:    decimal.NewFromInt(4),
	NonPremium: decimal.NewFromInt(8),
}

// Return rates in percent.
var (
	DefaultReturnRate = decimal.NewFromInt(15)
	BonusReturnRate   = decimal.NewFromInt(28)
)

// ReturnPolicy tells the crafter which resources crafting can give back.
type ReturnPolicy interface {
	IsReturnable(resource string) bool
}

// ReturnPolicyFunc adapts a function to ReturnPolicy.
type ReturnPolicyFunc func(resource string) bool

func (f ReturnPolicyFunc) IsReturnable(resource string) bool { return f(resource) }

// AllReturnable treats every resource as returnable.
var AllReturnable = ReturnPolicyFunc(func(string) bool { return true })

// CatalogReturnPolicy answers from the item catalog: artefacts and city
// resources are never returned.
func CatalogReturnPolicy(ctx context.Context, catalog domain.ItemCatalog) ReturnPolicy {
	return ReturnPolicyFunc(func(resource string) bool {
		return IsReturnable(ctx, catalog, resource)
	})
}

// Input is everything the crafter needs besides the target market record.
type Input struct {
	ResourcePrices    map[string]int64 // silver per unit
	OwnedResources    map[string]int64
	Requirements      map[string]int64 // per crafted unit
	ReturnRatePercent decimal.Decimal
	HasPremium        bool
}

// UnusedMaterial is a leftover resource and its market value.
type UnusedMaterial struct {
	ItemID string `json:"item_id"`
	Count  int64  `json:"count"`
	Value  int64  `json:"value"`
}

// Result is the profit breakdown of one crafting session.
// Profit == SellPrice - Tax - RawCost + UnusedResourcesValue always holds.
type Result struct {
	SellPrice            int64            `json:"sell_price"`
	Tax                  int64            `json:"tax"`
	RawCost              int64            `json:"raw_cost"`
	UnusedResourcesValue int64            `json:"unused_resources_price"`
	Profit               int64            `json:"profit"`
	ItemsCrafted         int64            `json:"items_crafted"`
	ReturnRate           decimal.Decimal  `json:"return_rate"`
	ReturnedResources    map[string]int64 `json:"returned_resources"`
	UnusedMaterials      []UnusedMaterial `json:"unused_materials"`
}

// Crafter evaluates crafting outcomes. It never fails: degenerate input
// (nothing craftable, zero return rate) still yields a consistent Result.
type Crafter struct {
	input  Input
	policy ReturnPolicy
	taxes  TaxRates
}

// NewCrafter creates a crafter. A nil policy means every resource is returnable.
func NewCrafter(input Input, policy ReturnPolicy, taxes TaxRates) *Crafter {
	if policy == nil {
		policy = AllReturnable
	}
	return &Crafter{input: input, policy: policy, taxes: taxes}
}

// Printable computes the profit breakdown when selling at target.
func (c *Crafter) Printable(target domain.PriceRecord) Result {
	rawCost := c.rawCost()
	returned := c.returnedResources()

	total := make(map[string]int64, len(c.input.OwnedResources))
	for resource, owned := range c.input.OwnedResources {
		total[resource] = owned + returned[resource]
	}

	crafted := int64(1)
	if !sameCounts(c.input.OwnedResources, c.input.Requirements) {
		crafted = c.itemsCrafted(total)
	}

	unused := c.unusedMaterials(total, crafted)
	var unusedValue int64
	for _, m := range unused {
		unusedValue += m.Value
	}

	sellPrice := target.SellPriceMin * crafted
	tax := c.tax(sellPrice)

	return Result{
		SellPrice:            sellPrice,
		Tax:                  tax,
		RawCost:              rawCost,
		UnusedResourcesValue: unusedValue,
		Profit:               sellPrice - tax - rawCost + unusedValue,
		ItemsCrafted:         crafted,
		ReturnRate:           c.input.ReturnRatePercent,
		ReturnedResources:    returned,
		UnusedMaterials:      unused,
	}
}

func (c *Crafter) rawCost() int64 {
	var cost int64
	for resource, owned := range c.input.OwnedResources {
		cost += owned * c.input.ResourcePrices[resource]
	}
	return cost
}

func (c *Crafter) returnedResources() map[string]int64 {
	res := make(map[string]int64, len(c.input.OwnedResources))
	for resource, owned := range c.input.OwnedResources {
		if !c.policy.IsReturnable(resource) {
			res[resource] = 0
			continue
		}
		res[resource] = ReturnedUnits(owned, c.input.ReturnRatePercent)
	}
	return res
}

// ReturnedUnits simulates repeated crafting returns: source becomes
// floor(source * rate / 100) until it reaches zero, summing every step.
// Negative rates return nothing; at 100% or more the chain stops after the
// first step that does not shrink.
func ReturnedUnits(owned int64, ratePercent decimal.Decimal) int64 {
	if owned <= 0 || !ratePercent.IsPositive() {
		return 0
	}

	var returned int64
	source := owned
	for source > 0 {
		next := decimal.NewFromInt(source).Mul(ratePercent).Div(hundred).Floor().IntPart()
		returned += next
		if next >= source {
			break
		}
		source = next
	}
	return returned
}

func (c *Crafter) itemsCrafted(total map[string]int64) int64 {
	var (
		crafted int64
		found   bool
	)
	for resource, need := range c.input.Requirements {
		if need <= 0 {
			continue
		}
		n := total[resource] / need
		if n < 0 {
			n = 0
		}
		if !found || n < crafted {
			crafted, found = n, true
		}
	}
	return crafted
}

func (c *Crafter) unusedMaterials(total map[string]int64, crafted int64) []UnusedMaterial {
	keys := make([]string, 0, len(total)+len(c.input.Requirements))
	seen := make(map[string]bool, cap(keys))
	for resource := range total {
		keys = append(keys, resource)
		seen[resource] = true
	}
	for resource := range c.input.Requirements {
		if !seen[resource] {
			keys = append(keys, resource)
		}
	}
	sort.Strings(keys)

	materials := make([]UnusedMaterial, 0, len(keys))
	for _, resource := range keys {
		left := total[resource] - c.input.Requirements[resource]*crafted
		if left < 0 {
			left = 0
		}
		materials = append(materials, UnusedMaterial{
			ItemID: resource,
			Count:  left,
			Value:  left * c.input.ResourcePrices[resource],
		})
	}
	return materials
}

func (c *Crafter) tax(sellPrice int64) int64 {
	rate := c.taxes.NonPremium
	if c.input.HasPremium {
		rate = c.taxes.Premium
	}
	return decimal.NewFromInt(sellPrice).Mul(rate).Div(hundred).Floor().IntPart()
}

func sameCounts(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
