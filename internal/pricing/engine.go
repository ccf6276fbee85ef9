// Package pricing quotes exchange orders: it picks the commission tier for a
// USD amount and computes the AMD total the correspondent has to pay.
package pricing

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wakala/exchangedesk/internal/domain"
)

// RoundingStep is the AMD granularity of every quoted total.
const RoundingStep = 100

// Fee is a commission: total = base × Mult + Fixed.
type Fee struct {
	Mult  float64
	Fixed float64
}

// Quote is the result of pricing one order.
type Quote struct {
	Mode     domain.AmountMode
	USD      float64 // source USD amount, derived for AMD targets
	Rate     float64 // AMD per USD used for the quote
	Fee      Fee
	TotalAMD int64
}

// Engine prices against a snapshot of settings and tiers. It holds no other
// state, so repeated calls with the same inputs give the same quote.
type Engine struct {
	rate  float64
	def   Fee
	tiers []domain.PricingTier
}

// NewEngine builds an engine. tiers are copied and sorted ascending by
// MinUSD, then MaxUSD with open-ended ranges last.
func NewEngine(s domain.Settings, tiers []domain.PricingTier) *Engine {
	sorted := make([]domain.PricingTier, len(tiers))
	copy(sorted, tiers)
	SortTiers(sorted)
	return &Engine{
		rate:  s.USDAMD,
		def:   Fee{Mult: s.FeeMult, Fixed: s.FixedAMD},
		tiers: sorted,
	}
}

// SortTiers orders tiers the way lookup walks them.
func SortTiers(tiers []domain.PricingTier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].MinUSD != tiers[j].MinUSD {
			return tiers[i].MinUSD < tiers[j].MinUSD
		}
		return upper(tiers[i]) < upper(tiers[j])
	})
}

func upper(t domain.PricingTier) float64 {
	if t.MaxUSD == nil {
		return math.Inf(1)
	}
	return *t.MaxUSD
}

// PickTier returns the fee of the first ascending tier containing usd, or
// the default fee when none does.
func (e *Engine) PickTier(usd float64) Fee {
	for _, t := range e.tiers {
		if t.Contains(usd) {
			return Fee{Mult: t.FeeMult, Fixed: t.FixedAMD}
		}
	}
	return e.def
}

// FromUSD prices a USD amount: usd × rate × mult + fixed.
func (e *Engine) FromUSD(usd float64) Quote {
	fee := e.PickTier(usd)
	total := decimal.NewFromFloat(usd).
		Mul(decimal.NewFromFloat(e.rate)).
		Mul(decimal.NewFromFloat(fee.Mult)).
		Add(decimal.NewFromFloat(fee.Fixed))
	return Quote{
		Mode:     domain.ModeUSD,
		USD:      usd,
		Rate:     e.rate,
		Fee:      fee,
		TotalAMD: roundStep(total),
	}
}

// FromAMDTarget prices a requested net AMD amount. The tier is chosen on
// the derived USD amount but the fee applies to the net AMD itself.
func (e *Engine) FromAMDTarget(net float64) Quote {
	rate := e.rate
	if rate <= 0 {
		rate = 1
	}
	usd := net / rate
	fee := e.PickTier(usd)
	total := decimal.NewFromFloat(net).
		Mul(decimal.NewFromFloat(fee.Mult)).
		Add(decimal.NewFromFloat(fee.Fixed))
	return Quote{
		Mode:     domain.ModeAMD,
		USD:      usd,
		Rate:     rate,
		Fee:      fee,
		TotalAMD: roundStep(total),
	}
}

// RoundHalfUp rounds x half-up to a whole number.
func RoundHalfUp(x float64) int64 {
	return decimal.NewFromFloat(x).Round(0).IntPart()
}

// RoundToStep rounds x half-up to the nearest RoundingStep.
func RoundToStep(x float64) int64 {
	return roundStep(decimal.NewFromFloat(x))
}

func roundStep(d decimal.Decimal) int64 {
	step := decimal.NewFromInt(RoundingStep)
	return d.Div(step).Round(0).Mul(step).IntPart()
}
