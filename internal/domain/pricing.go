package domain

// PricingTier maps a USD amount range to a fee multiplier and a fixed AMD
// surcharge. A nil MaxUSD means the range is open-ended.
type PricingTier struct {
	ID       int64    `json:"id"`
	MinUSD   float64  `json:"min_usd"`
	MaxUSD   *float64 `json:"max_usd,omitempty"`
	FeeMult  float64  `json:"fee_mult"`
	FixedAMD float64  `json:"fixed_amd"`
}

// Contains reports whether usd falls inside the tier's range.
func (t PricingTier) Contains(usd float64) bool {
	if usd < t.MinUSD {
		return false
	}
	return t.MaxUSD == nil || usd <= *t.MaxUSD
}

type PaymentMethod struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Enabled   bool   `json:"enabled"`
	SortOrder int    `json:"sort_order"`
	Icon      string `json:"icon"`
}

// FallbackPaymentMethods are rendered when no method is enabled.
var FallbackPaymentMethods = []PaymentMethod{
	{Label: "EasyWallet", Value: "093977960", Enabled: true, SortOrder: 0, Icon: "🟢"},
	{Label: "Telcell wallet", Value: "098910502", Enabled: true, SortOrder: 1, Icon: "🟠"},
}
