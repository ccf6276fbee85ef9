package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wakala/exchangedesk/internal/domain"
)

const testAddress = "XcPFMpA7vd4nZqKmLsT9wRbE2hJ6yUfGk3"

// Precedence table for the amount grammar. Every row documents one rule
// interaction; keep it in sync with the constants in amount.go.
func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		addr  string
		mode  domain.AmountMode
		value float64
		rule  string
	}{
		{name: "dollar prefix", text: "$50", mode: domain.ModeUSD, value: 50, rule: "usd-marker"},
		{name: "dollar suffix", text: "хочу 70 $", mode: domain.ModeUSD, value: 70, rule: "usd-marker"},
		{name: "usd word after", text: "120 usd please", mode: domain.ModeUSD, value: 120, rule: "usd-marker"},
		{name: "usdt word before", text: "usdt 20", mode: domain.ModeUSD, value: 20, rule: "usd-marker"},
		{name: "russian word", text: "100 долларов", mode: domain.ModeUSD, value: 100, rule: "usd-marker"},
		{name: "russian short word", text: "на 30 дол.", mode: domain.ModeUSD, value: 30, rule: "usd-marker"},
		{name: "armenian word", text: "40 դոլար", mode: domain.ModeUSD, value: 40, rule: "usd-marker"},
		{name: "usd decimal comma", text: "$12,5", mode: domain.ModeUSD, value: 12.5, rule: "usd-marker"},
		{name: "usd wins over larger amd", text: "50000 or $100", mode: domain.ModeUSD, value: 100, rule: "usd-marker"},
		{name: "lone five digits", text: "50000", mode: domain.ModeAMD, value: 50000, rule: "lone-amd"},
		{name: "five digits with words", text: "50000 drams", mode: domain.ModeAMD, value: 50000, rule: "scored-amd"},
		{name: "grouped thousands", text: "50 000 дрампов", mode: domain.ModeAMD, value: 50000, rule: "scored-amd"},
		{name: "grouped thousands with nbsp", text: "25 000", mode: domain.ModeAMD, value: 25000, rule: "scored-amd"},
		{name: "comma thousands", text: "12,345.5", mode: domain.ModeAMD, value: 12345.5, rule: "scored-amd"},
		{name: "russian thousand word", text: "на 5 тыс", mode: domain.ModeAMD, value: 5000, rule: "scored-amd"},
		{name: "armenian thousand word", text: "20 հազար", mode: domain.ModeAMD, value: 20000, rule: "scored-amd"},
		{name: "standalone k", text: "15 k", mode: domain.ModeAMD, value: 15000, rule: "scored-amd"},
		{name: "thousand beats larger plain number", text: "30000 no wait 40 тыс", mode: domain.ModeAMD, value: 40000, rule: "scored-amd"},
		{name: "latest large number", text: "20000 no 35000", mode: domain.ModeAMD, value: 35000, rule: "scored-amd"},
		{name: "large beats later small", text: "15000 for 2 people", mode: domain.ModeAMD, value: 15000, rule: "scored-amd"},
		{name: "last small over floor", text: "300 or 60", mode: domain.ModeAMD, value: 60, rule: "scored-amd"},
		{name: "last small under floor yields to larger", text: "100 for 3 days", mode: domain.ModeAMD, value: 100, rule: "scored-amd"},
		{name: "last small without larger", text: "give 20", mode: domain.ModeAMD, value: 20, rule: "scored-amd"},
		{name: "address digits ignored", text: testAddress + " 150", addr: testAddress, mode: domain.ModeAMD, value: 150, rule: "scored-amd"},
		{name: "address digits ignored lone", text: testAddress + " 75000", addr: testAddress, mode: domain.ModeAMD, value: 75000, rule: "lone-amd"},
		{name: "address only", text: testAddress, addr: testAddress, mode: domain.ModeUnset},
		{name: "no number", text: "привет", mode: domain.ModeUnset},
		{name: "empty", text: "   ", mode: domain.ModeUnset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.text, tt.addr)
			assert.Equal(t, tt.mode, got.Mode)
			if tt.mode == domain.ModeUnset {
				assert.False(t, got.Found())
				return
			}
			assert.InDelta(t, tt.value, got.Value, 1e-9)
			assert.Equal(t, tt.rule, got.Rule)
		})
	}
}

func TestAmbiguousBand(t *testing.T) {
	assert.False(t, Ambiguous(0.5))
	assert.True(t, Ambiguous(1))
	assert.True(t, Ambiguous(150))
	assert.True(t, Ambiguous(500))
	assert.False(t, Ambiguous(500.01))
	assert.False(t, Ambiguous(50000))
}

func TestCleanNumber(t *testing.T) {
	tests := map[string]float64{
		"1 500":     1500,
		"1,500":     1500,
		"1,5":       1.5,
		"1 000 000": 1000000,
		"12,345.67": 12345.67,
		"1500,50":   1500.5,
	}
	for raw, want := range tests {
		got, err := cleanNumber(raw)
		assert.NoError(t, err, raw)
		assert.InDelta(t, want, got, 1e-9, raw)
	}
}
