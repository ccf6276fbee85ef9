package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Setting keys as stored in the settings table.
const (
	SettingUSDAMD        = "usd_amd"
	SettingDashUSD       = "dash_usd"
	SettingFeeMult       = "fee_mult"
	SettingFixedAMD      = "fixed_amd"
	SettingTZOffsetHours = "tz_offset_hours"
	SettingTZLabel       = "tz_label"
)

// Settings is the operator-tunable runtime configuration.
type Settings struct {
	USDAMD        float64 `json:"usd_amd"`
	DashUSD       float64 `json:"dash_usd"`
	FeeMult       float64 `json:"fee_mult"`
	FixedAMD      float64 `json:"fixed_amd"`
	TZOffsetHours float64 `json:"tz_offset_hours"`
	TZLabel       string  `json:"tz_label"`
}

// DefaultSettings are seeded on first start and used for missing rows.
func DefaultSettings() Settings {
	return Settings{
		USDAMD:        408.0,
		DashUSD:       61.4,
		FeeMult:       1.054,
		FixedAMD:      100.0,
		TZOffsetHours: 4.0,
		TZLabel:       "AMT",
	}
}

// Values returns the record as raw key/value pairs.
func (s Settings) Values() map[string]string {
	return map[string]string{
		SettingUSDAMD:        formatRaw(s.USDAMD),
		SettingDashUSD:       formatRaw(s.DashUSD),
		SettingFeeMult:       formatRaw(s.FeeMult),
		SettingFixedAMD:      formatRaw(s.FixedAMD),
		SettingTZOffsetHours: formatRaw(s.TZOffsetHours),
		SettingTZLabel:       s.TZLabel,
	}
}

// Apply sets one already-validated raw value on the record. Unknown keys
// are ignored.
func (s *Settings) Apply(key, raw string) error {
	if key == SettingTZLabel {
		s.TZLabel = raw
		return nil
	}
	target := s.numberField(key)
	if target == nil {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	*target = v
	return nil
}

func (s *Settings) numberField(key string) *float64 {
	switch key {
	case SettingUSDAMD:
		return &s.USDAMD
	case SettingDashUSD:
		return &s.DashUSD
	case SettingFeeMult:
		return &s.FeeMult
	case SettingFixedAMD:
		return &s.FixedAMD
	case SettingTZOffsetHours:
		return &s.TZOffsetHours
	}
	return nil
}

// Location returns the fixed-offset zone described by the settings.
func (s Settings) Location() *time.Location {
	label := s.TZLabel
	if label == "" {
		label = "Local"
	}
	return time.FixedZone(label, int(s.TZOffsetHours*3600))
}

// ParseSetting validates a raw value at the write boundary and returns its
// canonical stored form.
func ParseSetting(key, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch key {
	case SettingTZLabel:
		if raw == "" {
			return "", fmt.Errorf("setting %s: empty value", key)
		}
		return raw, nil
	case SettingUSDAMD, SettingDashUSD, SettingFeeMult, SettingFixedAMD, SettingTZOffsetHours:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("setting %s: not a number: %q", key, raw)
		}
		switch key {
		case SettingUSDAMD, SettingDashUSD, SettingFeeMult:
			if v <= 0 {
				return "", fmt.Errorf("setting %s: must be positive", key)
			}
		case SettingFixedAMD:
			if v < 0 {
				return "", fmt.Errorf("setting %s: must not be negative", key)
			}
		case SettingTZOffsetHours:
			if v < -14 || v > 14 {
				return "", fmt.Errorf("setting %s: offset out of range", key)
			}
		}
		return formatRaw(v), nil
	}
	return "", fmt.Errorf("unknown setting %q", key)
}

func formatRaw(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// FormatNumber renders integral values without a fractional part and
// everything else with at most two decimals.
func FormatNumber(x float64) string {
	if i := int64(x); math.Abs(x-float64(i)) < 1e-9 {
		return strconv.FormatInt(i, 10)
	}
	s := strconv.FormatFloat(x, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
