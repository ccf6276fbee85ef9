package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wakala/exchangedesk/internal/domain"
)

// Thresholds of the amount heuristics. They are product decisions; change
// them only together with the table in amount_test.go.
const (
	// AmbiguousMin and AmbiguousMax bound the AMD values that may just as
	// well be unmarked USD amounts.
	AmbiguousMin = 1.0
	AmbiguousMax = 500.0

	// LoneAMDDigits is the digit count from which a bare number is AMD.
	LoneAMDDigits = 5

	// ThousandScale multiplies tokens next to a thousand indicator.
	ThousandScale = 1000.0

	// LargeValue and LargeDigits mark a token as a "large" candidate.
	LargeValue  = 1000.0
	LargeDigits = 5

	// LastTokenFloor keeps the last-mentioned token when it is at least
	// this big, even if a larger one exists earlier in the text.
	LastTokenFloor = 50.0

	// LargerCandidateFloor is the minimum value of a competing token that
	// may override a small last token.
	LargerCandidateFloor = 100.0

	// ThousandWindow is the number of characters inspected on either side
	// of a token when looking for a thousand indicator.
	ThousandWindow = 8
)

// numberToken is either a digit-grouped number or a plain digit run. The
// grouped form needs at least one group so a long run like 50000 is never
// split into 500 and 00.
const numberToken = `(?:\d{1,3}(?:[ \x{00A0},]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?)`

// wordEnd stands in for a Unicode-aware \b after a currency word.
const wordEnd = `(?:[^\p{L}\p{N}_]|$)`

const usdWord = `(?:usd|usdt|дол+\.?|доллар(?:ов|а)?|դոլար)`

var (
	spaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)
	numberRe = regexp.MustCompile(numberToken)
	loneAMD  = regexp.MustCompile(`^\d{` + strconv.Itoa(LoneAMDDigits) + `,}$`)

	// usdMarkers are tried in order; the first pattern that matches wins.
	usdMarkers = []*regexp.Regexp{
		regexp.MustCompile(`\$\s*(` + numberToken + `)`),
		regexp.MustCompile(`(` + numberToken + `)\s*\$`),
		regexp.MustCompile(`(?i)(` + numberToken + `)\s*` + usdWord + wordEnd),
		regexp.MustCompile(`(?i)` + usdWord + `\s*(` + numberToken + `)`),
	}

	thousandMarker = regexp.MustCompile(`(?:тыс|тысяч|haz|հազար|(?:^|[^\p{L}\p{N}_])k(?:[^\p{L}\p{N}_]|$))`)
)

// Amount is the outcome of ParseAmount. Mode is ModeUnset when the text
// carries no amount. Rule names the grammar rule that produced the value.
type Amount struct {
	Mode  domain.AmountMode
	Value float64
	Rule  string
}

// Found reports whether an amount was extracted.
func (a Amount) Found() bool {
	return a.Mode != domain.ModeUnset
}

type rule struct {
	name  string
	apply func(t string) (Amount, bool)
}

// grammar lists the amount rules by precedence.
var grammar = []rule{
	{name: "usd-marker", apply: matchUSDMarker},
	{name: "lone-amd", apply: matchLoneAMD},
	{name: "scored-amd", apply: matchScored},
}

// ParseAmount scans text for an amount. knownAddress, when set, is removed
// before scanning so digits inside it are never read as an amount.
func ParseAmount(text, knownAddress string) Amount {
	t := text
	if knownAddress != "" {
		t = strings.ReplaceAll(t, knownAddress, " ")
	}
	t = strings.TrimSpace(spaceRun.ReplaceAllString(t, " "))
	if t == "" {
		return Amount{}
	}
	for _, r := range grammar {
		if a, ok := r.apply(t); ok {
			a.Rule = r.name
			return a
		}
	}
	return Amount{}
}

// Ambiguous reports whether an AMD value could equally be a USD amount.
func Ambiguous(v float64) bool {
	return v >= AmbiguousMin && v <= AmbiguousMax
}

func matchUSDMarker(t string) (Amount, bool) {
	for _, re := range usdMarkers {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		v, err := cleanNumber(m[1])
		if err != nil {
			continue
		}
		return Amount{Mode: domain.ModeUSD, Value: v}, true
	}
	return Amount{}, false
}

func matchLoneAMD(t string) (Amount, bool) {
	if !loneAMD.MatchString(t) {
		return Amount{}, false
	}
	v, err := cleanNumber(t)
	if err != nil {
		return Amount{}, false
	}
	return Amount{Mode: domain.ModeAMD, Value: v}, true
}

type candidate struct {
	value    float64
	digits   int
	thousand bool
}

func matchScored(t string) (Amount, bool) {
	var cands []candidate
	for _, loc := range numberRe.FindAllStringIndex(t, -1) {
		raw := t[loc[0]:loc[1]]
		v, err := cleanNumber(raw)
		if err != nil {
			continue
		}
		around := strings.ToLower(window(t, loc[0], loc[1], ThousandWindow))
		c := candidate{value: v, digits: countDigits(raw)}
		if thousandMarker.MatchString(around) {
			c.thousand = true
			c.value *= ThousandScale
		}
		cands = append(cands, c)
	}
	if len(cands) == 0 {
		return Amount{}, false
	}
	return Amount{Mode: domain.ModeAMD, Value: pick(cands)}, true
}

// pick applies the scoring preferences to candidates listed in text order.
func pick(cands []candidate) float64 {
	if c, ok := latest(cands, func(c candidate) bool { return c.thousand }); ok {
		return c.value
	}
	if c, ok := latest(cands, func(c candidate) bool {
		return c.value >= LargeValue || c.digits >= LargeDigits
	}); ok {
		return c.value
	}
	last := cands[len(cands)-1].value
	if last >= LastTokenFloor {
		return last
	}
	best, found := 0.0, false
	for _, c := range cands {
		if c.value >= LargerCandidateFloor && (!found || c.value > best) {
			best, found = c.value, true
		}
	}
	if !found {
		return last
	}
	return best
}

func latest(cands []candidate, keep func(candidate) bool) (candidate, bool) {
	for i := len(cands) - 1; i >= 0; i-- {
		if keep(cands[i]) {
			return cands[i], true
		}
	}
	return candidate{}, false
}

// cleanNumber normalizes locale separators: a space or comma directly
// followed by a group of exactly three digits is a thousands separator,
// any remaining comma is the decimal point.
func cleanNumber(raw string) (float64, error) {
	s := strings.ReplaceAll(raw, "\u00a0", " ")
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c == ' ' || c == ',') && isGroupSeparator(s, i) {
			continue
		}
		b.WriteByte(c)
	}
	return strconv.ParseFloat(strings.ReplaceAll(b.String(), ",", "."), 64)
}

func isGroupSeparator(s string, i int) bool {
	if i == 0 || !isDigit(s[i-1]) || i+4 > len(s) {
		return false
	}
	for j := i + 1; j < i+4; j++ {
		if !isDigit(s[j]) {
			return false
		}
	}
	return i+4 == len(s) || !isDigit(s[i+4])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			n++
		}
	}
	return n
}

// window returns t[start:end] widened by n runes on each side.
func window(t string, start, end, n int) string {
	lo, hi := start, end
	for i := 0; i < n && lo > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(t[:lo])
		lo -= size
	}
	for i := 0; i < n && hi < len(t); i++ {
		_, size := utf8.DecodeRuneInString(t[hi:])
		hi += size
	}
	return t[lo:hi]
}
