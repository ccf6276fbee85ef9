// Package extract turns free-form correspondent text into a destination
// address and an amount. It is stateless; the conversation engine decides
// what to do with ambiguous results.
package extract

import (
	"regexp"
	"strings"

	"github.com/wakala/exchangedesk/internal/domain"
)

// addressPattern matches a base58-style address with the required leading X.
var addressPattern = regexp.MustCompile(`X[1-9A-HJ-NP-Za-km-z]{25,50}`)

var cyrillic = regexp.MustCompile(`[А-Яа-яЁё]`)

var (
	yesWords = map[string]struct{}{
		"да": {}, "д": {}, "ага": {}, "yes": {}, "y": {}, "айо": {}, "այո": {},
	}
	noWords = map[string]struct{}{
		"нет": {}, "н": {}, "no": {}, "n": {}, "ոչ": {},
	}
)

// Address returns the first address-shaped token in text.
func Address(text string) (string, bool) {
	m := addressPattern.FindString(strings.TrimSpace(text))
	return m, m != ""
}

// DetectLocale picks ru for any Cyrillic text and am otherwise.
func DetectLocale(text string) domain.Locale {
	if cyrillic.MatchString(text) {
		return domain.LocaleRU
	}
	return domain.LocaleAM
}

func IsYes(s string) bool {
	_, ok := yesWords[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func IsNo(s string) bool {
	_, ok := noWords[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
