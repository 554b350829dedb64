package recurring

import (
	"strings"
)

// corporateSuffixes are stripped from the end of a merchant narrative.
var corporateSuffixes = []string{"INC", "LLC", "LTD", "CORP", "CO"}

// NormalizeMerchant turns a raw bank narrative into the key used to group
// transactions from the same payee: trimmed, internal whitespace collapsed,
// one trailing corporate suffix removed and uppercased.
func NormalizeMerchant(description string) string {
	key := strings.ToUpper(strings.Join(strings.Fields(description), " "))

	words := strings.Split(key, " ")
	if len(words) < 2 {
		return key
	}

	last := strings.TrimSuffix(words[len(words)-1], ".")
	for _, suffix := range corporateSuffixes {
		if last == suffix {
			words = words[:len(words)-1]
			// "ACME, INC" leaves a dangling comma
			words[len(words)-1] = strings.TrimRight(words[len(words)-1], ",")
			return strings.Join(words, " ")
		}
	}
	return key
}
