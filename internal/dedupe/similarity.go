// Package dedupe identifies listings describing the same real-world
// property via fuzzy address matching, geodesic proximity, and field
// agreement, then collapses duplicate clusters to a single record.
package dedupe

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// abbreviations maps common address abbreviations to their full words.
// "flat" and "apt" unify so UK and portal spellings compare equal.
var abbreviations = map[string]string{
	"st":   "street",
	"rd":   "road",
	"ave":  "avenue",
	"dr":   "drive",
	"ln":   "lane",
	"pl":   "place",
	"ct":   "court",
	"apt":  "apartment",
	"flat": "apartment",
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var levParams = levenshtein.NewParams()

// NormalizeAddress canonicalizes an address for comparison: lowercase,
// diacritics folded, abbreviations expanded, punctuation stripped, and
// whitespace collapsed.
func NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}

	normalized := strings.ToLower(address)
	if folded, _, err := transform.String(foldDiacritics, normalized); err == nil {
		normalized = folded
	}

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}

	return strings.Join(words, " ")
}

// AddressSimilarity scores two raw addresses in [0,1]. Both are
// normalized, then the best of three measures is taken so that word
// reordering and truncation do not defeat the match.
func AddressSimilarity(address1, address2 string) float64 {
	if address1 == "" || address2 == "" {
		return 0.0
	}

	a := NormalizeAddress(address1)
	b := NormalizeAddress(address2)
	if a == "" || b == "" {
		return 0.0
	}

	scores := []float64{
		ratio(a, b),
		partialRatio(a, b),
		tokenSortRatio(a, b),
	}

	best := 0.0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	return best
}

// ratio is plain edit-distance similarity over the whole strings.
func ratio(a, b string) float64 {
	return levenshtein.Similarity(a, b, levParams)
}

// partialRatio slides the shorter string across the longer one and keeps
// the best window similarity, tolerating one address being a truncation
// of the other.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0.0
	}
	if len(short) == len(long) {
		return ratio(string(short), string(long))
	}

	best := 0.0
	shortStr := string(short)
	for i := 0; i+len(short) <= len(long); i++ {
		s := levenshtein.Similarity(shortStr, string(long[i:i+len(short)]), levParams)
		if s > best {
			best = s
		}
		if best == 1.0 {
			break
		}
	}
	return best
}

// tokenSortRatio compares the strings with their words sorted, making the
// measure insensitive to word order.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
