package quality

import (
	"strings"

	"github.com/propfolio/catalog-cli/internal/model"
)

// Default weights for the record quality score.
const (
	reliabilityWeight  = 0.3
	completenessWeight = 0.4
	recencyBonus       = 0.2
	preferenceWeight   = 0.1

	requiredShare = 0.7
	optionalShare = 0.3

	defaultSourcePreference = 0.3
)

// DefaultSourcePreferences ranks the known sources for conflict
// resolution. Unknown sources fall back to 0.3.
func DefaultSourcePreferences() map[string]float64 {
	return map[string]float64{
		"rightmove": 0.6,
		"zoopla":    0.5,
		"bulkfeed":  0.4,
	}
}

// Ranker scores listings for conflict resolution and duplicate winner
// selection. The same formula decides both so the two paths cannot
// disagree about which record survives.
type Ranker struct {
	prefs       map[string]float64
	defaultPref float64
}

// NewRanker creates a ranker with the given source preference table; a nil
// table uses the defaults.
func NewRanker(prefs map[string]float64) *Ranker {
	if prefs == nil {
		prefs = DefaultSourcePreferences()
	}
	return &Ranker{prefs: prefs, defaultPref: defaultSourcePreference}
}

// Score rates one listing. Reliability comes from the adapter's lineage
// score, completeness from field presence with required fields weighted
// heavier, a flat recency bonus for carrying a timestamp, and a small
// source preference term.
func (r *Ranker) Score(l *model.NormalizedListing) float64 {
	score := l.Lineage.ReliabilityScore * reliabilityWeight
	score += r.completeness(l) * completenessWeight
	if l.LastUpdated != nil && !l.LastUpdated.IsZero() {
		score += recencyBonus
	}

	pref, ok := r.prefs[l.Lineage.Source]
	if !ok {
		pref = r.defaultPref
	}
	score += pref * preferenceWeight

	return score
}

func (r *Ranker) completeness(l *model.NormalizedListing) float64 {
	required := []bool{
		present(l.Price),
		strings.TrimSpace(l.Address) != "",
		present(l.Bedrooms),
		l.PropertyType != "" && l.PropertyType != model.PropertyTypeUnknown,
	}
	optional := []bool{
		strings.TrimSpace(l.Description) != "",
		present(l.Bathrooms),
		len(l.ImageURLs) > 0,
		present(l.FloorArea),
	}

	return requiredShare*fraction(required) + optionalShare*fraction(optional)
}

// ResolveConflicts picks the single best record among listings describing
// the same property. Empty input returns a zero record, a single listing
// is returned unchanged, and ties go to the earlier listing.
func (r *Ranker) ResolveConflicts(listings []model.NormalizedListing) model.NormalizedListing {
	if len(listings) == 0 {
		return model.NormalizedListing{}
	}
	if len(listings) == 1 {
		return listings[0]
	}

	best := 0
	bestScore := r.Score(&listings[0])
	for i := 1; i < len(listings); i++ {
		if s := r.Score(&listings[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return listings[best]
}

func present(f *float64) bool {
	return f != nil && *f == *f
}

func fraction(fields []bool) float64 {
	if len(fields) == 0 {
		return 0
	}
	var n int
	for _, ok := range fields {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(fields))
}
