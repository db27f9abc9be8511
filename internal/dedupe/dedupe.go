package dedupe

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/propfolio/catalog-cli/internal/model"
	"github.com/propfolio/catalog-cli/internal/quality"
)

// Confidence grades how certain a duplicate match is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow is reserved for matches below the emit threshold.
	// FindDuplicates never produces it today.
	ConfidenceLow Confidence = "low"
)

// Signal weights for the combined similarity score.
const (
	addressWeight         = 0.4
	proximityWeight       = 0.3
	priceWeight           = 0.2
	characteristicsWeight = 0.1
)

// Match is one candidate duplicate pair. Keys are composite
// "source:source_id" identifiers.
type Match struct {
	Key1       string     `json:"key1"`
	Key2       string     `json:"key2"`
	Score      float64    `json:"score"`
	Reasons    []string   `json:"reasons"`
	Confidence Confidence `json:"confidence"`
}

// Config holds the tunable thresholds for duplicate detection.
type Config struct {
	AddressThreshold float64 `yaml:"address_threshold" mapstructure:"address_threshold"`
	ExactDistanceKM  float64 `yaml:"exact_distance_km" mapstructure:"exact_distance_km"`
	PriceBand        float64 `yaml:"price_band" mapstructure:"price_band"`
	MatchThreshold   float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	HighConfidence   float64 `yaml:"high_confidence" mapstructure:"high_confidence"`
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		AddressThreshold: 0.85,
		ExactDistanceKM:  0.05,
		PriceBand:        0.10,
		MatchThreshold:   0.7,
		HighConfidence:   0.9,
	}
}

// Deduplicator finds and collapses duplicate listings.
type Deduplicator struct {
	cfg    Config
	ranker *quality.Ranker
}

// NewDeduplicator creates a deduplicator; zero-valued config fields fall
// back to the defaults and a nil ranker uses the default preferences.
func NewDeduplicator(cfg Config, ranker *quality.Ranker) *Deduplicator {
	def := DefaultConfig()
	if cfg.AddressThreshold == 0 {
		cfg.AddressThreshold = def.AddressThreshold
	}
	if cfg.ExactDistanceKM == 0 {
		cfg.ExactDistanceKM = def.ExactDistanceKM
	}
	if cfg.PriceBand == 0 {
		cfg.PriceBand = def.PriceBand
	}
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = def.MatchThreshold
	}
	if cfg.HighConfidence == 0 {
		cfg.HighConfidence = def.HighConfidence
	}
	if ranker == nil {
		ranker = quality.NewRanker(nil)
	}
	return &Deduplicator{cfg: cfg, ranker: ranker}
}

// FindDuplicates compares every pair of listings and returns the candidate
// matches. Pairs sharing the same (source, source_id) are skipped. The
// scan is deliberately O(n²); batches are bounded by the fetch layer.
func (d *Deduplicator) FindDuplicates(listings []model.NormalizedListing) []Match {
	var matches []Match
	for i := range listings {
		for j := i + 1; j < len(listings); j++ {
			if m := d.compare(&listings[i], &listings[j]); m != nil {
				matches = append(matches, *m)
			}
		}
	}
	return matches
}

// Result is the outcome of one Deduplicate pass.
type Result struct {
	// Listings is the deduplicated output, in input order, with each
	// cluster replaced by its winner at the first member's position.
	Listings []model.NormalizedListing
	Matches  []Match
	// Clusters holds the composite keys of each duplicate group.
	Clusters [][]string
}

// Deduplicate collapses duplicate groups to their best record. Matches of
// medium or high confidence form an undirected graph; each connected
// component of size two or more is a cluster and its winner is chosen by
// the same scoring formula used for conflict resolution. The output never
// exceeds the input in length.
func (d *Deduplicator) Deduplicate(listings []model.NormalizedListing) *Result {
	result := &Result{}
	if len(listings) <= 1 {
		result.Listings = listings
		return result
	}

	result.Matches = d.FindDuplicates(listings)

	byKey := make(map[string]int, len(listings))
	for i := range listings {
		byKey[listings[i].Key()] = i
	}

	adjacency := make(map[string][]string)
	for _, m := range result.Matches {
		if m.Confidence != ConfidenceHigh && m.Confidence != ConfidenceMedium {
			continue
		}
		adjacency[m.Key1] = append(adjacency[m.Key1], m.Key2)
		adjacency[m.Key2] = append(adjacency[m.Key2], m.Key1)
	}

	// Walk listings in input order so cluster membership and winner
	// placement are deterministic.
	visited := make(map[string]bool, len(listings))
	winnerAt := make(map[string]model.NormalizedListing)
	clustered := make(map[string]bool)

	for i := range listings {
		key := listings[i].Key()
		if visited[key] || adjacency[key] == nil {
			continue
		}

		component := d.collectComponent(key, adjacency, visited)
		if len(component) < 2 {
			continue
		}

		members := make([]model.NormalizedListing, 0, len(component))
		keys := make([]string, 0, len(component))
		for _, k := range component {
			idx, ok := byKey[k]
			if !ok {
				continue
			}
			members = append(members, listings[idx])
			keys = append(keys, k)
			clustered[k] = true
		}
		if len(members) < 2 {
			continue
		}

		result.Clusters = append(result.Clusters, keys)
		winnerAt[keys[0]] = d.ranker.ResolveConflicts(members)
	}

	for i := range listings {
		key := listings[i].Key()
		if winner, ok := winnerAt[key]; ok {
			result.Listings = append(result.Listings, winner)
			continue
		}
		if !clustered[key] {
			result.Listings = append(result.Listings, listings[i])
		}
	}

	zap.L().Info("deduplicated listings",
		zap.Int("input", len(listings)),
		zap.Int("output", len(result.Listings)),
		zap.Int("clusters", len(result.Clusters)),
	)

	return result
}

// collectComponent gathers the connected component containing start via a
// depth-first walk.
func (d *Deduplicator) collectComponent(start string, adjacency map[string][]string, visited map[string]bool) []string {
	var component []string
	stack := []string{start}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[key] {
			continue
		}
		visited[key] = true
		component = append(component, key)
		for _, neighbor := range adjacency[key] {
			if !visited[neighbor] {
				stack = append(stack, neighbor)
			}
		}
	}
	return component
}

func (d *Deduplicator) compare(l1, l2 *model.NormalizedListing) *Match {
	if l1.Lineage.Source == l2.Lineage.Source && l1.Lineage.SourceID == l2.Lineage.SourceID {
		return nil
	}

	var score float64
	var reasons []string

	if s := AddressSimilarity(l1.Address, l2.Address); s > d.cfg.AddressThreshold {
		score += s * addressWeight
		reasons = append(reasons, fmt.Sprintf("similar address (%.2f)", s))
	}
	if s := d.proximityScore(l1, l2); s > 0 {
		score += s * proximityWeight
		reasons = append(reasons, fmt.Sprintf("close coordinates (%.2f)", s))
	}
	if s := d.priceScore(l1, l2); s > 0 {
		score += s * priceWeight
		reasons = append(reasons, fmt.Sprintf("similar price (%.2f)", s))
	}
	if s := characteristicsScore(l1, l2); s > 0 {
		score += s * characteristicsWeight
		reasons = append(reasons, fmt.Sprintf("similar characteristics (%.2f)", s))
	}

	if score <= d.cfg.MatchThreshold {
		return nil
	}

	confidence := ConfidenceMedium
	if score > d.cfg.HighConfidence {
		confidence = ConfidenceHigh
	}
	return &Match{
		Key1:       l1.Key(),
		Key2:       l2.Key(),
		Score:      score,
		Reasons:    reasons,
		Confidence: confidence,
	}
}

// proximityScore converts geodesic distance to similarity: near-full
// credit inside the exact band, decaying credit out to 500m and 1km, zero
// beyond.
func (d *Deduplicator) proximityScore(l1, l2 *model.NormalizedListing) float64 {
	if !l1.HasCoordinates() || !l2.HasCoordinates() {
		return 0.0
	}

	dist := haversineKM(*l1.Latitude, *l1.Longitude, *l2.Latitude, *l2.Longitude)
	switch {
	case dist <= d.cfg.ExactDistanceKM:
		return 1.0 - (dist/d.cfg.ExactDistanceKM)*0.2
	case dist <= 0.5:
		return 0.8 - (dist/0.5)*0.3
	case dist <= 1.0:
		return 0.5 - (dist/1.0)*0.3
	default:
		return 0.0
	}
}

// priceScore converts the symmetric relative price difference to
// similarity: near-full credit within the band, decaying credit out to
// 30%, zero beyond.
func (d *Deduplicator) priceScore(l1, l2 *model.NormalizedListing) float64 {
	if l1.Price == nil || l2.Price == nil {
		return 0.0
	}
	p1, p2 := *l1.Price, *l2.Price
	if math.IsNaN(p1) || math.IsNaN(p2) || p1 <= 0 || p2 <= 0 {
		return 0.0
	}

	avg := (p1 + p2) / 2
	diff := math.Abs(p1-p2) / avg
	switch {
	case diff <= d.cfg.PriceBand:
		return 1.0 - (diff/d.cfg.PriceBand)*0.5
	case diff <= 0.3:
		return 0.5 - ((diff-d.cfg.PriceBand)/0.2)*0.3
	default:
		return 0.0
	}
}

// characteristicsScore is the fraction of bedrooms, bathrooms, and
// property type that match exactly, over the fields present on both
// records. Nothing comparable scores zero.
func characteristicsScore(l1, l2 *model.NormalizedListing) float64 {
	var matched, compared int

	compareNum := func(a, b *float64) {
		if a == nil || b == nil || math.IsNaN(*a) || math.IsNaN(*b) {
			return
		}
		compared++
		if *a == *b {
			matched++
		}
	}

	compareNum(l1.Bedrooms, l2.Bedrooms)
	compareNum(l1.Bathrooms, l2.Bathrooms)

	t1, t2 := l1.PropertyType, l2.PropertyType
	if t1 != "" && t1 != model.PropertyTypeUnknown && t2 != "" && t2 != model.PropertyTypeUnknown {
		compared++
		if t1 == t2 {
			matched++
		}
	}

	if compared == 0 {
		return 0.0
	}
	return float64(matched) / float64(compared)
}
