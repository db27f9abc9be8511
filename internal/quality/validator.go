package quality

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/propfolio/catalog-cli/internal/model"
)

// ukPostcodePattern is the default recognizable-postcode check; regions
// other than the UK supply their own pattern through Bounds.
const ukPostcodePattern = `[A-Z]{1,2}[0-9R][0-9A-Z]? [0-9][ABD-HJLNP-UW-Z]{2}`

// RegionBBox is the sanity bounding box for listing coordinates.
type RegionBBox struct {
	LatMin float64 `yaml:"lat_min" mapstructure:"lat_min"`
	LatMax float64 `yaml:"lat_max" mapstructure:"lat_max"`
	LonMin float64 `yaml:"lon_min" mapstructure:"lon_min"`
	LonMax float64 `yaml:"lon_max" mapstructure:"lon_max"`
}

// Bounds holds the configurable thresholds used by field validation.
type Bounds struct {
	MinPrice        float64    `yaml:"min_price" mapstructure:"min_price"`
	MaxPrice        float64    `yaml:"max_price" mapstructure:"max_price"`
	Region          RegionBBox `yaml:"region" mapstructure:"region"`
	PostcodePattern string     `yaml:"postcode_pattern" mapstructure:"postcode_pattern"`
	MaxBedrooms     float64    `yaml:"max_bedrooms" mapstructure:"max_bedrooms"`
	MaxBathrooms    float64    `yaml:"max_bathrooms" mapstructure:"max_bathrooms"`
	FreshDays       int        `yaml:"fresh_days" mapstructure:"fresh_days"`
	StaleDays       int        `yaml:"stale_days" mapstructure:"stale_days"`
}

// DefaultBounds returns the documented default thresholds (UK region).
func DefaultBounds() Bounds {
	return Bounds{
		MinPrice:        10_000,
		MaxPrice:        50_000_000,
		Region:          RegionBBox{LatMin: 49.0, LatMax: 61.0, LonMin: -8.0, LonMax: 2.0},
		PostcodePattern: ukPostcodePattern,
		MaxBedrooms:     20,
		MaxBathrooms:    10,
		FreshDays:       7,
		StaleDays:       30,
	}
}

// DefaultSeverityWeights returns the issue weights used for batch scoring.
func DefaultSeverityWeights() map[Severity]float64 {
	return map[Severity]float64{
		SeverityLow:      0.1,
		SeverityMedium:   0.3,
		SeverityHigh:     0.7,
		SeverityCritical: 1.0,
	}
}

// Validator runs independent field-level rules over normalized listings.
// Validation is pure and stateless beyond its configuration; independent
// batches may be validated in parallel by separate callers.
type Validator struct {
	bounds     Bounds
	weights    map[Severity]float64
	postcodeRe *regexp.Regexp
	now        func() time.Time
}

// NewValidator creates a validator with the given bounds and severity
// weights; zero-valued bounds fields fall back to the defaults.
func NewValidator(bounds Bounds, weights map[Severity]float64) *Validator {
	def := DefaultBounds()
	if bounds.MinPrice == 0 {
		bounds.MinPrice = def.MinPrice
	}
	if bounds.MaxPrice == 0 {
		bounds.MaxPrice = def.MaxPrice
	}
	if bounds.Region == (RegionBBox{}) {
		bounds.Region = def.Region
	}
	if bounds.PostcodePattern == "" {
		bounds.PostcodePattern = def.PostcodePattern
	}
	if bounds.MaxBedrooms == 0 {
		bounds.MaxBedrooms = def.MaxBedrooms
	}
	if bounds.MaxBathrooms == 0 {
		bounds.MaxBathrooms = def.MaxBathrooms
	}
	if bounds.FreshDays == 0 {
		bounds.FreshDays = def.FreshDays
	}
	if bounds.StaleDays == 0 {
		bounds.StaleDays = def.StaleDays
	}
	if len(weights) == 0 {
		weights = DefaultSeverityWeights()
	}

	return &Validator{
		bounds:     bounds,
		weights:    weights,
		postcodeRe: regexp.MustCompile(bounds.PostcodePattern),
		now:        time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (v *Validator) WithNow(t time.Time) *Validator {
	v.now = func() time.Time { return t }
	return v
}

// Validate runs every rule over one listing and returns the issues found.
func (v *Validator) Validate(l *model.NormalizedListing) []Issue {
	var issues []Issue
	issues = append(issues, v.checkRequiredFields(l)...)
	issues = append(issues, v.checkPrice(l)...)
	issues = append(issues, v.checkCoordinates(l)...)
	issues = append(issues, v.checkAddress(l)...)
	issues = append(issues, v.checkCharacteristics(l)...)
	issues = append(issues, v.checkFreshness(l)...)
	return issues
}

// ValidateBatch validates every listing and aggregates a report. A listing
// counts as valid when it has no HIGH or CRITICAL issue. The overall score
// weights each issue by severity and normalizes by the worst case of one
// issue per severity per listing; an empty batch scores 1.0.
func (v *Validator) ValidateBatch(listings []model.NormalizedListing) *Report {
	report := &Report{
		Total:       len(listings),
		ValidatedAt: v.now(),
	}

	for i := range listings {
		issues := v.Validate(&listings[i])
		report.Issues = append(report.Issues, issues...)

		blocking := false
		for _, issue := range issues {
			if issue.Severity == SeverityHigh || issue.Severity == SeverityCritical {
				blocking = true
				break
			}
		}
		if !blocking {
			report.ValidCount++
		}
	}

	report.OverallScore = v.batchScore(len(listings), report.Issues)
	return report
}

func (v *Validator) batchScore(n int, issues []Issue) float64 {
	if n == 0 {
		return 1.0
	}

	var weightSum float64
	for _, w := range v.weights {
		weightSum += w
	}
	maxPenalty := float64(n) * weightSum
	if maxPenalty == 0 {
		return 1.0
	}

	var penalty float64
	for _, issue := range issues {
		penalty += v.weights[issue.Severity]
	}

	return clamp01(1.0 - penalty/maxPenalty)
}

func (v *Validator) checkRequiredFields(l *model.NormalizedListing) []Issue {
	var issues []Issue

	missing := func(field string) {
		issues = append(issues, v.issue(l, MissingRequiredField, SeverityCritical, field,
			fmt.Sprintf("required field %q is missing or empty", field),
			fmt.Sprintf("provide a value for %s", field)))
	}

	if strings.TrimSpace(l.Lineage.Source) == "" {
		missing("source")
	}
	if strings.TrimSpace(l.Lineage.SourceID) == "" {
		missing("source_id")
	}
	if strings.TrimSpace(l.Address) == "" {
		missing("address")
	}
	if l.Price == nil {
		missing("price")
	}

	return issues
}

func (v *Validator) checkPrice(l *model.NormalizedListing) []Issue {
	if l.Price == nil {
		return nil
	}

	price := *l.Price
	if math.IsNaN(price) {
		return []Issue{v.issue(l, InvalidFormat, SeverityHigh, "price",
			"price is not a valid number",
			"provide price as a numeric value")}
	}

	var issues []Issue
	if price < v.bounds.MinPrice {
		issues = append(issues, v.issue(l, SuspiciousValue, SeverityMedium, "price",
			fmt.Sprintf("price %.0f seems unusually low", price),
			"verify price accuracy with source"))
	} else if price > v.bounds.MaxPrice {
		issues = append(issues, v.issue(l, SuspiciousValue, SeverityMedium, "price",
			fmt.Sprintf("price %.0f seems unusually high", price),
			"verify price accuracy with source"))
	}

	if price <= 0 {
		issues = append(issues, v.issue(l, InvalidFormat, SeverityHigh, "price",
			fmt.Sprintf("invalid price value: %.2f", price),
			"provide a positive price value"))
	}

	return issues
}

func (v *Validator) checkCoordinates(l *model.NormalizedListing) []Issue {
	if l.Latitude == nil || l.Longitude == nil {
		return nil
	}

	lat, lon := *l.Latitude, *l.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return []Issue{v.issue(l, InvalidFormat, SeverityHigh, "coordinates",
			"coordinates are not valid numbers",
			"provide coordinates as numeric values")}
	}

	var issues []Issue
	if lat < v.bounds.Region.LatMin || lat > v.bounds.Region.LatMax {
		issues = append(issues, v.issue(l, GeocodingFailed, SeverityMedium, "latitude",
			fmt.Sprintf("latitude %.4f is outside the configured region", lat),
			"verify property location and geocoding"))
	}
	if lon < v.bounds.Region.LonMin || lon > v.bounds.Region.LonMax {
		issues = append(issues, v.issue(l, GeocodingFailed, SeverityMedium, "longitude",
			fmt.Sprintf("longitude %.4f is outside the configured region", lon),
			"verify property location and geocoding"))
	}

	// (0,0) is the geocoder's failure sentinel, flagged independently of
	// the bounding box check.
	if lat == 0.0 && lon == 0.0 {
		issues = append(issues, v.issue(l, GeocodingFailed, SeverityHigh, "coordinates",
			"coordinates are (0,0) which indicates geocoding failure",
			"re-geocode the property address"))
	}

	return issues
}

func (v *Validator) checkAddress(l *model.NormalizedListing) []Issue {
	address := l.Address
	if address == "" {
		return nil
	}

	var issues []Issue
	if len(strings.TrimSpace(address)) < 10 {
		issues = append(issues, v.issue(l, SuspiciousValue, SeverityLow, "address",
			"address seems too short",
			"verify address completeness"))
	}
	if !v.postcodeRe.MatchString(strings.ToUpper(address)) {
		issues = append(issues, v.issue(l, SuspiciousValue, SeverityLow, "address",
			"address does not contain a recognizable postcode",
			"verify postcode format"))
	}

	return issues
}

func (v *Validator) checkCharacteristics(l *model.NormalizedListing) []Issue {
	var issues []Issue

	check := func(field string, value *float64, max float64) {
		if value == nil {
			return
		}
		n := *value
		if math.IsNaN(n) || n != math.Trunc(n) {
			issues = append(issues, v.issue(l, InvalidFormat, SeverityMedium, field,
				fmt.Sprintf("invalid %s value", field),
				fmt.Sprintf("provide %s as an integer", field)))
			return
		}
		if n < 0 || n > max {
			issues = append(issues, v.issue(l, SuspiciousValue, SeverityMedium, field,
				fmt.Sprintf("unusual number of %s: %.0f", field, n),
				fmt.Sprintf("verify %s count", field)))
		}
	}

	check("bedrooms", l.Bedrooms, v.bounds.MaxBedrooms)
	check("bathrooms", l.Bathrooms, v.bounds.MaxBathrooms)

	return issues
}

func (v *Validator) checkFreshness(l *model.NormalizedListing) []Issue {
	if l.LastUpdated == nil {
		return nil
	}
	if l.LastUpdated.IsZero() {
		return []Issue{v.issue(l, InvalidFormat, SeverityLow, "last_updated",
			"last updated timestamp could not be parsed",
			"use an ISO 8601 timestamp")}
	}

	daysOld := int(v.now().Sub(*l.LastUpdated).Hours() / 24)
	if daysOld <= v.bounds.FreshDays {
		return nil
	}

	severity := SeverityLow
	if daysOld > v.bounds.StaleDays {
		severity = SeverityMedium
	}
	return []Issue{v.issue(l, StaleData, severity, "last_updated",
		fmt.Sprintf("data is %d days old", daysOld),
		"refresh listing data from source")}
}

func (v *Validator) issue(l *model.NormalizedListing, kind IssueKind, severity Severity, field, description, fix string) Issue {
	return Issue{
		ListingKey:   l.Key(),
		Kind:         kind,
		Severity:     severity,
		Field:        field,
		Description:  description,
		SuggestedFix: fix,
		DetectedAt:   v.now(),
	}
}

func clamp01(f float64) float64 {
	return math.Max(0.0, math.Min(1.0, f))
}
