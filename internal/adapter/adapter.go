// Package adapter fetches listings from external property portals and
// normalizes their source-native payloads into the canonical model.
package adapter

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/propfolio/catalog-cli/internal/model"
	"github.com/propfolio/catalog-cli/internal/resilience"
)

// SourceAdapter is the contract every listing source implements. Search
// and FetchDetails perform network I/O; Normalize is pure and
// deterministic for a given raw payload.
type SourceAdapter interface {
	// Source returns the stable lowercase source name.
	Source() string

	// Search fetches raw listings near a location. radiusKM and maxResults
	// are passed through to the source API. A source outage (retry budget
	// exhausted on transient failures) yields an empty list and a nil
	// error; a non-nil error means the source is misconfigured.
	Search(ctx context.Context, location string, radiusKM float64, maxResults int) ([]model.RawListing, error)

	// FetchDetails fetches the full raw payload for one listing.
	FetchDetails(ctx context.Context, sourceID string) (*model.RawListing, error)

	// Normalize converts a raw payload to the canonical record, attaching
	// lineage and a reliability score. Unmappable payloads return an error.
	Normalize(raw *model.RawListing) (*model.NormalizedListing, error)
}

// recoverableSearchErr reports whether a search failure is an ordinary
// source outage: the fetch budget was exhausted on transient errors.
// Misconfiguration (bad credentials, malformed URLs) is not recoverable.
func recoverableSearchErr(err error) bool {
	return resilience.IsFetchFailure(err) && resilience.IsTransient(err)
}

// ReliabilityScore rates how complete a normalized record is, from the
// adapter's point of view. Starts at 1.0, loses 0.2 per missing critical
// field (price, address, bedrooms) and 0.1 per missing optional field
// (description, bathrooms, property type, images), clamped to [0,1].
func ReliabilityScore(l *model.NormalizedListing) float64 {
	score := 1.0

	if !hasNumber(l.Price) {
		score -= 0.2
	}
	if strings.TrimSpace(l.Address) == "" {
		score -= 0.2
	}
	if !hasNumber(l.Bedrooms) {
		score -= 0.2
	}

	if strings.TrimSpace(l.Description) == "" {
		score -= 0.1
	}
	if !hasNumber(l.Bathrooms) {
		score -= 0.1
	}
	if l.PropertyType == "" || l.PropertyType == model.PropertyTypeUnknown {
		score -= 0.1
	}
	if len(l.ImageURLs) == 0 {
		score -= 0.1
	}

	return math.Max(0.0, math.Min(1.0, score))
}

func hasNumber(f *float64) bool {
	return f != nil && !math.IsNaN(*f)
}

var (
	digitsRe   = regexp.MustCompile(`\d+`)
	postcodeRe = regexp.MustCompile(`[A-Z]{1,2}[0-9R][0-9A-Z]? [0-9][ABD-HJLNP-UW-Z]{2}`)
)

// payloadString reads a string field from a raw payload; non-string
// scalars are stringified, absent or nil values return "".
func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// payloadNumber reads a numeric field. Absent or nil returns nil; a
// number returns its value; a non-empty string that cannot be parsed
// returns NaN so validation can flag the format.
func payloadNumber(payload map[string]any, key string) *float64 {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil
	}
	return coerceNumber(v)
}

func coerceNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return model.Float(n)
	case float32:
		return model.Float(float64(n))
	case int:
		return model.Float(float64(n))
	case int64:
		return model.Float(float64(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return model.Float(f)
		}
		return model.Float(math.NaN())
	default:
		return model.Float(math.NaN())
	}
}

// extractPrice parses a source price that may be numeric or a display
// string ("£285,000"). "POA" means no price was published and maps to
// missing; any other non-numeric string maps to NaN.
func extractPrice(v any) *float64 {
	switch p := v.(type) {
	case nil:
		return nil
	case float64:
		return model.Float(p)
	case int:
		return model.Float(float64(p))
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return nil
		}
		if strings.Contains(strings.ToLower(s), "poa") {
			return nil
		}
		cleaned := strings.NewReplacer("£", "", ",", "").Replace(s)
		if m := digitsRe.FindString(cleaned); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return model.Float(f)
			}
		}
		return model.Float(math.NaN())
	default:
		return model.Float(math.NaN())
	}
}

// extractCount parses a bedroom or bathroom count that may arrive as a
// number or as a display string ("3 bedrooms").
func extractCount(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return model.Float(n)
	case int:
		return model.Float(float64(n))
	case string:
		if m := digitsRe.FindString(n); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return model.Float(f)
			}
		}
		if strings.TrimSpace(n) == "" {
			return nil
		}
		return model.Float(math.NaN())
	default:
		return model.Float(math.NaN())
	}
}

// extractPostcode pulls a UK postcode out of a display address, or "".
func extractPostcode(address string) string {
	return postcodeRe.FindString(strings.ToUpper(address))
}

// extractImageURLs accepts a list of URLs or a single URL string.
func extractImageURLs(v any) []string {
	switch imgs := v.(type) {
	case []string:
		return imgs
	case []any:
		urls := make([]string, 0, len(imgs))
		for _, img := range imgs {
			if s, ok := img.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	case string:
		if imgs == "" {
			return nil
		}
		return []string{imgs}
	default:
		return nil
	}
}

// containsFeature reports whether any of the given feature lists or text
// blobs mentions the feature, case-insensitively.
func containsFeature(feature string, sources ...any) bool {
	needle := strings.ToLower(feature)
	for _, src := range sources {
		switch s := src.(type) {
		case string:
			if strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		case []string:
			for _, item := range s {
				if strings.Contains(strings.ToLower(item), needle) {
					return true
				}
			}
		case []any:
			for _, item := range s {
				if strings.Contains(strings.ToLower(fmt.Sprint(item)), needle) {
					return true
				}
			}
		}
	}
	return false
}

// furnishedFromText classifies a furnishing description. "unfurnished"
// is checked before "furnished" because the latter is a substring.
func furnishedFromText(text string) model.FurnishedStatus {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "furnished") {
		return model.FurnishedUnknown
	}
	switch {
	case strings.Contains(lower, "unfurnished"):
		return model.Unfurnished
	case strings.Contains(lower, "part") || strings.Contains(lower, "partial"):
		return model.PartFurnished
	default:
		return model.Furnished
	}
}
