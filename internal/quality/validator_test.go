package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfolio/catalog-cli/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(DefaultBounds(), nil).WithNow(testNow)
}

func goodListing() model.NormalizedListing {
	updated := testNow.Add(-24 * time.Hour)
	return model.NormalizedListing{
		Title:        "Two bed terrace",
		Address:      "12 Mill Lane, Leeds LS1 4DY",
		Price:        model.Float(285000),
		Bedrooms:     model.Float(2),
		Bathrooms:    model.Float(1),
		Latitude:     model.Float(53.7997),
		Longitude:    model.Float(-1.5492),
		PropertyType: model.PropertyTypeHouse,
		LastUpdated:  &updated,
		Lineage: model.Lineage{
			Source:   "zoopla",
			SourceID: "z-100",
		},
	}
}

func TestValidate_CleanListing(t *testing.T) {
	v := newTestValidator()
	l := goodListing()
	assert.Empty(t, v.Validate(&l))
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	v := newTestValidator()
	l := model.NormalizedListing{}

	issues := v.Validate(&l)

	var critical []Issue
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			critical = append(critical, issue)
		}
	}
	require.Len(t, critical, 4)
	for _, issue := range critical {
		assert.Equal(t, MissingRequiredField, issue.Kind)
	}

	fields := map[string]bool{}
	for _, issue := range critical {
		fields[issue.Field] = true
	}
	assert.True(t, fields["source"])
	assert.True(t, fields["source_id"])
	assert.True(t, fields["address"])
	assert.True(t, fields["price"])
}

func TestValidate_BlankAddressIsCriticalNotSuspicious(t *testing.T) {
	v := newTestValidator()
	l := goodListing()
	l.Address = "   "

	issues := v.Validate(&l)
	for _, issue := range issues {
		if issue.Field == "address" {
			assert.Equal(t, SeverityCritical, issue.Severity)
			assert.Equal(t, MissingRequiredField, issue.Kind)
		}
	}
}

func TestValidate_Price(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		price    float64
		kind     IssueKind
		severity Severity
	}{
		{"unusually low", 500, SuspiciousValue, SeverityMedium},
		{"unusually high", 90_000_000, SuspiciousValue, SeverityMedium},
		{"not a number", math.NaN(), InvalidFormat, SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := goodListing()
			l.Price = model.Float(tt.price)

			issues := v.Validate(&l)
			require.NotEmpty(t, issues)
			found := false
			for _, issue := range issues {
				if issue.Field == "price" && issue.Kind == tt.kind {
					assert.Equal(t, tt.severity, issue.Severity)
					found = true
				}
			}
			assert.True(t, found, "expected a %s issue on price", tt.kind)
		})
	}
}

func TestValidate_ZeroPriceIsBothSuspiciousAndInvalid(t *testing.T) {
	v := newTestValidator()
	l := goodListing()
	l.Price = model.Float(0)

	issues := v.Validate(&l)
	kinds := map[IssueKind]bool{}
	for _, issue := range issues {
		if issue.Field == "price" {
			kinds[issue.Kind] = true
		}
	}
	assert.True(t, kinds[SuspiciousValue])
	assert.True(t, kinds[InvalidFormat])
}

func TestValidate_Coordinates(t *testing.T) {
	v := newTestValidator()

	t.Run("zero zero is geocoding failure", func(t *testing.T) {
		l := goodListing()
		l.Latitude = model.Float(0)
		l.Longitude = model.Float(0)

		issues := v.Validate(&l)
		found := false
		for _, issue := range issues {
			if issue.Kind == GeocodingFailed && issue.Severity == SeverityHigh {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("outside region per axis", func(t *testing.T) {
		l := goodListing()
		l.Latitude = model.Float(40.0)
		l.Longitude = model.Float(30.0)

		issues := v.Validate(&l)
		fields := map[string]bool{}
		for _, issue := range issues {
			if issue.Kind == GeocodingFailed {
				assert.Equal(t, SeverityMedium, issue.Severity)
				fields[issue.Field] = true
			}
		}
		assert.True(t, fields["latitude"])
		assert.True(t, fields["longitude"])
	})

	t.Run("non-numeric", func(t *testing.T) {
		l := goodListing()
		l.Latitude = model.Float(math.NaN())

		issues := v.Validate(&l)
		require.Len(t, issues, 1)
		assert.Equal(t, InvalidFormat, issues[0].Kind)
		assert.Equal(t, SeverityHigh, issues[0].Severity)
		assert.Equal(t, "coordinates", issues[0].Field)
	})

	t.Run("missing coordinates are not flagged", func(t *testing.T) {
		l := goodListing()
		l.Latitude = nil
		l.Longitude = nil
		assert.Empty(t, v.Validate(&l))
	})
}

func TestValidate_Address(t *testing.T) {
	v := newTestValidator()

	l := goodListing()
	l.Address = "12 Mill"

	issues := v.Validate(&l)
	var low int
	for _, issue := range issues {
		if issue.Field == "address" {
			assert.Equal(t, SeverityLow, issue.Severity)
			assert.Equal(t, SuspiciousValue, issue.Kind)
			low++
		}
	}
	// Too short and no postcode.
	assert.Equal(t, 2, low)
}

func TestValidate_Characteristics(t *testing.T) {
	v := newTestValidator()

	t.Run("non-integer bedrooms", func(t *testing.T) {
		l := goodListing()
		l.Bedrooms = model.Float(2.5)

		issues := v.Validate(&l)
		require.Len(t, issues, 1)
		assert.Equal(t, InvalidFormat, issues[0].Kind)
		assert.Equal(t, SeverityMedium, issues[0].Severity)
	})

	t.Run("too many bathrooms", func(t *testing.T) {
		l := goodListing()
		l.Bathrooms = model.Float(14)

		issues := v.Validate(&l)
		require.Len(t, issues, 1)
		assert.Equal(t, SuspiciousValue, issues[0].Kind)
		assert.Equal(t, "bathrooms", issues[0].Field)
	})
}

func TestValidate_Freshness(t *testing.T) {
	v := newTestValidator()

	t.Run("slightly stale", func(t *testing.T) {
		l := goodListing()
		updated := testNow.Add(-10 * 24 * time.Hour)
		l.LastUpdated = &updated

		issues := v.Validate(&l)
		require.Len(t, issues, 1)
		assert.Equal(t, StaleData, issues[0].Kind)
		assert.Equal(t, SeverityLow, issues[0].Severity)
	})

	t.Run("very stale", func(t *testing.T) {
		l := goodListing()
		updated := testNow.Add(-45 * 24 * time.Hour)
		l.LastUpdated = &updated

		issues := v.Validate(&l)
		require.Len(t, issues, 1)
		assert.Equal(t, StaleData, issues[0].Kind)
		assert.Equal(t, SeverityMedium, issues[0].Severity)
	})

	t.Run("unparseable timestamp", func(t *testing.T) {
		l := goodListing()
		var zero time.Time
		l.LastUpdated = &zero

		issues := v.Validate(&l)
		require.Len(t, issues, 1)
		assert.Equal(t, InvalidFormat, issues[0].Kind)
		assert.Equal(t, SeverityLow, issues[0].Severity)
	})
}

func TestValidateBatch_EmptyScoresPerfect(t *testing.T) {
	v := newTestValidator()
	report := v.ValidateBatch(nil)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 1.0, report.OverallScore)
}

func TestValidateBatch_Scoring(t *testing.T) {
	v := newTestValidator()

	clean := goodListing()
	stale := goodListing()
	stale.Lineage.SourceID = "z-101"
	updated := testNow.Add(-10 * 24 * time.Hour)
	stale.LastUpdated = &updated

	report := v.ValidateBatch([]model.NormalizedListing{clean, stale})

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.ValidCount)
	require.Len(t, report.Issues, 1)

	// One LOW issue over two listings: 1 - 0.1/(2*2.1).
	assert.InDelta(t, 1.0-0.1/4.2, report.OverallScore, 1e-9)
	assert.Equal(t, 1, report.CountBySeverity()[SeverityLow])
	assert.Equal(t, 1, report.CountByKind()[StaleData])
}

func TestValidateBatch_HighIssueBlocksValidity(t *testing.T) {
	v := newTestValidator()

	bad := goodListing()
	bad.Latitude = model.Float(0)
	bad.Longitude = model.Float(0)

	report := v.ValidateBatch([]model.NormalizedListing{bad})
	assert.Equal(t, 0, report.ValidCount)
	assert.Less(t, report.OverallScore, 1.0)
}
