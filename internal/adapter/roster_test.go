package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRoster(t *testing.T) {
	path := writeRoster(t, `
sources:
  - name: zoopla
    kind: api
    api_key: secret
    quota_calls: 100
    quota_window: 1h
  - name: rightmove
    kind: api
    enabled: false
  - name: bulkfeed
    kind: ftp
    feed_url: ftp://feeds.example.com/daily.csv
`)

	roster, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, roster.Sources, 3)
	assert.Equal(t, "zoopla", roster.Sources[0].Name)
	assert.False(t, roster.Sources[1].enabled())

	adapters, err := roster.Build()
	require.NoError(t, err)
	// rightmove is disabled.
	require.Len(t, adapters, 2)
	assert.Equal(t, "zoopla", adapters[0].Source())
	assert.Equal(t, "bulkfeed", adapters[1].Source())
}

func TestLoadRoster_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown kind", "sources:\n  - name: x\n    kind: carrier-pigeon\n"},
		{"missing name", "sources:\n  - kind: api\n"},
		{"duplicate name", "sources:\n  - name: zoopla\n    kind: api\n  - name: zoopla\n    kind: api\n"},
		{"ftp without feed url", "sources:\n  - name: feed\n    kind: ftp\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRoster(t, tt.content)
			_, err := LoadRoster(path)
			assert.Error(t, err)
		})
	}
}

func TestRosterBuild_UnknownAPISource(t *testing.T) {
	path := writeRoster(t, "sources:\n  - name: mystery\n    kind: api\n")
	roster, err := LoadRoster(path)
	require.NoError(t, err)

	_, err = roster.Build()
	assert.Error(t, err)
}
