package adapter

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Duration lets roster files spell durations as "1h" or "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return eris.Wrapf(err, "adapter: parse duration %q", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// SourceSpec declares one listing source in the roster file.
type SourceSpec struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"` // "api" or "ftp"
	Enabled     *bool    `yaml:"enabled"`
	APIKey      string   `yaml:"api_key"`
	FeedURL     string   `yaml:"feed_url"`
	QuotaCalls  int      `yaml:"quota_calls"`
	QuotaWindow Duration `yaml:"quota_window"`
}

func (s *SourceSpec) enabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Roster is the set of configured sources, loaded from sources.yaml.
type Roster struct {
	Sources []SourceSpec `yaml:"sources"`
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "adapter: read roster %s", path)
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, eris.Wrapf(err, "adapter: parse roster %s", path)
	}

	seen := make(map[string]bool, len(roster.Sources))
	for i := range roster.Sources {
		spec := &roster.Sources[i]
		if spec.Name == "" {
			return nil, eris.Errorf("adapter: roster entry %d has no name", i)
		}
		if seen[spec.Name] {
			return nil, eris.Errorf("adapter: duplicate source %q in roster", spec.Name)
		}
		seen[spec.Name] = true

		switch spec.Kind {
		case "api":
		case "ftp":
			if spec.FeedURL == "" {
				return nil, eris.Errorf("adapter: source %q needs feed_url", spec.Name)
			}
		default:
			return nil, eris.Errorf("adapter: source %q has unknown kind %q", spec.Name, spec.Kind)
		}
	}

	return &roster, nil
}

// Build instantiates adapters for every enabled source in the roster.
// API sources must be ones this binary knows how to talk to.
func (r *Roster) Build() ([]SourceAdapter, error) {
	var adapters []SourceAdapter
	for i := range r.Sources {
		spec := &r.Sources[i]
		if !spec.enabled() {
			continue
		}

		switch spec.Kind {
		case "ftp":
			adapters = append(adapters, NewBulkFeedAdapter(spec.Name, spec.FeedURL, nil))
		case "api":
			client := NewClient(ClientOptions{
				Source:      spec.Name,
				QuotaCalls:  spec.QuotaCalls,
				QuotaWindow: time.Duration(spec.QuotaWindow),
			})
			switch spec.Name {
			case "zoopla":
				adapters = append(adapters, NewZooplaAdapter(spec.APIKey, client))
			case "rightmove":
				adapters = append(adapters, NewRightmoveAdapter(spec.APIKey, client))
			default:
				return nil, eris.Errorf("adapter: no implementation for api source %q", spec.Name)
			}
		}
	}
	return adapters, nil
}
