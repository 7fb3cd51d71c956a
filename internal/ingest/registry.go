package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all watched sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int `yaml:"max_retries,omitempty"`     // Default: 3
}

// RecipientConfig names the delivery channels for a source's alerts.
type RecipientConfig struct {
	Email []string `yaml:"email,omitempty"`
	SMS   []string `yaml:"sms,omitempty"`
}

// SourceConfig defines a single watched source.
type SourceConfig struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"` // "device", "drug", "payment", "notice", "signal", "state"
	Region   string   `yaml:"region"`
	Adapter  string   `yaml:"adapter"` // "openfda_enforcement", "cms_pfs", "fedreg", "faers", "state_health"
	BaseURL  string   `yaml:"base_url,omitempty"`
	APIKey   string   `yaml:"api_key,omitempty"`
	Agency   string   `yaml:"agency,omitempty"`
	Seeds    []string `yaml:"seed_urls,omitempty"`
	Schedule string   `yaml:"schedule,omitempty"`

	// Drug enforcement sources bump the score when a title mentions one of
	// these terms.
	HighRiskKeywords []string `yaml:"high_risk_keywords,omitempty"`

	// Device inventory terms used for exact/fuzzy model matching.
	WatchedModels []string `yaml:"watched_models,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// For the state health crawler
	Selectors SelectorConfig `yaml:"selectors,omitempty"`
	MaxPages  int            `yaml:"max_pages,omitempty"`

	Recipients RecipientConfig `yaml:"recipients,omitempty"`
}

type SelectorConfig struct {
	Container string `yaml:"container,omitempty"` // CSS selector for the list item wrapper
	Link      string `yaml:"link,omitempty"`
	LinkAttr  string `yaml:"link_attr,omitempty"` // Attribute to extract link from (default: href)
	Title     string `yaml:"title,omitempty"`
	Date      string `yaml:"date,omitempty"`
	Content   string `yaml:"content,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml and returns a Registry.
// The path parameter is kept as a filesystem fallback for local development.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${OPENFDA_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Find returns the config for a source id.
func (r *Registry) Find(id string) (SourceConfig, error) {
	for _, src := range r.Sources {
		if src.ID == id {
			return src, nil
		}
	}
	return SourceConfig{}, fmt.Errorf("source not found: %s", id)
}
