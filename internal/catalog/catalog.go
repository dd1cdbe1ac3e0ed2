// Package catalog provides the static model and subscription plan listings.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

const DefaultModelID = "kiwi-4.5"

//go:embed catalog.yaml
var defaultCatalog []byte

type Model struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Tier        string `yaml:"tier" json:"tier"`
	Provider    string `yaml:"provider" json:"provider"`
	RemoteModel string `yaml:"remote_model" json:"-"`
}

// RequiresPro reports whether only pro subscribers may use the model.
func (m Model) RequiresPro() bool {
	return m.Tier == "pro"
}

type Plan struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Price    int      `yaml:"price" json:"price"`
	Billing  string   `yaml:"billing" json:"billing"`
	Savings  string   `yaml:"savings,omitempty" json:"savings,omitempty"`
	Features []string `yaml:"features" json:"features"`
}

type Catalog struct {
	Models []Model `yaml:"models"`
	Plans  []Plan  `yaml:"plans"`
}

// Load parses the catalog embedded in the binary.
func Load() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool)
	for _, m := range c.Models {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("catalog model %q is missing id or provider", m.ID)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate catalog model %q", m.ID)
		}
		seen[m.ID] = true
	}
	for _, p := range c.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog plan is missing id")
		}
	}
	return &c, nil
}

func (c *Catalog) Model(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
