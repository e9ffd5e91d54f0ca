package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arvid/tenantdb/internal/model"
)

// Manifest is the declarative tenant file consumed by tenantctl apply.
type Manifest struct {
	Tenants []ManifestTenant `yaml:"tenants"`
}

type ManifestTenant struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	// Grants lists principal IDs allowed to resolve this tenant.
	Grants []string `yaml:"grants"`
}

// LoadManifest reads and validates a tenant manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if len(m.Tenants) == 0 {
		return nil, fmt.Errorf("manifest %s contains no tenants", path)
	}

	seen := make(map[string]bool, len(m.Tenants))
	for i, t := range m.Tenants {
		if _, err := model.ParseTenantID(t.ID); err != nil {
			return nil, fmt.Errorf("tenant %d: %w", i, err)
		}
		if t.DisplayName == "" {
			return nil, fmt.Errorf("tenant %s: display_name is required", t.ID)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("tenant %s appears twice", t.ID)
		}
		seen[t.ID] = true
	}

	return &m, nil
}
