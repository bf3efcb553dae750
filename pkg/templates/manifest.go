package templates

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifest is the on-disk shape of a template catalog extension file.
type manifest struct {
	Templates []Template `yaml:"templates"`
}

// LoadManifest reads extra catalog entries from a YAML file.
//
// Operators drop a manifest next to their template directories to expose
// site-local templates without rebuilding the binary.
func LoadManifest(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template manifest not found: %s", path)
		}
		return nil, fmt.Errorf("read template manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse template manifest: %w", err)
	}

	for i, t := range m.Templates {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("template manifest entry %d: id is required", i)
		}
	}
	return m.Templates, nil
}

// MergeManifest registers the manifest's entries, overriding builtin entries
// with the same id.
func (r *Registry) MergeManifest(path string) error {
	entries, err := LoadManifest(path)
	if err != nil {
		return err
	}
	for _, t := range entries {
		r.add(t)
	}
	return nil
}
