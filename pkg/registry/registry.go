// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed default_templates.json
var defaultTemplates []byte

// Default returns the embedded template catalogue.
func Default() *TemplateRegistry {
	var reg TemplateRegistry
	if err := json.Unmarshal(defaultTemplates, &reg); err != nil {
		panic(fmt.Sprintf("embedded slide templates: %v", err))
	}
	return &reg
}

func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Load returns the embedded catalogue with the templates of path laid over
// it. An empty path yields the embedded catalogue alone.
func Load(path string) (*TemplateRegistry, error) {
	reg := Default()
	if path == "" {
		return reg, nil
	}
	override, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	if err := override.Validate(); err != nil {
		return nil, fmt.Errorf("override %s: %w", path, err)
	}
	reg.Merge(override)
	return reg, nil
}

// Merge replaces templates of the same type and appends new ones.
func (r *TemplateRegistry) Merge(other *TemplateRegistry) {
	for _, t := range other.Templates {
		if i := r.index(t.Type); i >= 0 {
			r.Templates[i] = t
		} else {
			r.Templates = append(r.Templates, t)
		}
	}
	if other.Tagline != "" {
		r.Tagline = other.Tagline
	}
	if other.Version != "" {
		r.Version = other.Version
	}
	if other.LastUpdated != "" {
		r.LastUpdated = other.LastUpdated
	}
}

// Lookup returns the template registered for slideType.
func (r *TemplateRegistry) Lookup(slideType string) (SlideTemplate, bool) {
	if i := r.index(slideType); i >= 0 {
		return r.Templates[i], true
	}
	return SlideTemplate{}, false
}

// Validate rejects templates without a type or layout and duplicate types.
func (r *TemplateRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Templates))
	for i, t := range r.Templates {
		if t.Type == "" {
			return fmt.Errorf("template %d: type is required", i)
		}
		if t.Layout == "" {
			return fmt.Errorf("template %s: layout is required", t.Type)
		}
		if seen[t.Type] {
			return fmt.Errorf("template %s: duplicate type", t.Type)
		}
		seen[t.Type] = true
	}
	return nil
}

// Require reports the first slide type with no template.
func (r *TemplateRegistry) Require(types ...string) error {
	for _, t := range types {
		if r.index(t) < 0 {
			return fmt.Errorf("no template for slide type %s", t)
		}
	}
	return nil
}

// Save writes the catalogue as indented JSON, creating parent directories.
func Save(reg *TemplateRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (r *TemplateRegistry) index(slideType string) int {
	for i, t := range r.Templates {
		if t.Type == slideType {
			return i
		}
	}
	return -1
}
