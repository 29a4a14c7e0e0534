// Package validation loads JSON Schema documents once at startup and
// normalizes candidate maps into a schema's canonical shape.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	apperrors "agency-assistant/internal/common/errors"
)

// LanguageKeyword is the schema keyword declaring the canonical key language.
const LanguageKeyword = "x-canonical-language"

// Schemas the process cannot start without.
var RequiredSchemas = []string{"brief", "brief_output", "veille_item"}

var aliasSuffixes = []string{".schema", "_schema", "-schema"}

type property struct {
	name   string
	isList bool
	isText bool
}

// Schema is one compiled JSON Schema plus the metadata normalization needs.
type Schema struct {
	Name     string
	Language string
	Closed   bool

	properties map[string]property
	byConcept  map[string]string
	compiled   *gojsonschema.Schema
}

// Property returns the schema property name used for a canonical concept.
func (s *Schema) Property(concept string) (string, bool) {
	p, ok := s.byConcept[concept]
	return p, ok
}

// Registry indexes compiled schemas by name and alias. It is read-only
// after loading.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// LoadRegistry compiles every *.json file in dir and checks that the
// required schemas are present.
func LoadRegistry(dir string, required ...string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	r := NewRegistry()
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", f, err)
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("schema %s is not valid JSON: %w", f, err)
		}
		stem := strings.TrimSuffix(f, filepath.Ext(f))
		if err := r.Register(stem, raw); err != nil {
			return nil, fmt.Errorf("schema %s: %w", f, err)
		}
	}

	for _, name := range required {
		if _, ok := r.schemas[name]; !ok {
			return nil, fmt.Errorf("required schema %q not found in %s", name, dir)
		}
	}
	return r, nil
}

func stripSuffix(stem string) string {
	for _, suf := range aliasSuffixes {
		if strings.HasSuffix(stem, suf) && len(stem) > len(suf) {
			return strings.TrimSuffix(stem, suf)
		}
	}
	return stem
}

// Register compiles raw under name and its suffix-stripped alias.
func (r *Registry) Register(name string, raw map[string]interface{}) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	s := &Schema{
		Name:       stripSuffix(name),
		Language:   "en",
		properties: make(map[string]property),
		byConcept:  make(map[string]string),
		compiled:   compiled,
	}
	if lang, ok := raw[LanguageKeyword].(string); ok && lang != "" {
		s.Language = strings.ToLower(lang)
	}
	if ap, ok := raw["additionalProperties"].(bool); ok && !ap {
		s.Closed = true
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		for pname, pdef := range props {
			def, _ := pdef.(map[string]interface{})
			p := property{name: pname}
			switch t := def["type"].(type) {
			case string:
				p.isList = t == "array"
				p.isText = t == "string"
			case []interface{}:
				for _, v := range t {
					p.isList = p.isList || v == "array"
					p.isText = p.isText || v == "string"
				}
			}
			s.properties[pname] = p
			if concept, ok := LookupConcept(pname); ok {
				s.byConcept[concept] = pname
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// raw stems win over aliases on collision
	r.schemas[name] = s
	if alias := stripSuffix(name); alias != name {
		if _, taken := r.schemas[alias]; !taken {
			r.schemas[alias] = s
		}
	}
	return nil
}

// Get returns the schema registered under name or alias.
func (r *Registry) Get(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	if !ok {
		return nil, apperrors.NewSchemaNotFoundError(name)
	}
	return s, nil
}

// Names returns every registered name and alias, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
