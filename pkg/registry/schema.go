// pkg/registry/schema.go
package registry

// TemplateRegistry is the canonical catalogue of slide templates.
type TemplateRegistry struct {
	Version     string          `json:"version"`
	LastUpdated string          `json:"lastUpdated"`
	Tagline     string          `json:"tagline,omitempty"`
	Templates   []SlideTemplate `json:"templates"`
}

// SlideTemplate fixes the title and layout of one slide type. Title may
// contain a single %d verb for numbered slides such as idea headers.
type SlideTemplate struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Layout      string   `json:"layout"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}
