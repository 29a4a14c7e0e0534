package models

import (
	"strings"
	"time"
)

// SourceType tags the adapter class an item came from.
type SourceType string

const (
	SourceRSS    SourceType = "rss"
	SourceWeb    SourceType = "web"
	SourceSocial SourceType = "social"
	SourceOSINT  SourceType = "osint"
	SourceTrend  SourceType = "trend"
)

// VeilleItem is a single collected piece of intelligence.
type VeilleItem struct {
	Source      string                 `json:"source"`
	SourceType  SourceType             `json:"source_type"`
	Title       string                 `json:"title,omitempty"`
	Snippet     string                 `json:"snippet,omitempty"`
	URL         string                 `json:"url,omitempty"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	Content     string                 `json:"content,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Valid reports whether the item carries a source and some text.
func (i *VeilleItem) Valid() bool {
	if strings.TrimSpace(i.Source) == "" {
		return false
	}
	return strings.TrimSpace(i.Title) != "" ||
		strings.TrimSpace(i.Snippet) != "" ||
		strings.TrimSpace(i.Content) != ""
}

// Text returns the item's text joined for analysis.
func (i *VeilleItem) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{i.Title, i.Snippet, i.Content} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ". ")
}

// NormalizeMetadata keeps only scalar values and converts integers to
// float64 so a JSON round trip yields identical maps.
func NormalizeMetadata(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			if val != "" {
				out[k] = val
			}
		case bool, float64:
			out[k] = val
		case float32:
			out[k] = float64(val)
		case int:
			out[k] = float64(val)
		case int32:
			out[k] = float64(val)
		case int64:
			out[k] = float64(val)
		case uint:
			out[k] = float64(val)
		case uint32:
			out[k] = float64(val)
		case uint64:
			out[k] = float64(val)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SourceFailure records why one source did not contribute.
type SourceFailure struct {
	Source  string `json:"source"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// VeilleReport is a collection of items with provenance.
type VeilleReport struct {
	ID               string          `json:"id,omitempty"`
	Items            []VeilleItem    `json:"items"`
	SourcesSucceeded []string        `json:"sources_succeeded"`
	SourcesFailed    []SourceFailure `json:"sources_failed"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}

// FailedSources returns the identifiers of failed sources.
func (r *VeilleReport) FailedSources() []string {
	out := make([]string, 0, len(r.SourcesFailed))
	for _, f := range r.SourcesFailed {
		out = append(out, f.Source)
	}
	return out
}

// Texts returns the analysable text of every item in order.
func (r *VeilleReport) Texts() []string {
	out := make([]string, 0, len(r.Items))
	for i := range r.Items {
		if t := r.Items[i].Text(); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SourceKind is the adapter class a descriptor targets.
type SourceKind string

const (
	KindRSS    SourceKind = "rss"
	KindWeb    SourceKind = "web"
	KindSocial SourceKind = "social"
	KindOSINT  SourceKind = "osint"
)

// SourceDescriptor is the declarative configuration of one veille source.
type SourceDescriptor struct {
	ID        string     `json:"id,omitempty" yaml:"id"`
	Kind      SourceKind `json:"kind" yaml:"kind"`
	Target    string     `json:"target" yaml:"target"`
	Limit     int        `json:"limit,omitempty" yaml:"limit"`
	TimeoutMS int        `json:"timeout_ms,omitempty" yaml:"timeout_ms"`
	Required  bool       `json:"required,omitempty" yaml:"required"`
}

// Name is the source identifier used in reports.
func (s SourceDescriptor) Name() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Target
}
