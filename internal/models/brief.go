package models

// Canonical section names of a creative brief.
const (
	SectionTitle       = "title"
	SectionProblem     = "problem"
	SectionObjectives  = "objectives"
	SectionKPIs        = "kpis"
	SectionBudget      = "budget"
	SectionTimeline    = "timeline"
	SectionConstraints = "constraints"
)

// Sections lists the canonical sections in document order.
var Sections = []string{
	SectionTitle, SectionProblem, SectionObjectives, SectionKPIs,
	SectionBudget, SectionTimeline, SectionConstraints,
}

// RequiredSections must be non-empty in every processed brief.
var RequiredSections = []string{SectionTitle, SectionProblem, SectionObjectives, SectionKPIs}

// ListSections hold ordered sequences rather than scalar text.
var ListSections = map[string]bool{
	SectionObjectives:  true,
	SectionKPIs:        true,
	SectionConstraints: true,
}

// Brief is the canonical result of parsing one creative document.
type Brief struct {
	Title       string   `json:"title"`
	Problem     string   `json:"problem"`
	Objectives  []string `json:"objectives"`
	KPIs        []string `json:"kpis"`
	Budget      string   `json:"budget,omitempty"`
	Timeline    string   `json:"timeline,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// Missing returns the required sections that are empty.
func (b *Brief) Missing() []string {
	var out []string
	if b.Title == "" {
		out = append(out, SectionTitle)
	}
	if b.Problem == "" {
		out = append(out, SectionProblem)
	}
	if len(b.Objectives) == 0 {
		out = append(out, SectionObjectives)
	}
	if len(b.KPIs) == 0 {
		out = append(out, SectionKPIs)
	}
	return out
}

// BriefMetadata is the side channel produced alongside a Brief.
type BriefMetadata struct {
	Pages                 int      `json:"pages"`
	ExtractionTimeMS      int64    `json:"extraction_time_ms"`
	AutoDefaultedSections []string `json:"auto_defaulted_sections"`
	Schema                string   `json:"schema,omitempty"`
	Source                string   `json:"source,omitempty"`
	EmptyPages            []int    `json:"empty_pages,omitempty"`
}

// BriefResult is returned by process_brief.
type BriefResult struct {
	Brief    Brief         `json:"brief"`
	Metadata BriefMetadata `json:"metadata"`
}
