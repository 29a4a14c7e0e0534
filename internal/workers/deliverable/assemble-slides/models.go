package assembleslides

import "agency-assistant/internal/models"

// Input is one deck request. Analysis may be nil, in which case the
// state-of-play panels fall back to brief-derived content.
type Input struct {
	Brief    *models.Brief
	Analysis *models.AnalysisResult
	Style    models.Style
	// Sector overrides keyword inference when set.
	Sector string
}

type phase struct {
	Name       string
	Activities []string
}

type budgetLine struct {
	Category string
	Percent  int
}
