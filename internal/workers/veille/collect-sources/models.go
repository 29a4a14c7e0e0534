package collectsources

import (
	"time"

	"agency-assistant/internal/models"
)

// Limits override the configured caps for one collection. Zero values keep
// the configured ones.
type Limits struct {
	MaxItemsPerSource int
	OverallDeadline   time.Duration
}

type Input struct {
	Sources []models.SourceDescriptor
	Limits  Limits
}

// outcome is what one source task hands back to the collector.
type outcome struct {
	index int
	items []models.VeilleItem
	err   error
}
