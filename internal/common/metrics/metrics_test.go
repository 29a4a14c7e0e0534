package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSourceOutcome(t *testing.T) {
	before := testutil.ToFloat64(SourceOutcomes.WithLabelValues("rss", "upstream"))
	SourceOutcome("rss", "upstream")
	assert.Equal(t, before+1, testutil.ToFloat64(SourceOutcomes.WithLabelValues("rss", "upstream")))
}

func TestCacheHit(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues("miss"))

	CacheHit(true)
	CacheHit(false)
	CacheHit(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookups.WithLabelValues("miss")))
}
