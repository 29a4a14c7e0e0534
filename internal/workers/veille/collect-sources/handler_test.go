package collectsources

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/resilience"
	"agency-assistant/internal/common/validation"
	"agency-assistant/internal/models"
	"agency-assistant/internal/workers/veille/sources"
)

// ==========================
// Test helpers
// ==========================

type fetchFunc func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error)

type fakeAdapter struct {
	kind     models.SourceKind
	endpoint string
	fetch    fetchFunc

	active    int32
	maxActive int32
}

func (f *fakeAdapter) Kind() models.SourceKind { return f.kind }

func (f *fakeAdapter) Endpoint(models.SourceDescriptor) string { return f.endpoint }

func (f *fakeAdapter) Fetch(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxActive, m, n) {
			break
		}
	}
	return f.fetch(ctx, desc, limit)
}

func items(source string, titles ...string) []models.VeilleItem {
	out := make([]models.VeilleItem, 0, len(titles))
	for _, t := range titles {
		out = append(out, models.VeilleItem{
			Source:     source,
			SourceType: models.SourceRSS,
			Title:      t,
			URL:        "https://" + source + "/" + t,
		})
	}
	return out
}

// byTarget answers with the items registered for the target, or the error.
func byTarget(answers map[string]interface{}) fetchFunc {
	return func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		switch v := answers[desc.Target].(type) {
		case error:
			return nil, v
		case []models.VeilleItem:
			return v, nil
		}
		return nil, nil
	}
}

func sleepy(d time.Duration) fetchFunc {
	return func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		select {
		case <-time.After(d):
			return items(desc.Target, "late"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func rss(target string) models.SourceDescriptor {
	return models.SourceDescriptor{Kind: models.KindRSS, Target: target}
}

func newTestHandler(t *testing.T, config *Config, limiter resilience.Limiter, adapters ...sources.Adapter) *Handler {
	t.Helper()
	if config == nil {
		config = LoadConfig()
	}
	return NewHandler(config, sources.NewRegistry(adapters...), limiter, nil, logger.NewTestLogger(t))
}

func assertReportInvariants(t *testing.T, r *models.VeilleReport) {
	t.Helper()
	succeeded := make(map[string]bool)
	for _, s := range r.SourcesSucceeded {
		succeeded[s] = true
	}
	for _, f := range r.SourcesFailed {
		assert.False(t, succeeded[f.Source], "source %s both succeeded and failed", f.Source)
	}
	for _, it := range r.Items {
		assert.True(t, succeeded[it.Source], "item from non-succeeded source %s", it.Source)
	}
}

func titles(r *models.VeilleReport) []string {
	out := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it.Source+":"+it.Title)
	}
	return out
}

// ==========================
// Merging
// ==========================

func TestExecute_OneFailingSource(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: byTarget(map[string]interface{}{
		"A": items("A", "a1", "a2"),
		"B": apperrors.NewUpstreamError("b.example", 500, "HTTP 500"),
		"C": items("C", "c1"),
	})}
	h := newTestHandler(t, nil, nil, adapter)

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{rss("A"), rss("B"), rss("C")}})
	require.NoError(t, err)

	assert.Equal(t, []string{"A:a1", "A:a2", "C:c1"}, titles(report))
	assert.Equal(t, []string{"A", "C"}, report.SourcesSucceeded)
	require.Len(t, report.SourcesFailed, 1)
	assert.Equal(t, "B", report.SourcesFailed[0].Source)
	assert.Equal(t, "upstream", report.SourcesFailed[0].Reason)
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assertReportInvariants(t, report)
}

func TestExecute_OrderFollowsDeclarationNotCompletion(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		if desc.Target == "slow" {
			time.Sleep(50 * time.Millisecond)
		}
		return items(desc.Target, "x", "y"), nil
	}}
	h := newTestHandler(t, nil, nil, adapter)

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{rss("slow"), rss("fast")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"slow:x", "slow:y", "fast:x", "fast:y"}, titles(report))
}

func TestExecute_Dedupe(t *testing.T) {
	shared := models.VeilleItem{SourceType: models.SourceRSS, Title: "same story", URL: "https://news.example/1"}
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		switch desc.Target {
		case "first":
			return []models.VeilleItem{
				shared,
				{SourceType: models.SourceRSS, Title: "repeat"},
				{SourceType: models.SourceRSS, Title: "repeat", Snippet: "second copy"},
				{SourceType: models.SourceRSS, Snippet: "untitled one"},
				{SourceType: models.SourceRSS, Snippet: "untitled two"},
			}, nil
		default:
			other := shared
			other.Title = "retitled"
			return []models.VeilleItem{other, {SourceType: models.SourceRSS, Title: "repeat"}}, nil
		}
	}}
	h := newTestHandler(t, nil, nil, adapter)

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{rss("first"), rss("second")}})
	require.NoError(t, err)

	assert.Equal(t, []string{"first:same story", "first:repeat", "first:", "first:", "second:repeat"}, titles(report))
	assert.Empty(t, report.Items[1].Snippet, "first occurrence is kept")
}

func TestExecute_ItemCap(t *testing.T) {
	var seenLimit int32
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		atomic.StoreInt32(&seenLimit, int32(limit))
		return items(desc.Target, "1", "2", "3", "4", "5"), nil
	}}
	h := newTestHandler(t, nil, nil, adapter)

	report, err := h.Execute(context.Background(), &Input{
		Sources: []models.SourceDescriptor{rss("A")},
		Limits:  Limits{MaxItemsPerSource: 2},
	})
	require.NoError(t, err)
	assert.Len(t, report.Items, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&seenLimit))

	desc := rss("B")
	desc.Limit = 1
	report, err = h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{desc}})
	require.NoError(t, err)
	assert.Len(t, report.Items, 1)
}

func TestExecute_DropsInvalidItems(t *testing.T) {
	registry, err := validation.LoadRegistry("../../../../schemas", validation.RequiredSchemas...)
	require.NoError(t, err)

	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		return []models.VeilleItem{
			{SourceType: models.SourceRSS, Title: "kept", Metadata: map[string]interface{}{"rank": 3}},
			{SourceType: models.SourceRSS, URL: "https://no-text.example"},
			{SourceType: "bogus", Title: "wrong type"},
		}, nil
	}}
	h := NewHandler(LoadConfig(), sources.NewRegistry(adapter), nil, registry, logger.NewTestLogger(t))

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{rss("A")}})
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, "kept", report.Items[0].Title)
	assert.Equal(t, 3.0, report.Items[0].Metadata["rank"])
}

func TestExecute_AllFailNotRequired(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(context.Context, models.SourceDescriptor, int) ([]models.VeilleItem, error) {
		return nil, apperrors.NewNetworkError("feeds.example", fmt.Errorf("connection refused"))
	}}
	h := newTestHandler(t, nil, nil, adapter)

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{rss("A"), rss("B")}})
	require.NoError(t, err)
	assert.Empty(t, report.Items)
	assert.Empty(t, report.SourcesSucceeded)
	assert.Equal(t, []string{"A", "B"}, report.FailedSources())
}

// ==========================
// Failure classification
// ==========================

func TestExecute_UnregisteredKind(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{{Kind: models.KindSocial, Target: "#brand"}}})
	require.NoError(t, err)
	require.Len(t, report.SourcesFailed, 1)
	assert.Equal(t, "invalid_format", report.SourcesFailed[0].Reason)
}

func TestExecute_AdapterPanic(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(context.Context, models.SourceDescriptor, int) ([]models.VeilleItem, error) {
		panic("boom")
	}}
	h := newTestHandler(t, nil, nil, adapter)

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{rss("A")}})
	require.NoError(t, err)
	assert.Equal(t, "internal", report.SourcesFailed[0].Reason)
}

func TestExecute_PerSourceTimeout(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: sleepy(time.Second)}
	h := newTestHandler(t, nil, nil, adapter)

	desc := rss("A")
	desc.TimeoutMS = 30
	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{desc}})
	require.NoError(t, err)
	assert.Equal(t, "timeout", report.SourcesFailed[0].Reason)
}

func TestExecute_InvalidRequests(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	tests := []struct {
		name    string
		sources []models.SourceDescriptor
	}{
		{"duplicate ids", []models.SourceDescriptor{{ID: "x", Kind: models.KindRSS, Target: "a"}, {ID: "x", Kind: models.KindWeb, Target: "b"}}},
		{"duplicate targets", []models.SourceDescriptor{rss("a"), rss("a")}},
		{"missing target", []models.SourceDescriptor{{ID: "x", Kind: models.KindRSS}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), &Input{Sources: tt.sources})
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
}

// ==========================
// Deadlines, cancellation, required sources
// ==========================

func TestExecute_OverallDeadline(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: sleepy(2 * time.Second)}
	h := newTestHandler(t, nil, nil, adapter)
	srcs := []models.SourceDescriptor{rss("A"), rss("B"), rss("C")}

	start := time.Now()
	report, err := h.Execute(context.Background(), &Input{Sources: srcs, Limits: Limits{OverallDeadline: 500 * time.Millisecond}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)

	assert.Empty(t, report.Items)
	require.Len(t, report.SourcesFailed, 3)
	for _, f := range report.SourcesFailed {
		assert.Equal(t, "timeout", f.Reason)
	}

	srcs[1].Required = true
	report, err = h.Execute(context.Background(), &Input{Sources: srcs, Limits: Limits{OverallDeadline: 500 * time.Millisecond}})
	assert.Equal(t, apperrors.KindRequiredSourceFailed, apperrors.KindOf(err))
	require.NotNil(t, report)
	assert.Empty(t, report.Items)
}

func TestExecute_DeadlineKeepsCommittedItems(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		if desc.Target == "fast" {
			return items("fast", "early"), nil
		}
		return sleepy(2*time.Second)(ctx, desc, limit)
	}}
	h := newTestHandler(t, nil, nil, adapter)

	report, err := h.Execute(context.Background(), &Input{
		Sources: []models.SourceDescriptor{rss("fast"), rss("slow")},
		Limits:  Limits{OverallDeadline: 200 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fast:early"}, titles(report))
	assert.Equal(t, []string{"slow"}, report.FailedSources())
}

func TestExecute_RequiredSourceFailureCancelsOthers(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		if desc.Target == "critical" {
			return nil, apperrors.NewUpstreamError("critical.example", 503, "down")
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	h := newTestHandler(t, nil, nil, adapter)

	critical := rss("critical")
	critical.Required = true
	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{rss("other1"), critical, rss("other2")}})

	se := apperrors.Normalize(err)
	assert.Equal(t, apperrors.KindRequiredSourceFailed, se.Kind)
	assert.Contains(t, se.Message, "critical")
	require.Len(t, report.SourcesFailed, 3)
	assert.Equal(t, "cancelled", report.SourcesFailed[0].Reason)
	assert.Equal(t, "upstream", report.SourcesFailed[1].Reason)
}

func TestExecute_CallerCancellation(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		if desc.Target == "done" {
			return items("done", "kept"), nil
		}
		return sleepy(5*time.Second)(ctx, desc, limit)
	}}
	h := newTestHandler(t, nil, nil, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	report, err := h.Execute(ctx, &Input{Sources: []models.SourceDescriptor{rss("done"), rss("pending")}})
	assert.Less(t, time.Since(start), 1200*time.Millisecond)

	assert.Equal(t, apperrors.KindCancelled, apperrors.KindOf(err))
	require.NotNil(t, report)
	assert.Equal(t, []string{"done:kept"}, titles(report))
	require.Len(t, report.SourcesFailed, 1)
	assert.Equal(t, "cancelled", report.SourcesFailed[0].Reason)
}

func TestExecute_UncooperativeAdapterIsAbandoned(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(context.Context, models.SourceDescriptor, int) ([]models.VeilleItem, error) {
		<-release
		return nil, nil
	}}
	config := LoadConfig()
	config.DrainGrace = 50 * time.Millisecond
	h := newTestHandler(t, config, nil, adapter)

	start := time.Now()
	report, err := h.Execute(context.Background(), &Input{
		Sources: []models.SourceDescriptor{rss("stuck")},
		Limits:  Limits{OverallDeadline: 50 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "timeout", report.SourcesFailed[0].Reason)
}

// ==========================
// Concurrency and rate limiting
// ==========================

func TestExecute_ConcurrencyCap(t *testing.T) {
	adapter := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		time.Sleep(20 * time.Millisecond)
		return items(desc.Target, "x"), nil
	}}
	config := LoadConfig()
	config.Concurrency = 3
	h := newTestHandler(t, config, nil, adapter)

	srcs := make([]models.SourceDescriptor, 12)
	for i := range srcs {
		srcs[i] = rss(fmt.Sprintf("s%02d", i))
	}
	report, err := h.Execute(context.Background(), &Input{Sources: srcs})
	require.NoError(t, err)
	assert.Len(t, report.Items, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&adapter.maxActive), int32(3))
}

type countingLimiter struct {
	mu   sync.Mutex
	keys []string
	next resilience.Limiter
}

func (c *countingLimiter) Wait(ctx context.Context, key string) error {
	c.mu.Lock()
	c.keys = append(c.keys, key)
	c.mu.Unlock()
	return c.next.Wait(ctx, key)
}

func TestExecute_SharedEndpointIsRateLimited(t *testing.T) {
	limiter := &countingLimiter{next: resilience.NewSlidingWindow(1, time.Minute)}
	social := &fakeAdapter{kind: models.KindSocial, endpoint: "social:api.example", fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		return items(desc.Target, "post"), nil
	}}
	feeds := &fakeAdapter{kind: models.KindRSS, fetch: func(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
		return items(desc.Target, "entry"), nil
	}}
	h := newTestHandler(t, nil, limiter, social, feeds)

	report, err := h.Execute(context.Background(), &Input{Sources: []models.SourceDescriptor{
		{Kind: models.KindSocial, Target: "q1", TimeoutMS: 200},
		{Kind: models.KindSocial, Target: "q2", TimeoutMS: 200},
		rss("feed"),
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"social:api.example", "social:api.example"}, limiter.keys)
	assert.Len(t, report.SourcesSucceeded, 2)
	require.Len(t, report.SourcesFailed, 1)
	assert.Equal(t, "rate_limited", report.SourcesFailed[0].Reason)
}
