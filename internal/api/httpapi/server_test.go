package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/models"
	"agency-assistant/internal/orchestrator"
)

type fakeService struct {
	mu          sync.Mutex
	brief       orchestrator.BriefRequest
	veille      orchestrator.VeilleRequest
	analyse     orchestrator.AnalyseRequest
	deliverable orchestrator.DeliverableRequest
	err         *apperrors.StandardError
	panicMsg    string
}

func (f *fakeService) ProcessBrief(_ context.Context, req orchestrator.BriefRequest) *models.Envelope[models.BriefResult] {
	f.mu.Lock()
	f.brief = req
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return &models.Envelope[models.BriefResult]{Error: f.err, ProcessingTimeMS: 3}
	}
	return &models.Envelope[models.BriefResult]{
		Success: true,
		Value:   &models.BriefResult{Brief: models.Brief{Title: "Campagne Été"}},
		Ref:     "brief_1",
	}
}

func (f *fakeService) RunVeille(_ context.Context, req orchestrator.VeilleRequest) *models.Envelope[models.VeilleReport] {
	f.mu.Lock()
	f.veille = req
	f.mu.Unlock()
	return &models.Envelope[models.VeilleReport]{Success: true, Value: &models.VeilleReport{ID: "r1"}}
}

func (f *fakeService) RunAnalyse(_ context.Context, req orchestrator.AnalyseRequest) *models.Envelope[models.AnalysisResult] {
	f.mu.Lock()
	f.analyse = req
	f.mu.Unlock()
	if f.err != nil {
		return &models.Envelope[models.AnalysisResult]{Error: f.err}
	}
	return &models.Envelope[models.AnalysisResult]{Success: true, Value: &models.AnalysisResult{}}
}

func (f *fakeService) GenerateDeliverable(_ context.Context, req orchestrator.DeliverableRequest) *models.Envelope[models.Deck] {
	f.mu.Lock()
	f.deliverable = req
	f.mu.Unlock()
	return &models.Envelope[models.Deck]{Success: true, Value: &models.Deck{}}
}

func newTestServer(t *testing.T, svc Service, opts Options) http.Handler {
	t.Helper()
	if opts.Version == "" {
		opts.Version = "1.2.3"
	}
	return New(svc, opts, logger.NewTestLogger(t)).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func errorKind(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body, "processing_time_ms")
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "error object expected")
	assert.NotEmpty(t, e["message"])
	return e["kind"].(string)
}

// ===== Health & metrics =====

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeService{}, Options{})
	rec, body := do(t, h, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Contains(t, body, "uptime_s")
}

func TestMetrics(t *testing.T) {
	h := newTestServer(t, &fakeService{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// ===== /brief =====

func TestBrief_Content(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(t, svc, Options{})

	rec, body := do(t, h, http.MethodPost, "/brief", `{"content":"TITRE: X","schema":"brief_fr","timeout_ms":1500}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "brief_1", body["ref"])
	assert.Equal(t, "TITRE: X", svc.brief.Content)
	assert.Equal(t, "brief_fr", svc.brief.Schema)
	assert.Equal(t, 1500*time.Millisecond, svc.brief.Timeout)
}

func TestBrief_PDFBase64(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(t, svc, Options{})
	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))

	rec, _ := do(t, h, http.MethodPost, "/brief", `{"pdf_base64":"`+payload+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("%PDF-1.4"), svc.brief.Data)
}

func TestBrief_RequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
	}{
		{"empty body", "", http.StatusBadRequest, "validation"},
		{"malformed json", `{"content":`, http.StatusBadRequest, "invalid_format"},
		{"no input", `{"schema":"brief"}`, http.StatusBadRequest, "validation"},
		{"bad base64", `{"pdf_base64":"%%%"}`, http.StatusBadRequest, "invalid_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeService{}, Options{})
			rec, body := do(t, h, http.MethodPost, "/brief", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantKind, errorKind(t, body))
		})
	}
}

func TestBrief_BodyTooLarge(t *testing.T) {
	h := newTestServer(t, &fakeService{}, Options{MaxBodyBytes: 32})
	rec, body := do(t, h, http.MethodPost, "/brief", `{"content":"`+strings.Repeat("x", 100)+`"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(t, body))
	assert.Contains(t, body["error"].(map[string]interface{})["details"], "exceeds 32 bytes")
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  *apperrors.StandardError
		want int
	}{
		{apperrors.NewNotFoundError("/tmp/x.pdf"), http.StatusNotFound},
		{apperrors.NewValidationError("brief", []apperrors.FieldError{{Path: "problem", Message: "required"}}), http.StatusBadRequest},
		{apperrors.NewInvalidPDFError(errors.New("bad xref")), http.StatusBadRequest},
		{apperrors.NewTimeoutError("process_brief", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{apperrors.NewRateLimitedError("llm", "quota"), http.StatusTooManyRequests},
		{apperrors.NewEmptyDocumentError("no text"), http.StatusInternalServerError},
		{apperrors.NewInternalError(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			h := newTestServer(t, &fakeService{err: tt.err}, Options{})
			rec, body := do(t, h, http.MethodPost, "/brief", `{"content":"x"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, string(tt.err.Kind), errorKind(t, body))
		})
	}
}

func TestValidationErrorListsPaths(t *testing.T) {
	svc := &fakeService{err: apperrors.NewValidationError("brief", []apperrors.FieldError{{Path: "kpis", Message: "required"}})}
	h := newTestServer(t, svc, Options{})

	_, body := do(t, h, http.MethodPost, "/brief", `{"content":"x"}`)

	fields := body["error"].(map[string]interface{})["errors"].([]interface{})
	require.Len(t, fields, 1)
	assert.Equal(t, "kpis", fields[0].(map[string]interface{})["path"])
}

func TestPanicBecomesInternal(t *testing.T) {
	h := newTestServer(t, &fakeService{panicMsg: "nil map"}, Options{})
	rec, body := do(t, h, http.MethodPost, "/brief", `{"content":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", errorKind(t, body))
	assert.NotEmpty(t, body["error"].(map[string]interface{})["trace_id"])
}

// ===== /veille, /analyse, /deliverable =====

func TestVeille_MapsRequest(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(t, svc, Options{})

	rec, body := do(t, h, http.MethodPost, "/veille",
		`{"sources":[{"id":"a","kind":"rss","target":"https://a.test/feed","required":true}],"deadline_ms":500,"max_items_per_source":7}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	require.Len(t, svc.veille.Sources, 1)
	assert.Equal(t, models.KindRSS, svc.veille.Sources[0].Kind)
	assert.True(t, svc.veille.Sources[0].Required)
	assert.Equal(t, 500*time.Millisecond, svc.veille.Deadline)
	assert.Equal(t, 7, svc.veille.MaxItemsPerSource)
}

func TestAnalyse_MapsRequest(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(t, svc, Options{})

	rec, _ := do(t, h, http.MethodPost, "/analyse", `{"corpus_ref":"report_1","type":"trends","competitors":["Acme"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "report_1", svc.analyse.CorpusRef)
	assert.Equal(t, "trends", svc.analyse.Type)
	assert.Equal(t, []string{"Acme"}, svc.analyse.Competitors)
}

func TestAnalyse_NotFound(t *testing.T) {
	svc := &fakeService{err: apperrors.NewReferenceNotFoundError("report", "report_x")}
	h := newTestServer(t, svc, Options{})

	rec, body := do(t, h, http.MethodPost, "/analyse", `{"corpus_ref":"report_x"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, body))
}

func TestDeliverable(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(t, svc, Options{})

	rec, _ := do(t, h, http.MethodPost, "/deliverable", `{"brief_ref":"brief_1","analysis_ref":"analysis_1","style":{"primary":"#000000"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "brief_1", svc.deliverable.BriefRef)
	assert.Equal(t, "analysis_1", svc.deliverable.AnalysisRef)
	assert.Equal(t, "#000000", svc.deliverable.Style.Primary)

	rec, body := do(t, h, http.MethodPost, "/deliverable", `{"analysis_ref":"analysis_1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(t, body))
}

// ===== Middleware =====

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, &fakeService{}, Options{RateLimit: 0.001, RateBurst: 1})

	rec, _ := do(t, h, http.MethodPost, "/brief", `{"content":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodPost, "/brief", `{"content":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorKind(t, body))

	rec, _ = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtraRoutes(t *testing.T) {
	extra := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	h := newTestServer(t, &fakeService{}, Options{Routes: []Route{{Method: http.MethodPost, Path: "/slack/commands", Handler: extra}}})

	rec, _ := do(t, h, http.MethodPost, "/slack/commands", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t, &fakeService{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
