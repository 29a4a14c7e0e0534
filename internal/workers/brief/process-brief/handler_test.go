package processbrief

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/validation"
	"agency-assistant/internal/common/workerpool"
	"agency-assistant/internal/models"
	extractpdf "agency-assistant/internal/workers/brief/extract-pdf"
	extractsections "agency-assistant/internal/workers/brief/extract-sections"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaDir = "../../../../schemas"

const happyBrief = "TITRE: Campagne Été\nProblème: Notoriété faible\nObjectifs: A; B\nKPIs: +10% reach; +5k followers"

// ==========================
// Test helpers
// ==========================

type pageBackend struct {
	pages []string
}

func (b pageBackend) Name() string { return "pages" }

func (b pageBackend) ExtractPages([]byte) ([]string, error) { return b.pages, nil }

func newTestHandler(t *testing.T, config *Config, pages ...string) *Handler {
	t.Helper()
	registry, err := validation.LoadRegistry(schemaDir, validation.RequiredSchemas...)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	pdf := extractpdf.NewHandler(extractpdf.LoadConfig(), pageBackend{pages: pages}, workerpool.New(2), log)
	sections := extractsections.NewHandler(extractsections.LoadConfig(), log)
	return NewHandler(config, pdf, sections, registry, log)
}

func writePDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "campagne.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))
	return path
}

// ==========================
// Execute
// ==========================

func TestExecute_HappyPath(t *testing.T) {
	dir := t.TempDir()
	h := newTestHandler(t, nil, happyBrief, "")

	result, err := h.Execute(context.Background(), &Input{Path: writePDF(t, dir)})
	require.NoError(t, err)

	assert.Equal(t, models.Brief{
		Title:      "Campagne Été",
		Problem:    "Notoriété faible",
		Objectives: []string{"A", "B"},
		KPIs:       []string{"+10% reach", "+5k followers"},
	}, result.Brief)
	assert.Equal(t, 2, result.Metadata.Pages)
	assert.Equal(t, []int{2}, result.Metadata.EmptyPages)
	assert.Empty(t, result.Metadata.AutoDefaultedSections)
	assert.Equal(t, "brief", result.Metadata.Schema)
}

func TestExecute_FrenchSchemaRoundTrip(t *testing.T) {
	h := newTestHandler(t, nil)

	result, err := h.Execute(context.Background(), &Input{Content: happyBrief, SchemaName: "brief_fr"})
	require.NoError(t, err)
	assert.Equal(t, "Campagne Été", result.Brief.Title)
	assert.Equal(t, []string{"A", "B"}, result.Brief.Objectives)
	assert.Equal(t, "text", result.Metadata.Source)
	assert.Zero(t, result.Metadata.Pages)
}

func TestExecute_Failures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing path", func(t *testing.T) {
		_, err := newTestHandler(t, nil, "x").Execute(context.Background(), &Input{Path: filepath.Join(dir, "absent.pdf")})
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("empty pdf", func(t *testing.T) {
		_, err := newTestHandler(t, nil, "", " ").Execute(context.Background(), &Input{Path: writePDF(t, dir)})
		se := apperrors.Normalize(err)
		assert.Equal(t, apperrors.KindEmptyDocument, se.Kind)
		assert.Equal(t, apperrors.ErrCodeExtractionFailed, se.Code)
	})

	t.Run("no input", func(t *testing.T) {
		_, err := newTestHandler(t, nil).Execute(context.Background(), &Input{})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("unknown schema", func(t *testing.T) {
		_, err := newTestHandler(t, nil).Execute(context.Background(), &Input{Content: happyBrief, SchemaName: "nope"})
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func TestExecute_MissingProblem(t *testing.T) {
	text := "Titre: Campagne\nObjectifs: A\nKPIs: K"

	t.Run("fails loudly by default", func(t *testing.T) {
		_, err := newTestHandler(t, nil).Execute(context.Background(), &Input{Content: text})
		se := apperrors.Normalize(err)
		assert.Equal(t, apperrors.KindValidation, se.Kind)
		assert.Equal(t, apperrors.ErrCodeIncompleteBrief, se.Code)
		assert.Equal(t, []string{models.SectionProblem}, se.Paths())
	})

	t.Run("auto default flags the section", func(t *testing.T) {
		enabled := true
		result, err := newTestHandler(t, nil).Execute(context.Background(), &Input{Content: text, AutoDefault: &enabled})
		require.NoError(t, err)
		assert.Equal(t, "Problem not specified", result.Brief.Problem)
		assert.Equal(t, []string{models.SectionProblem}, result.Metadata.AutoDefaultedSections)
	})
}

func TestExecute_ValidationErrorNamesFirstFivePaths(t *testing.T) {
	h := newTestHandler(t, nil)
	require.NoError(t, h.registry.Register("strict", map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []interface{}{"audience", "brand", "channels", "format", "persona", "tone"},
	}))

	_, err := h.Execute(context.Background(), &Input{Content: happyBrief, SchemaName: "strict"})
	se := apperrors.Normalize(err)
	require.Equal(t, apperrors.KindValidation, se.Kind)
	assert.Len(t, se.Fields, 6)
	assert.Contains(t, se.Details, "paths: audience, brand, channels, format, persona")
	assert.NotContains(t, se.Details, "tone")
}

func TestExecute_WritesOutputOnlyOnSuccess(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	path := writePDF(t, dir)

	result, err := newTestHandler(t, nil, happyBrief).Execute(context.Background(), &Input{Path: path, OutputDir: out})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "campagne_brief.json"))
	require.NoError(t, err)
	var saved models.BriefResult
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, result.Brief, saved.Brief)

	failed := filepath.Join(dir, "failed")
	_, err = newTestHandler(t, nil, "").Execute(context.Background(), &Input{Path: path, OutputDir: failed})
	require.Error(t, err)
	_, statErr := os.Stat(failed)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".brief-"), "temp file left behind")
	}
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestHandler(t, nil).Execute(ctx, &Input{Content: happyBrief})
	assert.Equal(t, apperrors.KindCancelled, apperrors.KindOf(err))
}

func TestOutputFileName(t *testing.T) {
	assert.Equal(t, "brief_2025_brief.json", OutputFileName("/tmp/brief_2025.pdf", "ignored"))
	assert.Equal(t, "campagne-ete_brief.json", OutputFileName("", "Campagne Été"))
	assert.Equal(t, "brief_brief.json", OutputFileName("", "!!!"))
}
