package processbrief

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/validation"
	"agency-assistant/internal/models"
	extractpdf "agency-assistant/internal/workers/brief/extract-pdf"
	extractsections "agency-assistant/internal/workers/brief/extract-sections"
)

const TaskType = "process-brief"

type Handler struct {
	config   *Config
	pdf      *extractpdf.Handler
	sections *extractsections.Handler
	registry *validation.Registry
	logger   logger.Logger
}

func NewHandler(config *Config, pdf *extractpdf.Handler, sections *extractsections.Handler, registry *validation.Registry, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:   config,
		pdf:      pdf,
		sections: sections,
		registry: registry,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute runs path resolution, PDF extraction, section recovery and schema
// normalization. Nothing is written to OutputDir unless every step succeeds.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.BriefResult, error) {
	schemaName := input.SchemaName
	if schemaName == "" {
		schemaName = h.config.SchemaName
	}
	autoDefault := h.config.AutoDefault
	if input.AutoDefault != nil {
		autoDefault = *input.AutoDefault
	}

	log := h.logger.With(map[string]interface{}{"source": input.source(), "schema": schemaName})
	start := time.Now()

	text := input.Content
	meta := models.BriefMetadata{Schema: schemaName, Source: input.source(), AutoDefaultedSections: []string{}}
	if text == "" {
		doc, err := h.extract(ctx, input)
		if err != nil {
			return nil, err
		}
		text = doc.Text
		meta.Pages = doc.PageCount
		meta.EmptyPages = doc.EmptyPages
	}
	meta.ExtractionTimeMS = time.Since(start).Milliseconds()

	if err := yield(ctx); err != nil {
		return nil, err
	}

	sections, err := h.sections.Execute(ctx, &extractsections.Input{Text: text})
	if err != nil {
		return nil, err
	}
	if len(sections.AutoDefaulted) > 0 {
		if !autoDefault {
			log.Warn("brief incomplete", map[string]interface{}{"missing": sections.AutoDefaulted})
			return nil, apperrors.NewIncompleteBriefError(sections.AutoDefaulted)
		}
		meta.AutoDefaultedSections = sections.AutoDefaulted
	}

	if err := yield(ctx); err != nil {
		return nil, err
	}

	normalized, err := h.registry.Normalize(schemaName, sections.Sections)
	if err != nil {
		return nil, h.withErrorPaths(err)
	}
	brief, err := h.registry.ToBrief(schemaName, normalized)
	if err != nil {
		return nil, err
	}

	result := &models.BriefResult{Brief: brief, Metadata: meta}

	if input.OutputDir != "" {
		if err := h.write(input, result); err != nil {
			return nil, err
		}
	}

	log.Info("brief processed", map[string]interface{}{
		"pages":         meta.Pages,
		"autoDefaulted": meta.AutoDefaultedSections,
		"durationMs":    time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (h *Handler) extract(ctx context.Context, input *Input) (*extractpdf.Document, error) {
	pdfInput := &extractpdf.Input{Data: input.Data}
	if input.Data == nil {
		if input.Path == "" {
			return nil, apperrors.NewInvalidRequestError("one of path, pdf bytes or content is required")
		}
		abs, err := filepath.Abs(input.Path)
		if err != nil {
			return nil, apperrors.NewInvalidRequestError(err.Error())
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(input.Path)
		}
		pdfInput.Path = abs
	}

	doc, err := h.pdf.Execute(ctx, pdfInput)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindEmptyDocument {
			return nil, apperrors.NewExtractionFailedError(err)
		}
		return nil, err
	}
	return doc, nil
}

// withErrorPaths names the first failing paths in the error details; the
// full list stays in Fields.
func (h *Handler) withErrorPaths(err error) error {
	se := apperrors.Normalize(err)
	if se.Kind != apperrors.KindValidation || len(se.Fields) == 0 {
		return se
	}
	paths := se.Paths()
	if len(paths) > h.config.MaxErrorPaths {
		paths = paths[:h.config.MaxErrorPaths]
	}
	for i, p := range paths {
		if p == "" {
			paths[i] = "$"
		}
	}
	se.Details = fmt.Sprintf("%s; paths: %s", se.Details, strings.Join(paths, ", "))
	return se
}

func (h *Handler) write(input *Input, result *models.BriefResult) error {
	if err := h.registry.ValidateDocument(h.config.OutputSchemaName, result); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	if err := os.MkdirAll(input.OutputDir, 0o755); err != nil {
		return apperrors.NewStorageError("mkdir", err)
	}
	target := filepath.Join(input.OutputDir, OutputFileName(input.Path, result.Brief.Title))
	tmp, err := os.CreateTemp(input.OutputDir, ".brief-*.json")
	if err != nil {
		return apperrors.NewStorageError("write", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewStorageError("write", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("write", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return apperrors.NewStorageError("rename", err)
	}
	return nil
}

// OutputFileName is "<stem>_brief.json" from the source path, or from the
// brief title when the brief came from bytes or text.
func OutputFileName(path, title string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if path == "" || stem == "" || stem == "." {
		stem = slug(title)
	}
	if stem == "" {
		stem = "brief"
	}
	return stem + "_brief.json"
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(validation.FoldKey(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func yield(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewTimeoutError(TaskType, ctx.Err())
		}
		return apperrors.NewCancelledError(TaskType)
	default:
		return nil
	}
}
