package extractpdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/common/workerpool"
)

const TaskType = "extract-pdf"

var pdfMagic = []byte("%PDF")

type Handler struct {
	config  *Config
	backend Backend
	pool    *workerpool.Pool
	logger  logger.Logger
}

func NewHandler(config *Config, backend Backend, pool *workerpool.Pool, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if backend == nil {
		backend = LedongthucBackend{}
	}
	if pool == nil {
		pool = workerpool.New(0)
	}
	return &Handler{
		config:  config,
		backend: backend,
		pool:    pool,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Document, error) {
	data := input.Data
	if data == nil {
		var err error
		if data, err = h.readFile(input.Path); err != nil {
			return nil, err
		}
	}

	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\n\r \xef\xbb\xbf"), pdfMagic) {
		return nil, apperrors.NewInvalidPDFError(fmt.Errorf("missing %%PDF header"))
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := workerpool.Submit(ctx, h.pool, TaskType, func() ([]string, error) {
		return h.backend.ExtractPages(data)
	})
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindTimeout, apperrors.KindCancelled:
			return nil, err
		}
		h.logger.Warn("pdf parse failed", map[string]interface{}{
			"path":    input.Path,
			"backend": h.backend.Name(),
			"error":   err.Error(),
		})
		return nil, apperrors.NewInvalidPDFError(err)
	}

	doc := &Document{
		Pages:     make([]string, len(raw)),
		PageCount: len(raw),
		Backend:   h.backend.Name(),
	}
	for i, page := range raw {
		doc.Pages[i] = CleanPage(page)
		if !hasPrintable(doc.Pages[i]) {
			doc.Pages[i] = ""
			doc.EmptyPages = append(doc.EmptyPages, i+1)
			h.logger.Warn("page yielded no text", map[string]interface{}{
				"path": input.Path,
				"page": i + 1,
			})
		}
	}
	doc.Text = JoinPages(doc.Pages)

	if !hasPrintable(doc.Text) {
		return nil, apperrors.NewEmptyDocumentError(fmt.Sprintf("%d pages without printable text", doc.PageCount))
	}

	h.logger.Debug("pdf extracted", map[string]interface{}{
		"path":       input.Path,
		"pages":      doc.PageCount,
		"emptyPages": len(doc.EmptyPages),
		"chars":      len(doc.Text),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return doc, nil
}

func (h *Handler) readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, apperrors.NewInvalidRequestError("pdf path or bytes required")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError(path)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if info.IsDir() {
		return nil, apperrors.NewInvalidFormatError("pdf", fmt.Errorf("%s is a directory", path))
	}
	if h.config.MaxFileBytes > 0 && info.Size() > h.config.MaxFileBytes {
		return nil, apperrors.NewInvalidFormatError("pdf", fmt.Errorf("file exceeds %d bytes", h.config.MaxFileBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return data, nil
}
