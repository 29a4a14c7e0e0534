package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
	"agency-assistant/internal/orchestrator"
)

type briefBody struct {
	FilePath    string `json:"file_path"`
	PDFBase64   string `json:"pdf_base64"`
	Content     string `json:"content"`
	Schema      string `json:"schema"`
	AutoDefault *bool  `json:"auto_default"`
	TimeoutMS   int    `json:"timeout_ms"`
}

type veilleBody struct {
	Sources           []models.SourceDescriptor `json:"sources"`
	DeadlineMS        int                       `json:"deadline_ms"`
	MaxItemsPerSource int                       `json:"max_items_per_source"`
	TimeoutMS         int                       `json:"timeout_ms"`
}

type analyseBody struct {
	CorpusRef   string   `json:"corpus_ref"`
	CorpusPath  string   `json:"corpus_path"`
	Texts       []string `json:"texts"`
	Type        string   `json:"type"`
	Competitors []string `json:"competitors"`
	TimeoutMS   int      `json:"timeout_ms"`
}

type deliverableBody struct {
	BriefRef    string                 `json:"brief_ref"`
	Brief       *models.Brief          `json:"brief"`
	AnalysisRef string                 `json:"analysis_ref"`
	Analysis    *models.AnalysisResult `json:"analysis"`
	Style       models.Style           `json:"style"`
	Sector      string                 `json:"sector"`
	TimeoutMS   int                    `json:"timeout_ms"`
}

func (s *Server) brief(c *gin.Context) {
	start := s.now()
	var body briefBody
	if err := s.bind(c, &body); err != nil {
		s.fail(c, start, err)
		return
	}

	req := orchestrator.BriefRequest{
		Path:        body.FilePath,
		Content:     body.Content,
		Schema:      body.Schema,
		AutoDefault: body.AutoDefault,
		Timeout:     millis(body.TimeoutMS),
	}
	if body.PDFBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(body.PDFBase64)
		if err != nil {
			s.fail(c, start, apperrors.NewInvalidFormatError("base64", err))
			return
		}
		req.Data = data
	}
	if req.Path == "" && req.Data == nil && req.Content == "" {
		s.fail(c, start, apperrors.NewInvalidRequestError("one of file_path, pdf_base64 or content is required"))
		return
	}
	respond(c, s.svc.ProcessBrief(c.Request.Context(), req))
}

func (s *Server) veille(c *gin.Context) {
	start := s.now()
	var body veilleBody
	if err := s.bind(c, &body); err != nil {
		s.fail(c, start, err)
		return
	}
	respond(c, s.svc.RunVeille(c.Request.Context(), orchestrator.VeilleRequest{
		Sources:           body.Sources,
		Deadline:          millis(body.DeadlineMS),
		MaxItemsPerSource: body.MaxItemsPerSource,
		Timeout:           millis(body.TimeoutMS),
	}))
}

func (s *Server) analyse(c *gin.Context) {
	start := s.now()
	var body analyseBody
	if err := s.bind(c, &body); err != nil {
		s.fail(c, start, err)
		return
	}
	respond(c, s.svc.RunAnalyse(c.Request.Context(), orchestrator.AnalyseRequest{
		CorpusRef:   body.CorpusRef,
		CorpusPath:  body.CorpusPath,
		Texts:       body.Texts,
		Type:        body.Type,
		Competitors: body.Competitors,
		Timeout:     millis(body.TimeoutMS),
	}))
}

func (s *Server) deliverable(c *gin.Context) {
	start := s.now()
	var body deliverableBody
	if err := s.bind(c, &body); err != nil {
		s.fail(c, start, err)
		return
	}
	if body.BriefRef == "" && body.Brief == nil {
		s.fail(c, start, apperrors.NewInvalidRequestError("brief_ref or brief is required"))
		return
	}
	respond(c, s.svc.GenerateDeliverable(c.Request.Context(), orchestrator.DeliverableRequest{
		BriefRef:    body.BriefRef,
		Brief:       body.Brief,
		AnalysisRef: body.AnalysisRef,
		Analysis:    body.Analysis,
		Style:       body.Style,
		Sector:      body.Sector,
		Timeout:     millis(body.TimeoutMS),
	}))
}

// bind decodes the JSON body into dst. Oversized and malformed bodies are
// request errors.
func (s *Server) bind(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return apperrors.NewInvalidRequestError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, io.EOF):
		return apperrors.NewInvalidRequestError("request body is required")
	default:
		return apperrors.NewInvalidFormatError("json", err)
	}
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
