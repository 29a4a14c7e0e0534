package sources

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
)

// Web turns one page into a single item holding its readable article text.
type Web struct {
	fetcher    Fetcher
	maxContent int
}

func NewWeb(fetcher Fetcher, maxContent int) *Web {
	if maxContent <= 0 {
		maxContent = 20000
	}
	return &Web{fetcher: fetcher, maxContent: maxContent}
}

func (a *Web) Kind() models.SourceKind { return models.KindWeb }

func (a *Web) Endpoint(models.SourceDescriptor) string { return "" }

func (a *Web) Fetch(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
	pageURL, err := url.Parse(desc.Target)
	if err != nil || pageURL.Host == "" {
		return nil, apperrors.NewInvalidFormatError("URL", err)
	}

	body, err := a.fetcher.Get(ctx, desc.Target, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, apperrors.NewInvalidFormatError("web page", err)
	}

	content := strings.TrimSpace(article.TextContent)
	if r := []rune(content); len(r) > a.maxContent {
		content = string(r[:a.maxContent])
	}
	item := models.VeilleItem{
		Source:      desc.Name(),
		SourceType:  models.SourceWeb,
		Title:       collapse(article.Title),
		Snippet:     collapse(article.Excerpt),
		URL:         desc.Target,
		Content:     content,
		PublishedAt: firstTime(article.PublishedTime),
		Metadata: models.NormalizeMetadata(map[string]interface{}{
			"site_name": article.SiteName,
			"byline":    article.Byline,
			"language":  article.Language,
			"length":    article.Length,
		}),
	}
	return capItems([]models.VeilleItem{item}, limit), nil
}
