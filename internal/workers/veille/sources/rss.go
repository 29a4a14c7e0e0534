package sources

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// RSS reads RSS, Atom and JSON feeds. Each feed host is its own endpoint.
type RSS struct {
	fetcher Fetcher
}

func NewRSS(fetcher Fetcher) *RSS {
	return &RSS{fetcher: fetcher}
}

func (a *RSS) Kind() models.SourceKind { return models.KindRSS }

func (a *RSS) Endpoint(models.SourceDescriptor) string { return "" }

func (a *RSS) Fetch(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
	body, err := a.fetcher.Get(ctx, desc.Target, map[string]string{"Accept": feedAccept})
	if err != nil {
		return nil, err
	}

	// gofeed parsers keep per-document state
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInvalidFormatError("feed", err)
	}

	items := make([]models.VeilleItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		item := models.VeilleItem{
			Source:      desc.Name(),
			SourceType:  models.SourceRSS,
			Title:       collapse(it.Title),
			Snippet:     plainText(it.Description),
			URL:         strings.TrimSpace(it.Link),
			Content:     plainText(it.Content),
			PublishedAt: firstTime(it.PublishedParsed, it.UpdatedParsed),
		}
		meta := map[string]interface{}{"feed": collapse(feed.Title)}
		if it.Author != nil {
			meta["author"] = it.Author.Name
		}
		if len(it.Categories) > 0 {
			meta["categories"] = strings.Join(it.Categories, ", ")
		}
		if it.GUID != "" {
			meta["guid"] = it.GUID
		}
		item.Metadata = models.NormalizeMetadata(meta)
		items = append(items, item)
	}
	return capItems(items, limit), nil
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil && !t.IsZero() {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
