package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
)

// Social queries a platform search API. All descriptors share the API host,
// so the collector rate-limits them together.
type Social struct {
	fetcher Fetcher
	baseURL string
	token   string
}

// NewSocial returns nil when the token is missing so the kind stays
// unregistered.
func NewSocial(fetcher Fetcher, baseURL, token string) *Social {
	if token == "" || baseURL == "" {
		return nil
	}
	return &Social{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

type socialResponse struct {
	Data []socialPost `json:"data"`
}

type socialPost struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	Likes     int    `json:"likes"`
	Shares    int    `json:"shares"`
	Lang      string `json:"lang"`
}

func (a *Social) Kind() models.SourceKind { return models.KindSocial }

func (a *Social) Endpoint(models.SourceDescriptor) string {
	if u, err := url.Parse(a.baseURL); err == nil && u.Host != "" {
		return "social:" + u.Host
	}
	return "social"
}

func (a *Social) Fetch(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
	q := url.Values{"q": {desc.Target}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	body, err := a.fetcher.Get(ctx, a.baseURL+"/search?"+q.Encode(), map[string]string{
		"Authorization": "Bearer " + a.token,
		"Accept":        "application/json",
	})
	if err != nil {
		return nil, err
	}

	var resp socialResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewInvalidFormatError("social search response", err)
	}

	items := make([]models.VeilleItem, 0, len(resp.Data))
	for _, p := range resp.Data {
		text := collapse(p.Text)
		item := models.VeilleItem{
			Source:     desc.Name(),
			SourceType: models.SourceSocial,
			Title:      headline(text, 80),
			Snippet:    text,
			URL:        p.URL,
			Metadata: models.NormalizeMetadata(map[string]interface{}{
				"post_id": p.ID,
				"author":  p.Author,
				"likes":   p.Likes,
				"shares":  p.Shares,
				"lang":    p.Lang,
				"query":   desc.Target,
			}),
		}
		if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			t = t.UTC()
			item.PublishedAt = &t
		}
		items = append(items, item)
	}
	return capItems(items, limit), nil
}
