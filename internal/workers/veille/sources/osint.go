package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/resilience"
	"agency-assistant/internal/models"
)

const osintEndpoint = "elasticsearch"

// OSINT searches an Elasticsearch index of registry and open-source
// records. The target is the search expression.
type OSINT struct {
	client   *elasticsearch.Client
	index    string
	breakers *resilience.Breakers
}

// NewOSINT returns nil without a client so the kind stays unregistered.
func NewOSINT(client *elasticsearch.Client, index string, breakers *resilience.Breakers) *OSINT {
	if client == nil {
		return nil
	}
	if index == "" {
		index = "osint"
	}
	if breakers == nil {
		breakers = resilience.NewBreakers(5, time.Minute, nil)
	}
	return &OSINT{client: client, index: index, breakers: breakers}
}

type osintDoc struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Content     string   `json:"content"`
	URL         string   `json:"url"`
	PublishedAt string   `json:"published_at"`
	Registry    string   `json:"registry"`
	Tags        []string `json:"tags"`
}

type osintResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source osintDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (a *OSINT) Kind() models.SourceKind { return models.KindOSINT }

func (a *OSINT) Endpoint(models.SourceDescriptor) string { return "osint:" + a.index }

func buildOSINTQuery(target string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  target,
				"fields": []string{"title^3", "summary^2", "content", "tags"},
				"type":   "best_fields",
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"published_at": map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
		},
	}
}

func (a *OSINT) Fetch(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error) {
	body, err := json.Marshal(buildOSINTQuery(desc.Target))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	size := limit
	if size <= 0 || size > 100 {
		size = 100
	}
	req := esapi.SearchRequest{
		Index: []string{a.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	var resp osintResponse
	err = a.breakers.Execute(osintEndpoint, func() error {
		res, err := req.Do(ctx, a.client)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperrors.NewNetworkError(osintEndpoint, err)
		}
		defer res.Body.Close()

		switch {
		case res.StatusCode == http.StatusTooManyRequests:
			return apperrors.NewRateLimitedError(osintEndpoint, res.Header.Get("Retry-After"))
		case res.StatusCode == http.StatusNotFound:
			return apperrors.NewUpstreamError(osintEndpoint, res.StatusCode, "index "+a.index+" not found")
		case res.IsError():
			return apperrors.NewUpstreamError(osintEndpoint, res.StatusCode, res.String())
		}
		if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
			return apperrors.NewInvalidFormatError("search response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.VeilleItem, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		doc := hit.Source
		item := models.VeilleItem{
			Source:     desc.Name(),
			SourceType: models.SourceOSINT,
			Title:      collapse(doc.Title),
			Snippet:    plainText(doc.Summary),
			URL:        doc.URL,
			Content:    plainText(doc.Content),
			Metadata: models.NormalizeMetadata(map[string]interface{}{
				"doc_id":   hit.ID,
				"score":    hit.Score,
				"registry": doc.Registry,
				"index":    a.index,
				"tags":     strings.Join(doc.Tags, ", "),
			}),
		}
		if t, err := time.Parse(time.RFC3339, doc.PublishedAt); err == nil {
			t = t.UTC()
			item.PublishedAt = &t
		}
		items = append(items, item)
	}
	return capItems(items, limit), nil
}
