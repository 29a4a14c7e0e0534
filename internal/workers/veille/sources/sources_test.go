package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "agency-assistant/internal/common/errors"
	commonhttp "agency-assistant/internal/common/http"
	"agency-assistant/internal/common/logger"
	"agency-assistant/internal/models"
)

func newFetcher(t *testing.T) *commonhttp.Client {
	t.Helper()
	return commonhttp.NewClient(commonhttp.Options{Timeout: 5 * time.Second}, logger.NewTestLogger(t))
}

// ==========================
// Registry
// ==========================

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewWeb(nil, 0), NewRSS(nil))
	assert.Equal(t, []string{"rss", "web"}, r.Kinds())

	a, err := r.Get(models.KindRSS)
	require.NoError(t, err)
	assert.Equal(t, models.KindRSS, a.Kind())

	_, err = r.Get(models.KindOSINT)
	assert.Equal(t, apperrors.KindInvalidFormat, apperrors.KindOf(err))
}

// ==========================
// RSS
// ==========================

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Marketing Weekly</title>
  <item>
    <title>Brand launches summer campaign</title>
    <link>https://news.example/summer</link>
    <description>&lt;p&gt;A &lt;b&gt;bold&lt;/b&gt; move&lt;/p&gt;</description>
    <pubDate>Mon, 02 Jun 2025 08:00:00 +0200</pubDate>
    <category>retail</category>
    <category>campaigns</category>
  </item>
  <item>
    <title>Competitor cuts prices</title>
    <link>https://news.example/prices</link>
    <description>Plain text</description>
  </item>
  <item>
    <title>Third story</title>
    <link>https://news.example/third</link>
  </item>
</channel>
</rss>`

func TestRSS_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "application/rss+xml")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, feedXML)
	}))
	defer srv.Close()

	a := NewRSS(newFetcher(t))
	got, err := a.Fetch(context.Background(), models.SourceDescriptor{ID: "weekly", Kind: models.KindRSS, Target: srv.URL}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "weekly", first.Source)
	assert.Equal(t, models.SourceRSS, first.SourceType)
	assert.Equal(t, "Brand launches summer campaign", first.Title)
	assert.Equal(t, "A bold move", first.Snippet)
	assert.Equal(t, "https://news.example/summer", first.URL)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC).Equal(*first.PublishedAt))
	assert.Equal(t, "retail, campaigns", first.Metadata["categories"])
	assert.Equal(t, "Marketing Weekly", first.Metadata["feed"])

	assert.Nil(t, got[1].PublishedAt)
	assert.Empty(t, a.Endpoint(models.SourceDescriptor{}))
}

func TestRSS_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "this is not a feed")
	}))
	defer srv.Close()

	a := NewRSS(newFetcher(t))

	_, err := a.Fetch(context.Background(), models.SourceDescriptor{Kind: models.KindRSS, Target: srv.URL + "/broken"}, 0)
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))

	_, err = a.Fetch(context.Background(), models.SourceDescriptor{Kind: models.KindRSS, Target: srv.URL + "/garbage"}, 0)
	assert.Equal(t, apperrors.KindInvalidFormat, apperrors.KindOf(err))
}

// ==========================
// Web
// ==========================

const articleHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Competitor opens flagship store</title>
  <meta property="og:site_name" content="Retail Daily">
</head>
<body>
  <nav><a href="/">Home</a> <a href="/about">About</a></nav>
  <article>
    <h1>Competitor opens flagship store</h1>
    <p>The competitor opened a flagship store in the city centre this week, betting on an experiential format that mixes product demonstrations with a coffee corner and weekend workshops for families.</p>
    <p>Analysts expect the opening to raise awareness in a segment where the brand has struggled, and the company says it plans to replicate the concept in three more cities before the end of the year if footfall targets are met.</p>
    <p>Local shoppers interviewed on the opening day praised the staff and the layout, while some regretted the prices, which remain above the average of the district for comparable products and services.</p>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

func TestWeb_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, articleHTML)
	}))
	defer srv.Close()

	a := NewWeb(newFetcher(t), 0)
	got, err := a.Fetch(context.Background(), models.SourceDescriptor{Kind: models.KindWeb, Target: srv.URL + "/store"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	item := got[0]
	assert.Equal(t, srv.URL+"/store", item.Source)
	assert.Equal(t, models.SourceWeb, item.SourceType)
	assert.Contains(t, item.Title, "flagship store")
	assert.Contains(t, item.Content, "experiential format")
	assert.Equal(t, srv.URL+"/store", item.URL)
	assert.True(t, item.Valid())
}

func TestWeb_InvalidURL(t *testing.T) {
	_, err := NewWeb(newFetcher(t), 0).Fetch(context.Background(), models.SourceDescriptor{Kind: models.KindWeb, Target: "not a url"}, 0)
	assert.Equal(t, apperrors.KindInvalidFormat, apperrors.KindOf(err))
}

// ==========================
// Social
// ==========================

func TestSocial_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "#summer", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": "1", "author": "ana", "text": "Loving the #summer drop. Best collection yet", "url": "https://social.example/p/1", "created_at": "2025-06-01T10:00:00Z", "likes": 42, "shares": 3},
				{"id": "2", "author": "bo", "text": "meh", "url": "https://social.example/p/2"},
			},
		})
	}))
	defer srv.Close()

	a := NewSocial(newFetcher(t), srv.URL+"/", "secret")
	require.NotNil(t, a)
	assert.True(t, strings.HasPrefix(a.Endpoint(models.SourceDescriptor{}), "social:127.0.0.1"))

	got, err := a.Fetch(context.Background(), models.SourceDescriptor{ID: "ig", Kind: models.KindSocial, Target: "#summer"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ig", got[0].Source)
	assert.Equal(t, "Loving the #summer drop", got[0].Title)
	assert.Equal(t, "Loving the #summer drop. Best collection yet", got[0].Snippet)
	assert.Equal(t, 42.0, got[0].Metadata["likes"])
	assert.Equal(t, "ana", got[0].Metadata["author"])
	require.NotNil(t, got[0].PublishedAt)
	assert.Nil(t, got[1].PublishedAt)
}

func TestSocial_RequiresToken(t *testing.T) {
	assert.Nil(t, NewSocial(nil, "https://api.example", ""))
	assert.Nil(t, NewSocial(nil, "", "token"))
}

func TestSocial_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewSocial(newFetcher(t), srv.URL, "secret").Fetch(context.Background(), models.SourceDescriptor{Kind: models.KindSocial, Target: "x"}, 0)
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))
}

// ==========================
// OSINT
// ==========================

func newESServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *elasticsearch.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return srv, client
}

func TestOSINT_Fetch(t *testing.T) {
	srv, client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/registry/_search", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("size"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		match := body["query"].(map[string]interface{})["multi_match"].(map[string]interface{})
		assert.Equal(t, "acme retail", match["query"])

		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[
			{"_id":"doc-1","_score":2.5,"_source":{
				"title":"ACME Retail SAS","summary":"<p>Company filing</p>","url":"https://registry.example/acme",
				"published_at":"2024-11-05T00:00:00Z","registry":"company-house","tags":["retail","france"]}}]}}`)
	})
	defer srv.Close()

	a := NewOSINT(client, "registry", nil)
	got, err := a.Fetch(context.Background(), models.SourceDescriptor{ID: "registry", Kind: models.KindOSINT, Target: "acme retail"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	item := got[0]
	assert.Equal(t, models.SourceOSINT, item.SourceType)
	assert.Equal(t, "ACME Retail SAS", item.Title)
	assert.Equal(t, "Company filing", item.Snippet)
	assert.Equal(t, "retail, france", item.Metadata["tags"])
	assert.Equal(t, 2.5, item.Metadata["score"])
	assert.Equal(t, "osint:registry", a.Endpoint(models.SourceDescriptor{}))
}

func TestOSINT_Errors(t *testing.T) {
	status := http.StatusNotFound
	srv, client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"}}`)
	})
	defer srv.Close()

	a := NewOSINT(client, "missing", nil)
	desc := models.SourceDescriptor{Kind: models.KindOSINT, Target: "x"}

	_, err := a.Fetch(context.Background(), desc, 0)
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))

	status = http.StatusTooManyRequests
	_, err = a.Fetch(context.Background(), desc, 0)
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))

	assert.Nil(t, NewOSINT(nil, "x", nil))
}

// ==========================
// Text helpers
// ==========================

func TestPlainTextAndHeadline(t *testing.T) {
	assert.Equal(t, "Hello world", plainText("<div>Hello <em>world</em></div>"))
	assert.Equal(t, "Fish & chips", plainText("Fish &amp; chips"))
	assert.Equal(t, "a b", plainText("  a \n b "))

	assert.Equal(t, "Short one", headline("Short one. Then more text", 80))
	long := strings.Repeat("word ", 30)
	h := headline(long, 20)
	assert.True(t, strings.HasSuffix(h, "..."))
	assert.LessOrEqual(t, len([]rune(h)), 23)
}
