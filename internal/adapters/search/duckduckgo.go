// Package search implements the enrichment Searcher over the DuckDuckGo HTML
// endpoint.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/okian/painpoint/internal/enrich"
)

// DefaultEndpoint is the no-script DuckDuckGo results page.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes result blocks from the HTML endpoint.
type DuckDuckGo struct {
	client     *resty.Client
	endpoint   string
	maxResults int
}

// Option configures DuckDuckGo.
type Option func(*DuckDuckGo)

// WithEndpoint overrides the results page URL.
func WithEndpoint(u string) Option {
	return func(d *DuckDuckGo) {
		if u != "" {
			d.endpoint = u
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *DuckDuckGo) {
		if ua != "" {
			d.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *DuckDuckGo) {
		if t > 0 {
			d.client.SetTimeout(t)
		}
	}
}

// WithMaxResults caps the hits returned per query.
func WithMaxResults(n int) Option {
	return func(d *DuckDuckGo) {
		if n > 0 {
			d.maxResults = n
		}
	}
}

// NewDuckDuckGo builds the searcher.
func NewDuckDuckGo(opts ...Option) *DuckDuckGo {
	d := &DuckDuckGo{
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", "Mozilla/5.0 (compatible; painpoint-scanner/1.0)"),
		endpoint:   DefaultEndpoint,
		maxResults: 10,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ enrich.Searcher = (*DuckDuckGo)(nil)

// Search posts query to the endpoint and parses the result blocks.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]enrich.Hit, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetFormData(map[string]string{"q": query}).
		Post(d.endpoint)
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return d.parse(doc), nil
}

func (d *DuckDuckGo) parse(doc *goquery.Document) []enrich.Hit {
	var hits []enrich.Hit
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		a := s.Find(".result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		target := ResolveLink(href)
		if target == "" {
			return true
		}
		hits = append(hits, enrich.Hit{
			Title:   strings.TrimSpace(a.Text()),
			URL:     target,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(hits) < d.maxResults
	})
	return hits
}

// ResolveLink unwraps DuckDuckGo's /l/?uddg= redirect links. Protocol
// relative links get https. Anything that is not absolute is dropped.
func ResolveLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
