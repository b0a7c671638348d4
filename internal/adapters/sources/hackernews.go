package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/pkg/logger"
)

// HackerNewsName is the registry name of the HN collector.
const HackerNewsName = "hackernews"

// HackerNews searches the Algolia HN index for each query phrase.
type HackerNews struct {
	client   *resty.Client
	baseURL  string
	queries  []string
	perQuery int
	lookback time.Duration
	now      func() time.Time
	log      logger.Logger
}

// HNOption configures HackerNews.
type HNOption func(*HackerNews)

// WithHNBaseURL points the collector at another Algolia compatible endpoint.
func WithHNBaseURL(u string) HNOption {
	return func(h *HackerNews) { h.baseURL = strings.TrimRight(u, "/") }
}

// WithHNPerQuery sets hitsPerPage.
func WithHNPerQuery(n int) HNOption {
	return func(h *HackerNews) {
		if n > 0 {
			h.perQuery = n
		}
	}
}

// WithHNLookback bounds how old a hit may be.
func WithHNLookback(d time.Duration) HNOption {
	return func(h *HackerNews) {
		if d > 0 {
			h.lookback = d
		}
	}
}

// WithHNTimeout sets the HTTP timeout.
func WithHNTimeout(d time.Duration) HNOption {
	return func(h *HackerNews) {
		if d > 0 {
			h.client.SetTimeout(d)
		}
	}
}

// WithHNClock overrides time.Now.
func WithHNClock(now func() time.Time) HNOption {
	return func(h *HackerNews) { h.now = now }
}

// WithHNLogger sets the logger.
func WithHNLogger(l logger.Logger) HNOption {
	return func(h *HackerNews) { h.log = l }
}

// NewHackerNews builds the collector. queries are the phrases searched.
func NewHackerNews(queries []string, opts ...HNOption) *HackerNews {
	h := &HackerNews{
		client: resty.New().
			SetTimeout(15*time.Second).
			SetHeader("User-Agent", "painpoint-scanner/1.0"),
		baseURL:  "https://hn.algolia.com/api/v1",
		queries:  queries,
		perQuery: 50,
		lookback: 7 * 24 * time.Hour,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HackerNews) Name() string { return HackerNewsName }

type hnResponse struct {
	Hits []hnHit `json:"hits"`
}

type hnHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryTitle  string `json:"story_title"`
	StoryText   string `json:"story_text"`
	CommentText string `json:"comment_text"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
}

// FetchMentions runs one search per query. A query that fails is logged and
// skipped; the collector is unavailable only when every query fails.
func (h *HackerNews) FetchMentions(ctx context.Context) ([]model.RawMention, error) {
	since := h.now().Add(-h.lookback).Unix()
	seen := make(map[string]struct{})
	var (
		out      []model.RawMention
		failures int
		lastErr  error
	)
	for _, q := range h.queries {
		if err := ctx.Err(); err != nil {
			return out, Unavailable(HackerNewsName, err)
		}
		hits, err := h.search(ctx, q, since)
		if err != nil {
			failures++
			lastErr = err
			h.log.Warn(ctx, "hackernews query failed", logger.String("query", q), logger.Error(err))
			continue
		}
		for _, hit := range hits {
			if _, dup := seen[hit.ObjectID]; dup || hit.ObjectID == "" {
				continue
			}
			seen[hit.ObjectID] = struct{}{}
			out = append(out, toMention(hit))
		}
	}
	if len(h.queries) > 0 && failures == len(h.queries) {
		return nil, Unavailable(HackerNewsName, lastErr)
	}
	return out, nil
}

func (h *HackerNews) search(ctx context.Context, query string, since int64) ([]hnHit, error) {
	var body hnResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":          `"` + query + `"`,
			"tags":           "(story,comment)",
			"numericFilters": "created_at_i>" + strconv.FormatInt(since, 10),
			"hitsPerPage":    strconv.Itoa(h.perQuery),
		}).
		SetResult(&body).
		Get(h.baseURL + "/search_by_date")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("algolia returned status %d", resp.StatusCode())
	}
	return body.Hits, nil
}

func toMention(hit hnHit) model.RawMention {
	title := hit.Title
	if title == "" {
		title = hit.StoryTitle
	}
	text := hit.StoryText
	if hit.CommentText != "" {
		text = hit.CommentText
	}
	return model.RawMention{
		ExternalID: hit.ObjectID,
		Source:     HackerNewsName,
		Title:      title,
		Text:       StripHTML(text),
		URL:        "https://news.ycombinator.com/item?id=" + hit.ObjectID,
		Author:     hit.Author,
		ObservedAt: time.Unix(hit.CreatedAtI, 0).UTC(),
		Engagement: model.Engagement{Upvotes: hit.Points, Comments: hit.NumComments},
	}
}

// StripHTML returns the text content of an HTML fragment.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}
