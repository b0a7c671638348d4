package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/pkg/logger"
)

// RedditName is the registry name of the reddit collector.
const RedditName = "reddit"

// Reddit queries the public search.json listing for each phrase.
type Reddit struct {
	client     *resty.Client
	baseURL    string
	queries    []string
	subreddits []string
	perQuery   int
	log        logger.Logger
}

// RedditOption configures Reddit.
type RedditOption func(*Reddit)

// WithRedditBaseURL points the collector at another host.
func WithRedditBaseURL(u string) RedditOption {
	return func(r *Reddit) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithSubreddits restricts the search. Empty searches all of reddit.
func WithSubreddits(subs []string) RedditOption {
	return func(r *Reddit) { r.subreddits = subs }
}

// WithRedditPerQuery sets the listing limit.
func WithRedditPerQuery(n int) RedditOption {
	return func(r *Reddit) {
		if n > 0 {
			r.perQuery = n
		}
	}
}

// WithRedditUserAgent sets the User-Agent reddit requires.
func WithRedditUserAgent(ua string) RedditOption {
	return func(r *Reddit) {
		if ua != "" {
			r.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithRedditTimeout sets the HTTP timeout.
func WithRedditTimeout(d time.Duration) RedditOption {
	return func(r *Reddit) {
		if d > 0 {
			r.client.SetTimeout(d)
		}
	}
}

// WithRedditLogger sets the logger.
func WithRedditLogger(l logger.Logger) RedditOption {
	return func(r *Reddit) { r.log = l }
}

// NewReddit builds the collector.
func NewReddit(queries []string, opts ...RedditOption) *Reddit {
	r := &Reddit{
		client: resty.New().
			SetTimeout(15*time.Second).
			SetHeader("User-Agent", "painpoint-scanner/1.0"),
		baseURL:  "https://www.reddit.com",
		queries:  queries,
		perQuery: 25,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reddit) Name() string { return RedditName }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	Ups         int     `json:"ups"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// FetchMentions runs one search per query and skips failed queries. The
// collector is unavailable only when every query fails.
func (r *Reddit) FetchMentions(ctx context.Context) ([]model.RawMention, error) {
	seen := make(map[string]struct{})
	var (
		out      []model.RawMention
		failures int
		lastErr  error
	)
	for _, q := range r.queries {
		if err := ctx.Err(); err != nil {
			return out, Unavailable(RedditName, err)
		}
		posts, err := r.search(ctx, q)
		if err != nil {
			failures++
			lastErr = err
			r.log.Warn(ctx, "reddit query failed", logger.String("query", q), logger.Error(err))
			continue
		}
		for _, p := range posts {
			if _, dup := seen[p.ID]; dup || p.ID == "" {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, model.RawMention{
				ExternalID: p.ID,
				Source:     RedditName,
				Title:      p.Title,
				Text:       p.Selftext,
				URL:        "https://www.reddit.com" + p.Permalink,
				Author:     p.Author,
				ObservedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
				Engagement: model.Engagement{Upvotes: p.Ups, Comments: p.NumComments},
			})
		}
	}
	if len(r.queries) > 0 && failures == len(r.queries) {
		return nil, Unavailable(RedditName, lastErr)
	}
	return out, nil
}

func (r *Reddit) search(ctx context.Context, query string) ([]redditPost, error) {
	path := "/search.json"
	params := map[string]string{
		"q":     `"` + query + `"`,
		"sort":  "new",
		"t":     "week",
		"limit": strconv.Itoa(r.perQuery),
	}
	if len(r.subreddits) > 0 {
		path = "/r/" + strings.Join(r.subreddits, "+") + "/search.json"
		params["restrict_sr"] = "1"
	}

	var listing redditListing
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&listing).
		Get(r.baseURL + path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("reddit returned status %d", resp.StatusCode())
	}
	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		posts = append(posts, c.Data)
	}
	return posts, nil
}
