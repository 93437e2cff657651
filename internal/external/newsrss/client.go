package newsrss

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/pkg/httputil"
	"github.com/wonny/quantrank/pkg/logger"
)

// DefaultBaseURL is the keyless Google News RSS search endpoint.
const DefaultBaseURL = "https://news.google.com/rss/search"

const defaultMaxRecords = 20

// Locale selects the Google News edition to query.
type Locale struct {
	HL   string // interface language, e.g. "en-US"
	GL   string // country, e.g. "US"
	CEID string // edition id, e.g. "US:en"
}

// LocaleForMarket maps a market code to its news edition.
func LocaleForMarket(market string) Locale {
	if strings.EqualFold(market, "KR") {
		return Locale{HL: "ko", GL: "KR", CEID: "KR:ko"}
	}
	return Locale{HL: "en-US", GL: "US", CEID: "US:en"}
}

// Client fetches headlines from Google News RSS, throttled to stay under
// the unofficial endpoint's tolerance.
type Client struct {
	httpClient *httputil.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     *logger.Logger
}

// NewClient creates a new Client instance. ratePerSec bounds outgoing
// request frequency; zero falls back to ~1.25 requests per second.
func NewClient(httpClient *httputil.Client, baseURL string, ratePerSec float64, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if ratePerSec <= 0 {
		ratePerSec = 1.25
	}
	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		baseURL:    baseURL,
		logger:     log,
	}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
	Description string `xml:"description"`
}

// FetchNews searches headlines for query and estimates a tone per title.
func (c *Client) FetchNews(ctx context.Context, query string, locale Locale, maxRecords int) ([]contracts.NewsItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if maxRecords <= 0 {
		maxRecords = defaultMaxRecords
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", locale.HL)
	params.Set("gl", locale.GL)
	params.Set("ceid", locale.CEID)

	body, err := c.httpClient.GetBody(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch news rss: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse news rss: %w", err)
	}

	items := make([]contracts.NewsItem, 0, maxRecords)
	for _, it := range feed.Channel.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}

		source := strings.TrimSpace(it.Source)
		if source == "" {
			source = sourceFromDescription(it.Description)
		}
		if source == "" {
			source = "google-news"
		}

		items = append(items, contracts.NewsItem{
			PublishedAt: parsePubDate(it.PubDate),
			Title:       strings.TrimSpace(it.Title),
			Source:      source,
			URL:         link,
			Tone:        EstimateTone(it.Title, locale.HL),
		})
		if len(items) >= maxRecords {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"query": query,
		"count": len(items),
	}).Debug("Fetched news headlines")
	return items, nil
}

// sourceFromDescription pulls the publisher name out of the HTML snippet
// Google News puts in <description> ("<a href=...>title</a> <font>publisher</font>").
func sourceFromDescription(desc string) string {
	if desc == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("font").First().Text())
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
