package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"listingwatch/config"
	"listingwatch/types"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const (
	hkexRSSPath     = "/di/rss/rss.asp"
	hkexSearchPath  = "/hkex/web/special-news-api"
	hkexListingPath = "/search/titlesearch.xhtml"
	hkexDocType     = "NEW_LISTING"
)

var hkexSelectors = listingSelectors{
	Row:   "tr.search-item, .news-item, .listing-item",
	Title: "a[title], .title, .news-title",
	Date:  ".date, .news-date, time",
	Link:  "a[href]",
}

// HKEX reads new-listing documents from HKEXnews: RSS first, then the JSON
// search API, then the HTML title search.
type HKEX struct {
	fetcher     *Fetcher
	baseURL     string
	companyName string
	pageSize    int
	logger      *zap.Logger
	now         func() time.Time
}

func NewHKEX(fetcher *Fetcher, cfg config.SourcesConfig, pageSize int, logger *zap.Logger) *HKEX {
	return &HKEX{
		fetcher:     fetcher,
		baseURL:     strings.TrimRight(cfg.HKEXBaseURL, "/"),
		companyName: cfg.HKEXCompanyName,
		pageSize:    pageSize,
		logger:      logger.Named("hkex"),
		now:         time.Now,
	}
}

func (h *HKEX) Name() types.Source { return types.SourceHKEX }

func (h *HKEX) Fetch(ctx context.Context) ([]types.Candidate, error) {
	items := runStrategies(ctx, h.logger, []Strategy{
		{Name: "rss", Fetch: h.fetchRSS},
		{Name: "search_api", Fetch: h.fetchSearchAPI},
		{Name: "html", Fetch: h.fetchHTML},
	})
	return capItems(items, h.pageSize), nil
}

func (h *HKEX) fetchRSS(ctx context.Context) ([]types.Candidate, error) {
	q := url.Values{}
	q.Set("alertId", "1")
	q.Set("companyName", h.companyName)
	q.Set("documentType", hkexDocType)

	body, err := h.fetcher.Get(ctx, h.baseURL+hkexRSSPath+"?"+q.Encode(), map[string]string{
		"Accept": "application/rss+xml, text/xml",
	})
	if err != nil {
		return nil, err
	}
	return parseRSS(string(body), h.pageSize, today(h.now))
}

// parseRSS keeps the raw pubDate text so identity hashes stay stable across runs
func parseRSS(body string, limit int, defaultDate string) ([]types.Candidate, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	count := len(feed.Items)
	if limit > 0 {
		count = min(count, limit)
	}
	items := make([]types.Candidate, 0, count)
	for _, item := range feed.Items[:count] {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		date := strings.TrimSpace(item.Published)
		if date == "" {
			date = defaultDate
		}
		items = append(items, types.Candidate{Title: title, Date: date, URL: link})
	}
	return items, nil
}

type hkexSearchResponse struct {
	Results []types.Candidate `json:"results"`
}

func (h *HKEX) fetchSearchAPI(ctx context.Context) ([]types.Candidate, error) {
	q := url.Values{}
	q.Set("lang", "EN")
	q.Set("searchType", "ALL")
	q.Set("companyName", h.companyName)
	q.Set("documentType", hkexDocType)
	q.Set("pageSize", strconv.Itoa(h.pageSize))

	body, err := h.fetcher.Get(ctx, h.baseURL+hkexSearchPath+"?"+q.Encode(), map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var resp hkexSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	// Links are kept as the API returns them; they feed the identity hash.
	return resp.Results, nil
}

func (h *HKEX) fetchHTML(ctx context.Context) ([]types.Candidate, error) {
	q := url.Values{}
	q.Set("lang", "EN")
	q.Set("category", "0")
	q.Set("market", "SEHK")
	q.Set("searchType", "0")
	q.Set("stockName", h.companyName)

	body, err := h.fetcher.Get(ctx, h.baseURL+hkexListingPath+"?"+q.Encode(), map[string]string{
		"Accept": "text/html",
	})
	if err != nil {
		return nil, err
	}
	return parseListing(body, hkexSelectors, h.baseURL, today(h.now))
}
