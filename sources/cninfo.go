package sources

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"listingwatch/config"
	"listingwatch/types"

	"go.uber.org/zap"
)

var cninfoSelectors = listingSelectors{
	Row:   ".result-item, .news-item, tr",
	Title: "a[title], .title",
	Date:  ".date, time",
	Link:  "a[href]",
}

// CNINFO reads A-share announcements of the issuer: the CNINFO full-text
// search pages first, then the Eastmoney announcement API.
type CNINFO struct {
	fetcher    *Fetcher
	searchURLs []string
	eastmoney  *Eastmoney
	pageSize   int
	logger     *zap.Logger
	now        func() time.Time
}

func NewCNINFO(fetcher *Fetcher, cfg config.SourcesConfig, pageSize int, logger *zap.Logger) *CNINFO {
	logger = logger.Named("cninfo")
	return &CNINFO{
		fetcher:    fetcher,
		searchURLs: cfg.CNINFOSearchURLs,
		eastmoney:  NewEastmoney(fetcher, cfg, pageSize, logger),
		pageSize:   pageSize,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *CNINFO) Name() types.Source { return types.SourceCNINFO }

func (c *CNINFO) Fetch(ctx context.Context) ([]types.Candidate, error) {
	items := runStrategies(ctx, c.logger, []Strategy{
		{Name: "fulltext_search", Fetch: c.fetchSearchPages},
		{Name: "eastmoney_api", Fetch: c.eastmoney.Fetch},
	})
	return capItems(items, c.pageSize), nil
}

// fetchSearchPages merges the results of every search URL. A failing URL is
// logged and skipped; only when all of them fail is an error returned.
func (c *CNINFO) fetchSearchPages(ctx context.Context) ([]types.Candidate, error) {
	var (
		items []types.Candidate
		errs  []error
	)
	for _, rawURL := range c.searchURLs {
		body, err := c.fetcher.Get(ctx, rawURL, map[string]string{
			"Accept-Language": "zh-CN,zh;q=0.9",
		})
		if err != nil {
			c.logger.Error("Search page failed", zap.String("url", rawURL), zap.Error(err))
			errs = append(errs, err)
			continue
		}

		parsed, err := parseListing(body, cninfoSelectors, originOf(rawURL), today(c.now))
		if err != nil {
			c.logger.Error("Search page unparseable", zap.String("url", rawURL), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		items = append(items, parsed...)
	}

	if len(items) == 0 && len(errs) == len(c.searchURLs) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

// originOf returns scheme://host of rawURL, or "" when it cannot be parsed
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + u.Host
}
