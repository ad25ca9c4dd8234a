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

	"go.uber.org/zap"
)

const eastmoneyDetailURL = "https://data.eastmoney.com/notices/detail/%s/%s.html"

// Eastmoney queries the Eastmoney announcement API for one A-share stock code
type Eastmoney struct {
	fetcher  *Fetcher
	apiURL   string
	stock    string
	daysBack int
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

func NewEastmoney(fetcher *Fetcher, cfg config.SourcesConfig, pageSize int, logger *zap.Logger) *Eastmoney {
	return &Eastmoney{
		fetcher:  fetcher,
		apiURL:   cfg.EastmoneyAPIURL,
		stock:    cfg.StockCode,
		daysBack: cfg.EastmoneyDaysBack,
		pageSize: pageSize,
		logger:   logger.Named("eastmoney"),
		now:      time.Now,
	}
}

type eastmoneyResponse struct {
	Data *struct {
		List []eastmoneyAnnouncement `json:"list"`
	} `json:"data"`
}

type eastmoneyAnnouncement struct {
	Title      string `json:"title"`
	NoticeDate string `json:"notice_date"`
	ArtCode    string `json:"art_code"`
}

func (e *Eastmoney) Fetch(ctx context.Context) ([]types.Candidate, error) {
	q := url.Values{}
	q.Set("sr", "-1")
	q.Set("page_size", strconv.Itoa(e.pageSize))
	q.Set("page_index", "1")
	q.Set("ann_type", "A")
	q.Set("client_source", "web")
	q.Set("stock_list", e.stock)
	q.Set("f_node", "0")
	q.Set("s_node", "0")

	body, err := e.fetcher.Get(ctx, e.apiURL+"?"+q.Encode(), map[string]string{
		"Accept":  "application/json",
		"Referer": "https://data.eastmoney.com/",
	})
	if err != nil {
		return nil, err
	}

	var resp eastmoneyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode eastmoney response: %w", err)
	}
	if resp.Data == nil {
		return nil, nil
	}

	cutoff := e.cutoff()
	items := make([]types.Candidate, 0, len(resp.Data.List))
	for _, ann := range resp.Data.List {
		date := datePart(ann.NoticeDate)
		if cutoff != "" && date != "" && date < cutoff {
			continue
		}
		items = append(items, types.Candidate{
			Title: strings.TrimSpace(ann.Title),
			Date:  date,
			URL:   e.detailURL(ann.ArtCode),
		})
	}
	e.logger.Debug("Eastmoney announcements", zap.Int("total", len(resp.Data.List)), zap.Int("in_window", len(items)))
	return items, nil
}

// cutoff is the oldest notice date, as YYYY-MM-DD, inside the look-back window
func (e *Eastmoney) cutoff() string {
	if e.daysBack <= 0 {
		return ""
	}
	return e.now().AddDate(0, 0, -e.daysBack).Format("2006-01-02")
}

func (e *Eastmoney) detailURL(artCode string) string {
	if artCode == "" {
		return ""
	}
	return fmt.Sprintf(eastmoneyDetailURL, e.stock, artCode)
}

// datePart drops the time of day from "2006-01-02 15:04:05"
func datePart(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
