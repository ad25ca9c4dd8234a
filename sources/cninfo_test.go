package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"listingwatch/config"
	"listingwatch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCNINFO = `<html><body>
<div class="result-item"><a href="/new/disclosure/detail?id=1" title="用友网络关于发行H股的公告">用友网络关于发行H股的公告</a><span class="date">2024-05-06</span></div>
<div class="result-item"><span>no link</span></div>
</body></html>`

const sampleEastmoney = `{"data":{"list":[
{"title":"用友网络关于H股招股说明书的公告","notice_date":"2024-05-06 00:00:00","art_code":"AN001"},
{"title":"用友网络关于境外上市的公告","notice_date":"2023-01-01 00:00:00","art_code":"AN002"}
]}}`

func newTestCNINFO(urls []string, eastmoneyURL string) *CNINFO {
	c := NewCNINFO(testFetcher(1), config.SourcesConfig{
		CNINFOSearchURLs:  urls,
		EastmoneyAPIURL:   eastmoneyURL,
		StockCode:         "600588",
		EastmoneyDaysBack: 30,
	}, 50, zap.NewNop())
	c.now = fixedNow
	c.eastmoney.now = fixedNow
	return c
}

func TestCNINFOMergesSearchPagesAndIsolatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "zh-CN,zh;q=0.9", r.Header.Get("Accept-Language"))
		_, _ = w.Write([]byte(sampleCNINFO))
	}))
	defer srv.Close()

	c := newTestCNINFO([]string{
		srv.URL + "/new/fulltextSearch?keyword=broken",
		srv.URL + "/new/fulltextSearch?keyword=Yonyou",
	}, srv.URL+"/api")

	items, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.Candidate{
		Title: "用友网络关于发行H股的公告",
		Date:  "2024-05-06",
		URL:   srv.URL + "/new/disclosure/detail?id=1",
	}, items[0])
}

func TestCNINFOFallsBackToEastmoney(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" {
			q := r.URL.Query()
			assert.Equal(t, "600588", q.Get("stock_list"))
			assert.Equal(t, "-1", q.Get("sr"))
			assert.Equal(t, "A", q.Get("ann_type"))
			assert.Equal(t, "50", q.Get("page_size"))
			_, _ = w.Write([]byte(sampleEastmoney))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCNINFO([]string{srv.URL + "/search"}, srv.URL+"/api")

	items, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1, "announcements outside the look-back window are dropped")
	assert.Equal(t, types.Candidate{
		Title: "用友网络关于H股招股说明书的公告",
		Date:  "2024-05-06",
		URL:   "https://data.eastmoney.com/notices/detail/600588/AN001.html",
	}, items[0])
}

func TestEastmoneyHandlesMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	e := NewEastmoney(testFetcher(1), config.SourcesConfig{EastmoneyAPIURL: srv.URL, StockCode: "600588"}, 50, zap.NewNop())
	items, err := e.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDatePart(t *testing.T) {
	assert.Equal(t, "2024-05-06", datePart("2024-05-06 00:00:00"))
	assert.Equal(t, "2024-05-06", datePart("2024-05-06"))
	assert.Equal(t, "", datePart(""))
}
