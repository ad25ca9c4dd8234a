package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"listingwatch/config"
	"listingwatch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>HKEXnews</title>
<item><title>YONYOU NETWORK - PROSPECTUS</title><link>https://www.hkexnews.hk/listedco/1.pdf</link><pubDate>Mon, 06 May 2024 08:00:00 +0800</pubDate></item>
<item><title>YONYOU NETWORK - Formal Notice</title><link>https://www.hkexnews.hk/listedco/2.pdf</link></item>
<item><title></title><link>https://www.hkexnews.hk/listedco/3.pdf</link></item>
</channel></rss>`

const sampleHKEXHTML = `<html><body><table>
<tr class="search-item"><td class="date">2024-05-06</td><td><a href="/listedco/9.pdf" title="Yonyou Global Offering">Yonyou Global Offering</a></td></tr>
<tr class="search-item"><td>no link here</td></tr>
</table></body></html>`

func fixedNow() time.Time { return time.Date(2024, 5, 7, 9, 0, 0, 0, time.UTC) }

func newTestHKEX(baseURL string) *HKEX {
	h := NewHKEX(testFetcher(1), config.SourcesConfig{HKEXBaseURL: baseURL, HKEXCompanyName: "Yonyou"}, 50, zap.NewNop())
	h.now = fixedNow
	return h
}

func TestHKEXPrefersRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, hkexRSSPath, r.URL.Path)
		assert.Equal(t, "Yonyou", r.URL.Query().Get("companyName"))
		assert.Equal(t, "NEW_LISTING", r.URL.Query().Get("documentType"))
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	items, err := newTestHKEX(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, types.Candidate{
		Title: "YONYOU NETWORK - PROSPECTUS",
		Date:  "Mon, 06 May 2024 08:00:00 +0800",
		URL:   "https://www.hkexnews.hk/listedco/1.pdf",
	}, items[0])
	assert.Equal(t, "2024-05-07", items[1].Date, "missing pubDate defaults to today")
}

func TestHKEXFallsBackToSearchAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case hkexRSSPath:
			w.WriteHeader(http.StatusNotFound)
		case hkexSearchPath:
			assert.Equal(t, "50", r.URL.Query().Get("pageSize"))
			_, _ = w.Write([]byte(`{"results":[{"title":"Yonyou PRICE RANGE","date":"2024-05-06","url":"/listedco/5.pdf"}]}`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	items, err := newTestHKEX(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	// Search API links are not rewritten, so hashes match earlier ledgers.
	assert.Equal(t, types.Candidate{Title: "Yonyou PRICE RANGE", Date: "2024-05-06", URL: "/listedco/5.pdf"}, items[0])
	assert.Equal(t, "2a91a2dbfb096f7b", items[0].Hash())
}

func TestHKEXFallsBackToHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case hkexRSSPath:
			_, _ = w.Write([]byte(`<rss version="2.0"><channel></channel></rss>`))
		case hkexSearchPath:
			_, _ = w.Write([]byte(`not json`))
		case hkexListingPath:
			_, _ = w.Write([]byte(sampleHKEXHTML))
		}
	}))
	defer srv.Close()

	items, err := newTestHKEX(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.Candidate{
		Title: "Yonyou Global Offering",
		Date:  "2024-05-06",
		URL:   srv.URL + "/listedco/9.pdf",
	}, items[0])
}

func TestHKEXAllStrategiesFailYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	items, err := newTestHKEX(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseRSSCapsItems(t *testing.T) {
	items, err := parseRSS(sampleRSS, 1, "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = parseRSS("<<<", 10, "2024-01-01")
	assert.Error(t, err)
}

func TestResolveLink(t *testing.T) {
	assert.Equal(t, "https://www.hkexnews.hk/a/b.pdf", resolveLink("https://www.hkexnews.hk", "/a/b.pdf"))
	assert.Equal(t, "https://other/x", resolveLink("https://www.hkexnews.hk", "https://other/x"))
	assert.Equal(t, "//cdn/x", resolveLink("https://www.hkexnews.hk", "//cdn/x"))
	assert.Equal(t, "/x", resolveLink("", "/x"))
}
