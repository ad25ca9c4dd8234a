package sources

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"listingwatch/types"

	"github.com/PuerkitoBio/goquery"
)

// listingSelectors locates announcement rows in a portal's HTML listing
type listingSelectors struct {
	Row   string
	Title string
	Date  string
	Link  string
}

// parseListing extracts candidates from an HTML listing. Rows without a title
// element or a link are skipped. Relative links resolve against base and a
// missing date becomes defaultDate.
func parseListing(body []byte, sel listingSelectors, base, defaultDate string) ([]types.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var items []types.Candidate
	doc.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		titleEl := row.Find(sel.Title).First()
		linkEl := row.Find(sel.Link).First()
		if titleEl.Length() == 0 || linkEl.Length() == 0 {
			return
		}

		title := strings.TrimSpace(titleEl.Text())
		if title == "" {
			title = strings.TrimSpace(titleEl.AttrOr("title", ""))
		}

		date := defaultDate
		if dateEl := row.Find(sel.Date).First(); dateEl.Length() > 0 {
			date = strings.TrimSpace(dateEl.Text())
		}

		items = append(items, types.Candidate{
			Title: title,
			Date:  date,
			URL:   resolveLink(base, strings.TrimSpace(linkEl.AttrOr("href", ""))),
		})
	})
	return items, nil
}

// resolveLink turns a root-relative link into an absolute one
func resolveLink(base, link string) string {
	if base == "" || !strings.HasPrefix(link, "/") || strings.HasPrefix(link, "//") {
		return link
	}
	b, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return strings.TrimRight(base, "/") + link
	}
	return b.ResolveReference(ref).String()
}
