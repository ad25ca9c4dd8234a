package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// HashLength is the number of hex characters kept from the identity digest.
const HashLength = 16

// Source identifies the disclosure portal an event came from
type Source string

const (
	SourceHKEX   Source = "HKEXnews"
	SourceCNINFO Source = "CNINFO"
	SourceTest   Source = "TEST"
)

// Importance marks how an event should be treated by notification channels
type Importance string

const (
	ImportanceHigh Importance = "HIGH"
	ImportanceTest Importance = "TEST"
)

// EventType is one of the critical listing milestones in the taxonomy
type EventType string

const (
	EventProspectus     EventType = "prospectus"
	EventGlobalOffering EventType = "global_offering"
	EventPriceRange     EventType = "price_range"
	EventAllocation     EventType = "allocation"
	EventHShareDetails  EventType = "h_share_details"
)

var eventDisplayNames = map[EventType]string{
	EventProspectus:     "正式招股说明书（Prospectus）",
	EventGlobalOffering: "全球发售 / Global Offering",
	EventPriceRange:     "价格区间 / Price Range",
	EventAllocation:     "配售结果 / Allocation Results",
	EventHShareDetails:  "H股发行详情",
}

// DisplayName returns the human readable label used in alerts.
// Unknown types fall back to their raw value.
func (t EventType) DisplayName() string {
	if name, ok := eventDisplayNames[t]; ok {
		return name
	}
	return string(t)
}

// Candidate is a raw announcement record as returned by a source adapter.
// Date is kept in the source-native format.
type Candidate struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	URL   string `json:"url"`
}

// Hash returns the identity hash of the candidate
func (c Candidate) Hash() string {
	return GenerateID(c.Title, c.Date, c.URL)
}

// Event is a confirmed, classified, previously unseen announcement
type Event struct {
	ID            string            `json:"id"`
	Source        Source            `json:"source"`
	Title         string            `json:"title"`
	Date          string            `json:"date"`
	URL           string            `json:"url"`
	EventType     EventType         `json:"event_type"`
	Importance    Importance        `json:"importance"`
	Supplementary map[string]string `json:"supplementary,omitempty"`
}

// NewEvent builds an Event from a candidate. The supplementary map is copied.
func NewEvent(source Source, c Candidate, eventType EventType, importance Importance, supplementary map[string]string) Event {
	var extra map[string]string
	if len(supplementary) > 0 {
		extra = make(map[string]string, len(supplementary))
		for k, v := range supplementary {
			extra[k] = v
		}
	}
	return Event{
		ID:            c.Hash(),
		Source:        source,
		Title:         c.Title,
		Date:          c.Date,
		URL:           c.URL,
		EventType:     eventType,
		Importance:    importance,
		Supplementary: extra,
	}
}

// NewTestEvent returns the synthetic event used to verify notification wiring
func NewTestEvent(now time.Time) Event {
	c := Candidate{
		Title: "[TEST] Yonyou Network Technology - PROSPECTUS (synthetic alert)",
		Date:  now.Format("2006-01-02"),
		URL:   "https://www.hkexnews.hk/",
	}
	return NewEvent(SourceTest, c, EventProspectus, ImportanceTest, map[string]string{
		"note": "测试消息 / connectivity check",
	})
}

// GenerateID derives the identity hash from the (title, date, url) tuple
func GenerateID(title, date, url string) string {
	hash := sha256.Sum256([]byte(title + "|" + date + "|" + url))
	return hex.EncodeToString(hash[:])[:HashLength]
}
