package notifier

import (
	"fmt"
	"sort"
	"strings"

	"listingwatch/analyzer"
	"listingwatch/types"
)

const alertHeader = "【用友港股上市 · 关键进展】"

// supplementaryOrder fixes the bullet order of known supplementary keys;
// any other key follows in sorted order.
var supplementaryOrder = []string{
	analyzer.InfoPercentage,
	analyzer.InfoDilutionWarning,
	analyzer.InfoValuationAnchor,
}

// FormatMessage renders the alert text shared by the text channels
func FormatMessage(e types.Event) string {
	var b strings.Builder
	b.WriteString(alertHeader)
	fmt.Fprintf(&b, "\n事件：%s", e.EventType.DisplayName())
	fmt.Fprintf(&b, "\n日期：%s", e.Date)
	fmt.Fprintf(&b, "\n来源：%s", e.Source)
	fmt.Fprintf(&b, "\n链接：%s", e.URL)
	fmt.Fprintf(&b, "\n重要性：%s", e.Importance)

	if bullets := supplementaryBullets(e.Supplementary); len(bullets) > 0 {
		b.WriteString("\n\n附加信息：")
		for _, line := range bullets {
			fmt.Fprintf(&b, "\n  • %s", line)
		}
	}
	return b.String()
}

func supplementaryBullets(info map[string]string) []string {
	if len(info) == 0 {
		return nil
	}

	var bullets []string
	known := make(map[string]bool, len(supplementaryOrder))
	for _, key := range supplementaryOrder {
		known[key] = true
		v, ok := info[key]
		if !ok {
			continue
		}
		if key == analyzer.InfoPercentage {
			v += "%"
		}
		bullets = append(bullets, v)
	}

	var rest []string
	for k := range info {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		bullets = append(bullets, info[k])
	}
	return bullets
}
