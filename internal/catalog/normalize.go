package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookscout/internal/textutil"
)

// StripHTML converts an HTML fragment to plain text with entities decoded.
// Line breaks and block boundaries become single spaces.
func StripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.ContainsAny(fragment, "<&") {
		return textutil.CollapseWhitespace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return textutil.CollapseWhitespace(fragment)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return textutil.CollapseWhitespace(doc.Text())
}

// SecureURL upgrades http:// links to https://. Other values pass through.
func SecureURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// CapList trims entries and drops empties or duplicates, keeping at most max
// items. max <= 0 disables the cap.
func CapList(values []string, max int) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
