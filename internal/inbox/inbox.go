// Package inbox holds the presentation-independent helpers shared by the web
// and terminal dashboards: search, date formatting, body selection and
// unread statistics.
package inbox

import (
	"strings"
	"time"

	"github.io/infrasutra/tempinbox/internal/provider"
)

const displayLayout = "Jan 02, 2006 15:04"

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// Filter returns the messages whose sender or subject contains query,
// ignoring case. An empty query returns msgs unchanged; whitespace is part
// of the match.
func Filter(msgs []provider.Summary, query string) []provider.Summary {
	if query == "" {
		return msgs
	}
	needle := strings.ToLower(query)
	out := make([]provider.Summary, 0, len(msgs))
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.From), needle) ||
			strings.Contains(strings.ToLower(m.Subject), needle) {
			out = append(out, m)
		}
	}
	return out
}

// HumanTime renders a provider date as "Jan 02, 2006 15:04". Values that
// match no known layout are returned as-is.
func HumanTime(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(displayLayout)
		}
	}
	return raw
}

// Body kinds returned by PreferredBody.
const (
	BodyText = "text"
	BodyHTML = "html"
	BodyNone = "none"
)

// PreferredBody picks the body to display: text when it has content,
// otherwise HTML, otherwise none.
func PreferredBody(d provider.Detail) (kind, body string) {
	switch {
	case strings.TrimSpace(d.TextBody) != "":
		return BodyText, d.TextBody
	case strings.TrimSpace(d.HTMLBody) != "":
		return BodyHTML, d.HTMLBody
	default:
		return BodyNone, ""
	}
}

// Counts summarizes an inbox listing against the read set.
type Counts struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
	Read   int `json:"read"`
}

// Stats counts how many of msgs are in the read set.
func Stats(msgs []provider.Summary, read map[string]struct{}) Counts {
	c := Counts{Total: len(msgs)}
	for _, m := range msgs {
		if _, ok := read[m.ID]; ok {
			c.Read++
		}
	}
	c.Unread = c.Total - c.Read
	return c
}

// AttachmentName returns a display name for an attachment.
func AttachmentName(a provider.Attachment) string {
	if strings.TrimSpace(a.Filename) != "" {
		return a.Filename
	}
	return "(attachment)"
}
