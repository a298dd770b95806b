package provider

import "sort"

// SortNewestFirst orders summaries by their raw date string, descending.
// Dates are compared as plain strings, not parsed timestamps. For
// "YYYY-MM-DD HH:MM:SS" and same-offset ISO-8601 values this matches
// chronological order.
func SortNewestFirst(msgs []Summary) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Date > msgs[j].Date
	})
}
