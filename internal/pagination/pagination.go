// Package pagination pages through an already-fetched inbox listing.
// Parameters come from URL query strings and are clamped to sane bounds;
// Window then maps them onto a slice of known length.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Params represents pagination parameters extracted from a request.
type Params struct {
	Page   int    // Current page number (1-based)
	Limit  int    // Number of items per page
	Offset int    // Index of the first item on the page
	Sort   string // "newest" or "oldest"; "desc" and "asc" are accepted aliases
}

const (
	// MaxLimit is the maximum number of items allowed per page
	MaxLimit = 200
	// DefaultPage is the default page number when not specified
	DefaultPage = 1
	// DefaultLimit is the default number of items per page when not specified
	DefaultLimit = 50
	// DefaultSort is the default sort order when not specified
	DefaultSort = "newest"
	// MaxPage keeps (Page-1)*Limit from overflowing int.
	MaxPage = math.MaxInt / MaxLimit
)

func calculateOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// normalizeSort maps aliases onto "newest" and "oldest". It returns ""
// for anything it does not recognise.
func normalizeSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "newest", "desc":
		return "newest"
	case "oldest", "asc":
		return "oldest"
	default:
		return ""
	}
}

// Option configures the defaults used by FromQuery.
type Option func(*Params)

// WithDefaultLimit sets the limit used when the query has none.
// Non-positive values are ignored.
func WithDefaultLimit(limit int) Option {
	return func(p *Params) {
		if limit > 0 {
			p.Limit = limit
		}
	}
}

// WithDefaultSort sets the sort used when the query has none.
// Unknown sort names are ignored.
func WithDefaultSort(sort string) Option {
	normalized := normalizeSort(sort)
	if normalized == "" {
		return func(p *Params) {}
	}
	return func(p *Params) {
		p.Sort = normalized
	}
}

// FromQuery extracts pagination parameters from URL query values. Invalid
// values fall back to the defaults and the limit is capped at MaxLimit.
func FromQuery(q url.Values, opts ...Option) Params {
	params := Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  DefaultSort,
	}

	for _, opt := range opts {
		opt(&params)
	}

	if pageStr := q.Get("page"); pageStr != "" {
		if val, err := strconv.Atoi(pageStr); err == nil && val > 0 {
			params.Page = min(val, MaxPage)
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if val, err := strconv.Atoi(limitStr); err == nil && val > 0 {
			params.Limit = val
		}
	}

	// enforce max limit
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}

	params.Offset = calculateOffset(params.Page, params.Limit)

	if sort := normalizeSort(q.Get("sort")); sort != "" {
		params.Sort = sort
	}

	return params
}

// Oldest reports whether the listing should be reversed from its natural
// newest-first order.
func (p Params) Oldest() bool {
	return p.Sort == "oldest"
}

// Window returns the half-open [start, end) range of the page within a
// listing of total items. A page past the end yields an empty range.
func (p Params) Window(total int) (start, end int) {
	start = max(p.Offset, 0)
	if start > total {
		start = total
	}
	end = start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// HasNext reports whether more items follow the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset < total-p.Limit
}
