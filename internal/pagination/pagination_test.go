package pagination

import (
	"net/url"
	"testing"
)

func TestFromQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		query string
		opts  []Option
		want  Params
	}{
		{"defaults", "", nil, Params{Page: 1, Limit: 50, Offset: 0, Sort: "newest"}},
		{"page and limit", "page=3&limit=10", nil, Params{Page: 3, Limit: 10, Offset: 20, Sort: "newest"}},
		{"invalid numbers", "page=-1&limit=abc", nil, Params{Page: 1, Limit: 50, Offset: 0, Sort: "newest"}},
		{"limit capped", "limit=5000", nil, Params{Page: 1, Limit: MaxLimit, Offset: 0, Sort: "newest"}},
		{"asc alias", "sort=asc", nil, Params{Page: 1, Limit: 50, Offset: 0, Sort: "oldest"}},
		{"unknown sort", "sort=random", nil, Params{Page: 1, Limit: 50, Offset: 0, Sort: "newest"}},
		{"options", "page=2", []Option{WithDefaultLimit(5), WithDefaultSort("oldest")}, Params{Page: 2, Limit: 5, Offset: 5, Sort: "oldest"}},
		{"huge page clamped", "page=184467440737095518&limit=50", nil, Params{Page: MaxPage, Limit: 50, Offset: (MaxPage - 1) * 50, Sort: "newest"}},
		{"ignored options", "", []Option{WithDefaultLimit(0), WithDefaultSort("bogus")}, Params{Page: 1, Limit: 50, Offset: 0, Sort: "newest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			if got := FromQuery(q, tt.opts...); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		params    Params
		total     int
		wantStart int
		wantEnd   int
		wantNext  bool
	}{
		{"first page", Params{Limit: 10, Offset: 0}, 25, 0, 10, true},
		{"last partial page", Params{Limit: 10, Offset: 20}, 25, 20, 25, false},
		{"past the end", Params{Limit: 10, Offset: 40}, 25, 25, 25, false},
		{"empty listing", Params{Limit: 10, Offset: 0}, 0, 0, 0, false},
		{"negative offset", Params{Limit: 10, Offset: -30}, 5, 0, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start, end := tt.params.Window(tt.total)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("window: got [%d,%d), want [%d,%d)", start, end, tt.wantStart, tt.wantEnd)
			}
			if got := tt.params.HasNext(tt.total); got != tt.wantNext {
				t.Errorf("HasNext: got %v, want %v", got, tt.wantNext)
			}
		})
	}
}

func TestFromQuery_HugePageIsEmptyWindow(t *testing.T) {
	t.Parallel()
	msgs := []string{"a", "b", "c"}
	for _, page := range []string{"184467440737095518", "922337203685477581", "9223372036854775807"} {
		q := url.Values{"page": {page}, "limit": {"200"}}
		params := FromQuery(q)
		if params.Offset < 0 {
			t.Fatalf("page %s: negative offset %d", page, params.Offset)
		}
		start, end := params.Window(len(msgs))
		if got := msgs[start:end]; len(got) != 0 {
			t.Errorf("page %s: got %v, want empty page", page, got)
		}
		if params.HasNext(len(msgs)) {
			t.Errorf("page %s: HasNext reported true on a %d-item list", page, len(msgs))
		}
	}
}
