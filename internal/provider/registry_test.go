package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

type namedProvider string

func (p namedProvider) Name() string { return string(p) }

func (namedProvider) Generate(context.Context) (string, State, error) { return "", nil, nil }

func (namedProvider) ListMessages(context.Context, State) ([]Summary, error) { return nil, nil }

func (namedProvider) ReadMessage(context.Context, State, string) (Detail, error) {
	return Detail{}, nil
}

func TestRegistry_Alternate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if got := r.Alternate("a"); got != "" {
		t.Errorf("empty registry: got %q", got)
	}

	r.Register(namedProvider("a"), "A")
	if got := r.Alternate("a"); got != "" {
		t.Errorf("single provider: got %q", got)
	}
	if got := r.Next("a"); got != "a" {
		t.Errorf("next with single provider: got %q", got)
	}

	r.Register(namedProvider("b"), "")
	r.Register(namedProvider("c"), "C")
	tests := []struct {
		name string
		want string
	}{
		{"a", "b"},
		{"b", "c"},
		{"c", "a"},
		{"missing", "a"},
	}
	for _, tt := range tests {
		if got := r.Alternate(tt.name); got != tt.want {
			t.Errorf("Alternate(%q): got %q, want %q", tt.name, got, tt.want)
		}
	}
	if got := r.Label("b"); got != "b" {
		t.Errorf("label defaults to name: got %q", got)
	}
}

func TestRegistry_RegisterTwiceKeepsPosition(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(namedProvider("a"), "A")
	r.Register(namedProvider("b"), "B")
	r.Register(namedProvider("a"), "A2")

	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names: got %v", names)
	}
	if got := r.Label("a"); got != "A2" {
		t.Errorf("label: got %q, want A2", got)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("got %v, want ErrUnknownProvider", err)
	}
	if _, err := r.DecodeState("nope", []byte(`{}`)); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("decode: got %v, want ErrUnknownProvider", err)
	}
	state, err := r.DecodeState("nope", nil)
	if err != nil || state != nil {
		t.Errorf("empty state: got %v, %v", state, err)
	}
}

func TestKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"forbidden", &HTTPError{Provider: "x", StatusCode: http.StatusForbidden}, "forbidden"},
		{"wrapped forbidden", fmt.Errorf("generate: %w", &HTTPError{StatusCode: http.StatusForbidden}), "forbidden"},
		{"server error", &HTTPError{StatusCode: http.StatusBadGateway}, "http"},
		{"network", &NetworkError{Provider: "x", Err: errors.New("dial tcp: refused")}, "network"},
		{"malformed", fmt.Errorf("decode: %w", ErrMalformedResponse), "malformed"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	t.Parallel()
	msgs := []Summary{
		{ID: "old", Date: "2025-01-01 09:00:00"},
		{ID: "new", Date: "2025-01-02 10:00:00"},
		{ID: "undated"},
		{ID: "same", Date: "2025-01-01 09:00:00"},
	}
	SortNewestFirst(msgs)

	want := []string{"new", "old", "same", "undated"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d: got %q, want %q (all: %v)", i, msgs[i].ID, id, msgs)
		}
	}
}

func TestHTTPError_Message(t *testing.T) {
	t.Parallel()
	err := &HTTPError{Provider: "mailtm", StatusCode: 429, Body: TruncateBody([]byte("slow down"))}
	if got, want := err.Error(), "mailtm API error (HTTP 429): slow down"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	long := make([]byte, 300)
	if got := TruncateBody(long); len(got) != 259 {
		t.Errorf("truncated length: got %d, want 259", len(got))
	}
}
