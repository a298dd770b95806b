package inbox

import (
	"reflect"
	"testing"

	"github.io/infrasutra/tempinbox/internal/provider"
)

var sample = []provider.Summary{
	{ID: "1", From: "boss@example.com", Subject: "Quarterly numbers", Date: "2025-01-02 10:00:00"},
	{ID: "2", From: "newsletter@shop.test", Subject: "Your BOSS discount", Date: "2025-01-01 09:00:00"},
	{ID: "3", From: "friend@example.org", Subject: "lunch?", Date: "2024-12-31 08:00:00"},
}

func TestFilter_EmptyQueryIsIdentity(t *testing.T) {
	t.Parallel()

	got := Filter(sample, "")
	if !reflect.DeepEqual(got, sample) {
		t.Errorf("Filter(\"\"): got %v, want input unchanged", got)
	}
}

func TestFilter_WhitespaceIsMatchedLiterally(t *testing.T) {
	t.Parallel()

	if got := Filter(sample, "boss "); len(got) != 1 || got[0].ID != "2" {
		t.Errorf("Filter(\"boss \"): got %v, want only id 2", got)
	}
	if got := Filter(sample, "   "); len(got) != 0 {
		t.Errorf("Filter(spaces): got %v, want none", got)
	}
	if got := Filter(sample, " "); len(got) != 2 {
		t.Errorf("Filter(\" \"): got %v, want ids 1 and 2", got)
	}
}

func TestFilter_CaseInsensitiveFromOrSubject(t *testing.T) {
	t.Parallel()

	got := Filter(sample, "BOSS")
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("Filter(BOSS): got %v, want ids 1 and 2", got)
	}

	got = Filter(sample, "unc")
	if len(got) != 1 || got[0].ID != "3" {
		t.Errorf("Filter(unc) should match anywhere in subject: got %v", got)
	}

	got = Filter(sample, "nobody")
	if len(got) != 0 {
		t.Errorf("Filter(nobody): got %v, want none", got)
	}
}

func TestHumanTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"2025-01-02 10:00:00", "Jan 02, 2025 10:00"},
		{"2025-10-03T05:12:34.000+00:00", "Oct 03, 2025 05:12"},
		{"2025-10-03T05:12:34Z", "Oct 03, 2025 05:12"},
		{"2025-10-03T05:12:34", "Oct 03, 2025 05:12"},
		{"yesterday", "yesterday"},
	}
	for _, tt := range tests {
		if got := HumanTime(tt.raw); got != tt.want {
			t.Errorf("HumanTime(%q): got %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPreferredBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		detail   provider.Detail
		wantKind string
		wantBody string
	}{
		{"text wins", provider.Detail{TextBody: "hello", HTMLBody: "<p>hello</p>"}, BodyText, "hello"},
		{"html only", provider.Detail{TextBody: "", HTMLBody: "<p>hi</p>"}, BodyHTML, "<p>hi</p>"},
		{"blank text falls back", provider.Detail{TextBody: " \n", HTMLBody: "<p>hi</p>"}, BodyHTML, "<p>hi</p>"},
		{"nothing", provider.Detail{}, BodyNone, ""},
	}
	for _, tt := range tests {
		kind, body := PreferredBody(tt.detail)
		if kind != tt.wantKind || body != tt.wantBody {
			t.Errorf("%s: got (%q, %q), want (%q, %q)", tt.name, kind, body, tt.wantKind, tt.wantBody)
		}
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	read := map[string]struct{}{"1": {}, "gone": {}}
	got := Stats(sample, read)
	want := Counts{Total: 3, Unread: 2, Read: 1}
	if got != want {
		t.Errorf("Stats: got %+v, want %+v", got, want)
	}
}

func TestAttachmentName(t *testing.T) {
	t.Parallel()

	if got := AttachmentName(provider.Attachment{Filename: "a.txt"}); got != "a.txt" {
		t.Errorf("got %q, want %q", got, "a.txt")
	}
	if got := AttachmentName(provider.Attachment{}); got != "(attachment)" {
		t.Errorf("got %q, want %q", got, "(attachment)")
	}
}
