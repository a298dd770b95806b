package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/provider/mailtm"
	"github.io/infrasutra/tempinbox/internal/provider/onesecmail"
)

// fakeProvider is an in-memory provider with programmable failures.
type fakeProvider struct {
	name        string
	generateErr error
	listErr     error
	readErr     error
	messages    []provider.Summary
	listCalls   atomic.Int32
}

type fakeState struct {
	Owner string `json:"owner"`
	Box   string `json:"box"`
}

func (s fakeState) Provider() string { return s.Owner }

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(context.Context) (string, provider.State, error) {
	if f.generateErr != nil {
		return "", nil, f.generateErr
	}
	return "box@" + f.name + ".test", fakeState{Owner: f.name, Box: "box"}, nil
}

func (f *fakeProvider) ListMessages(context.Context, provider.State) ([]provider.Summary, error) {
	f.listCalls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]provider.Summary, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeProvider) ReadMessage(_ context.Context, _ provider.State, id string) (provider.Detail, error) {
	if f.readErr != nil {
		return provider.Detail{}, f.readErr
	}
	return provider.Detail{Summary: provider.Summary{ID: id}, TextBody: "body of " + id, Attachments: []provider.Attachment{}}, nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeManager(t *testing.T, providers ...*fakeProvider) (*Manager, *testClock) {
	t.Helper()
	registry := provider.NewRegistry()
	for _, p := range providers {
		registry.Register(p, p.name)
	}
	clock := &testClock{now: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)}
	m := NewManager(Config{
		Registry:        registry,
		DefaultProvider: providers[0].name,
		PollInterval:    2 * time.Second,
		Logger:          discardLogger(),
		Now:             clock.Now,
	})
	return m, clock
}

func TestGenerate_CommitsMailbox(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "alpha"}
	m, _ := newFakeManager(t, primary, &fakeProvider{name: "beta"})

	s := m.New("s1")
	s.Messages = []provider.Summary{{ID: "stale"}}
	s.Read["stale"] = struct{}{}

	res, err := m.Generate(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FellBack {
		t.Error("FellBack should be false")
	}
	if s.Address != "box@alpha.test" || s.State == nil || s.Provider != "alpha" {
		t.Errorf("session: address %q provider %q state %v", s.Address, s.Provider, s.State)
	}
	if len(s.Messages) != 0 || len(s.Read) != 0 {
		t.Error("cache and read set must be cleared with a new address")
	}
}

func TestGenerate_FailureLeavesSessionUntouched(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "alpha"}
	m, _ := newFakeManager(t, primary, &fakeProvider{name: "beta"})

	s := m.New("s1")
	if _, err := m.Generate(context.Background(), s); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	primary.generateErr = &provider.HTTPError{Provider: "alpha", StatusCode: http.StatusInternalServerError}

	_, err := m.Generate(context.Background(), s)
	if provider.StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500 error, got %v", err)
	}
	if s.Address != "box@alpha.test" || s.Provider != "alpha" {
		t.Errorf("session changed after failure: %q on %q", s.Address, s.Provider)
	}
}

func TestGenerate_NonForbiddenDoesNotFallBack(t *testing.T) {
	t.Parallel()
	primary := &fakeProvider{name: "alpha", generateErr: &provider.NetworkError{Provider: "alpha", Err: errors.New("timeout")}}
	backup := &fakeProvider{name: "beta"}
	m, _ := newFakeManager(t, primary, backup)

	s := m.New("s1")
	_, err := m.Generate(context.Background(), s)
	if !provider.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if s.Provider != "alpha" || s.HasMailbox() {
		t.Errorf("session should be unchanged, got provider %q address %q", s.Provider, s.Address)
	}
}

func TestGenerate_FallbackAlsoFails(t *testing.T) {
	t.Parallel()
	forbidden := &provider.HTTPError{Provider: "alpha", StatusCode: http.StatusForbidden}
	backupErr := errors.New("beta down")
	m, _ := newFakeManager(t,
		&fakeProvider{name: "alpha", generateErr: forbidden},
		&fakeProvider{name: "beta", generateErr: backupErr},
	)

	s := m.New("s1")
	_, err := m.Generate(context.Background(), s)
	var fbErr *FallbackError
	if !errors.As(err, &fbErr) {
		t.Fatalf("expected *FallbackError, got %T: %v", err, err)
	}
	if fbErr.Primary != "alpha" || fbErr.Fallback != "beta" {
		t.Errorf("FallbackError: got %+v", fbErr)
	}
	if !errors.Is(err, backupErr) || !provider.IsForbidden(err) {
		t.Error("FallbackError must carry both causes")
	}
	if s.Provider != "alpha" || s.HasMailbox() {
		t.Errorf("session should be unchanged, got provider %q address %q", s.Provider, s.Address)
	}
}

func TestGenerate_OneSecMailForbiddenFallsBackToMailTm(t *testing.T) {
	t.Parallel()

	oneSec := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer oneSec.Close()

	var listed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/domains", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hydra:member":[{"domain":"example.tm"}]}`))
	})
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"acc"}`))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"acc","token":"tok"}`))
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		listed.Add(1)
		w.Write([]byte(`{"hydra:member":[]}`))
	})
	mailTm := httptest.NewServer(mux)
	defer mailTm.Close()

	registry := provider.NewRegistry()
	registry.Register(onesecmail.New(onesecmail.Config{BaseURL: oneSec.URL, HTTPClient: oneSec.Client(), Logger: discardLogger()}), "1secmail")
	registry.Register(mailtm.New(mailtm.Config{BaseURL: mailTm.URL, HTTPClient: mailTm.Client(), Logger: discardLogger()}), "Mail.tm")
	m := NewManager(Config{Registry: registry, DefaultProvider: onesecmail.Name, Logger: discardLogger()})

	s := m.New("s1")
	res, err := m.Generate(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.FellBack || res.Refused != onesecmail.Name {
		t.Errorf("result: got %+v, want fallback from onesecmail", res)
	}
	if s.Provider != mailtm.Name {
		t.Errorf("active provider: got %q, want %q", s.Provider, mailtm.Name)
	}
	if s.Address == "" || s.State == nil {
		t.Fatal("address and state must be set after fallback")
	}
	if s.State.Provider() != mailtm.Name {
		t.Errorf("state owner: got %q, want %q", s.State.Provider(), mailtm.Name)
	}

	listing, err := m.Inbox(context.Background(), s, false)
	if err != nil {
		t.Fatalf("inbox after fallback: %v", err)
	}
	if !listing.Fetched || len(listing.Messages) != 0 || listed.Load() != 1 {
		t.Errorf("listing: %+v, calls %d", listing, listed.Load())
	}
}

func TestInbox_RequiresMailbox(t *testing.T) {
	t.Parallel()
	m, _ := newFakeManager(t, &fakeProvider{name: "alpha"})

	_, err := m.Inbox(context.Background(), m.New("s1"), false)
	if !errors.Is(err, ErrNoMailbox) {
		t.Errorf("got %v, want ErrNoMailbox", err)
	}
}

func TestInbox_ThrottlesAndReusesCache(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "alpha", messages: []provider.Summary{{ID: "1", Date: "2025-01-02 10:00:00"}}}
	m, clock := newFakeManager(t, p)
	s := m.New("s1")
	if _, err := m.Generate(context.Background(), s); err != nil {
		t.Fatalf("generate: %v", err)
	}

	first, err := m.Inbox(context.Background(), s, false)
	if err != nil || !first.Fetched {
		t.Fatalf("first inbox: %+v %v", first, err)
	}

	p.messages = append(p.messages, provider.Summary{ID: "2"})
	clock.Advance(time.Second)
	second, err := m.Inbox(context.Background(), s, false)
	if err != nil {
		t.Fatalf("second inbox: %v", err)
	}
	if second.Fetched {
		t.Error("second call within the interval must not fetch")
	}
	if len(second.Messages) != 1 || second.RetryIn != time.Second {
		t.Errorf("second listing: %+v", second)
	}

	clock.Advance(time.Second)
	third, err := m.Inbox(context.Background(), s, false)
	if err != nil || !third.Fetched || len(third.Messages) != 2 {
		t.Errorf("third listing after interval: %+v %v", third, err)
	}
	if p.listCalls.Load() != 2 {
		t.Errorf("provider list calls: got %d, want 2", p.listCalls.Load())
	}
}

func TestInbox_ForceBypassesThrottle(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "alpha"}
	m, _ := newFakeManager(t, p)
	s := m.New("s1")
	m.Generate(context.Background(), s)

	m.Inbox(context.Background(), s, false)
	listing, err := m.Inbox(context.Background(), s, true)
	if err != nil || !listing.Fetched {
		t.Errorf("forced inbox: %+v %v", listing, err)
	}
}

func TestInbox_ErrorKeepsStaleCache(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "alpha", messages: []provider.Summary{{ID: "1"}}}
	m, clock := newFakeManager(t, p)
	s := m.New("s1")
	m.Generate(context.Background(), s)
	if _, err := m.Inbox(context.Background(), s, false); err != nil {
		t.Fatalf("inbox: %v", err)
	}

	p.listErr = &provider.HTTPError{Provider: "alpha", StatusCode: http.StatusBadGateway}
	clock.Advance(5 * time.Second)
	listing, err := m.Inbox(context.Background(), s, false)
	if provider.StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	if !listing.Stale || len(listing.Messages) != 1 || listing.Messages[0].ID != "1" {
		t.Errorf("listing: got %+v, want stale cached message", listing)
	}
	if len(s.Messages) != 1 {
		t.Error("cache must survive a failed fetch")
	}
}

func TestOpen_MarksReadOnSuccessOnly(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{name: "alpha"}
	m, _ := newFakeManager(t, p)
	s := m.New("s1")
	m.Generate(context.Background(), s)

	detail, err := m.Open(context.Background(), s, "42")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if detail.ID != "42" || !s.IsRead("42") {
		t.Errorf("detail %+v read=%v", detail, s.IsRead("42"))
	}

	p.readErr = &provider.HTTPError{Provider: "alpha", StatusCode: http.StatusNotFound}
	if _, err := m.Open(context.Background(), s, "43"); provider.StatusCode(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
	if s.IsRead("43") {
		t.Error("failed open must not mark read")
	}
}

func TestSwitchProvider_ClearsMailboxTogether(t *testing.T) {
	t.Parallel()
	m, _ := newFakeManager(t, &fakeProvider{name: "alpha"}, &fakeProvider{name: "beta"})
	s := m.New("s1")
	m.Generate(context.Background(), s)
	m.Inbox(context.Background(), s, false)
	m.Open(context.Background(), s, "1")

	if err := m.SwitchProvider(s, "beta"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if s.Provider != "beta" || s.Address != "" || s.State != nil || len(s.Messages) != 0 || len(s.Read) != 0 || !s.Gate.Last.IsZero() {
		t.Errorf("session not cleared: %+v", s)
	}

	if err := m.SwitchProvider(s, "gamma"); !errors.Is(err, provider.ErrUnknownProvider) {
		t.Errorf("unknown provider: got %v", err)
	}
	if s.Provider != "beta" {
		t.Errorf("failed switch changed provider to %q", s.Provider)
	}
}

func TestSource_Unsupported(t *testing.T) {
	t.Parallel()
	m, _ := newFakeManager(t, &fakeProvider{name: "alpha"})
	s := m.New("s1")
	m.Generate(context.Background(), s)

	if m.SupportsSource(s) {
		t.Error("fake provider does not read sources")
	}
	if _, err := m.Source(context.Background(), s, "1"); !errors.Is(err, ErrSourceUnsupported) {
		t.Errorf("got %v, want ErrSourceUnsupported", err)
	}
}

func TestNewManager_UnknownDefaultProvider(t *testing.T) {
	t.Parallel()
	registry := provider.NewRegistry()
	registry.Register(&fakeProvider{name: "alpha"}, "")
	m := NewManager(Config{Registry: registry, DefaultProvider: "missing", Logger: discardLogger()})

	if got := m.New("s").Provider; got != "alpha" {
		t.Errorf("default provider: got %q, want %q", got, "alpha")
	}
}
