// Package mailtm implements the Mail.tm disposable mailbox API: accounts are
// created with a random address and password, then every call is
// authenticated with a bearer token.
package mailtm

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.io/infrasutra/tempinbox/internal/provider"
)

// Name is the registry key of this provider.
const Name = "mailtm"

const (
	// DefaultBaseURL is the public Mail.tm API endpoint.
	DefaultBaseURL = "https://api.mail.tm"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 15 * time.Second

	localPartLength = 10
	passwordLength  = 14
	alphabet        = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Config holds the configuration for creating a Provider.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider talks to a Mail.tm-style API.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Provider, filling unset fields with defaults.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return Name
}

// Generate creates an account on the first available domain and exchanges
// its credentials for a token.
func (p *Provider) Generate(ctx context.Context) (string, provider.State, error) {
	domain, err := p.firstDomain(ctx)
	if err != nil {
		return "", nil, err
	}

	localPart, err := randomString(localPartLength)
	if err != nil {
		return "", nil, err
	}
	password, err := randomString(passwordLength)
	if err != nil {
		return "", nil, err
	}
	creds := credentials{Address: localPart + "@" + domain, Password: password}

	if err := p.do(ctx, http.MethodPost, "/accounts", "", creds, nil); err != nil {
		return "", nil, fmt.Errorf("create account: %w", err)
	}

	var tok tokenResponse
	if err := p.do(ctx, http.MethodPost, "/token", "", creds, &tok); err != nil {
		return "", nil, fmt.Errorf("request token: %w", err)
	}
	if tok.Token == "" {
		return "", nil, fmt.Errorf("Mail.tm did not return a token: %w", provider.ErrMalformedResponse)
	}

	p.logger.Debug("created Mail.tm account", "address", creds.Address)
	return creds.Address, State{Token: tok.Token, Address: creds.Address}, nil
}

// ListMessages returns the account's messages, newest first.
func (p *Provider) ListMessages(ctx context.Context, state provider.State) ([]provider.Summary, error) {
	st, err := stateOf(state)
	if err != nil {
		return nil, err
	}
	var page collection[message]
	if err := p.do(ctx, http.MethodGet, "/messages", st.Token, nil, &page); err != nil {
		return nil, err
	}

	out := make([]provider.Summary, 0, len(page.Members))
	for _, m := range page.Members {
		out = append(out, provider.Summary{
			ID:      m.ID,
			From:    m.From.String(),
			Subject: m.Subject,
			Date:    m.date(),
		})
	}
	provider.SortNewestFirst(out)
	return out, nil
}

// ReadMessage fetches one message with its bodies and attachment list.
func (p *Provider) ReadMessage(ctx context.Context, state provider.State, id string) (provider.Detail, error) {
	st, err := stateOf(state)
	if err != nil {
		return provider.Detail{}, err
	}
	var d messageDetail
	if err := p.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(id), st.Token, nil, &d); err != nil {
		return provider.Detail{}, err
	}

	attachments := make([]provider.Attachment, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		attachments = append(attachments, provider.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return provider.Detail{
		Summary: provider.Summary{
			ID:      d.ID,
			From:    d.From.String(),
			Subject: d.Subject,
			Date:    d.date(),
		},
		TextBody:    d.Text,
		HTMLBody:    string(d.HTML),
		Attachments: attachments,
	}, nil
}

// ReadSource returns the raw RFC 822 source of a message.
func (p *Provider) ReadSource(ctx context.Context, state provider.State, id string) ([]byte, error) {
	st, err := stateOf(state)
	if err != nil {
		return nil, err
	}
	var src source
	if err := p.do(ctx, http.MethodGet, "/sources/"+url.PathEscape(id), st.Token, nil, &src); err != nil {
		return nil, err
	}
	if src.Data == "" {
		return nil, fmt.Errorf("Mail.tm returned an empty source for %s: %w", id, provider.ErrMalformedResponse)
	}
	return []byte(src.Data), nil
}

// DecodeState restores a State serialized with provider.EncodeState.
func (p *Provider) DecodeState(raw []byte) (provider.State, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode Mail.tm state: %w", err)
	}
	return st, nil
}

func (p *Provider) firstDomain(ctx context.Context) (string, error) {
	var page collection[domain]
	if err := p.do(ctx, http.MethodGet, "/domains?page=1", "", nil, &page); err != nil {
		return "", fmt.Errorf("list domains: %w", err)
	}
	if len(page.Members) == 0 || page.Members[0].Domain == "" {
		return "", fmt.Errorf("Mail.tm returned no domains: %w", provider.ErrMalformedResponse)
	}
	return page.Members[0].Domain, nil
}

// do performs one request. payload is sent as JSON when non-nil and the
// response is decoded into out when non-nil.
func (p *Provider) do(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/ld+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &provider.NetworkError{Provider: Name, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &provider.NetworkError{Provider: Name, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &provider.HTTPError{
			Provider:   Name,
			StatusCode: resp.StatusCode,
			Body:       provider.TruncateBody(data),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, provider.ErrMalformedResponse)
	}
	return nil
}

func stateOf(state provider.State) (State, error) {
	switch st := state.(type) {
	case State:
		return st, nil
	case *State:
		if st != nil {
			return *st, nil
		}
	}
	return State{}, provider.ErrStateMismatch
}

// randomString returns n characters drawn uniformly from a lowercase
// alphanumeric alphabet.
func randomString(n int) (string, error) {
	return randomStringFrom(rand.Reader, n)
}

func randomStringFrom(r io.Reader, n int) (string, error) {
	size := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(r, size)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
