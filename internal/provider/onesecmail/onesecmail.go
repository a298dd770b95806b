// Package onesecmail implements the 1secmail-style disposable mailbox API:
// one endpoint, with the operation selected by the "action" query parameter.
package onesecmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.io/infrasutra/tempinbox/internal/provider"
)

// Name is the registry key of this provider.
const Name = "onesecmail"

const (
	// DefaultBaseURL is the public 1secmail API endpoint.
	DefaultBaseURL = "https://www.1secmail.com/api/v1/"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of extra attempts after an HTTP 429.
	DefaultRetries = 1

	defaultRetryAfter = 2 * time.Second
)

// Config holds the configuration for creating a Provider.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider talks to a 1secmail-style API.
type Provider struct {
	baseURL    string
	retries    int
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a Provider, filling unset fields with defaults.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
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
		baseURL:    cfg.BaseURL,
		retries:    cfg.Retries,
		httpClient: client,
		logger:     logger,
		sleep:      sleepWithContext,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return Name
}

// Generate asks the API for one random mailbox.
func (p *Provider) Generate(ctx context.Context) (string, provider.State, error) {
	var mailboxes []string
	raw, err := p.get(ctx, url.Values{
		"action": {"genRandomMailbox"},
		"count":  {"1"},
	})
	if err != nil {
		return "", nil, err
	}
	if err := json.Unmarshal(raw, &mailboxes); err != nil || len(mailboxes) == 0 {
		return "", nil, fmt.Errorf("1secmail did not return a mailbox: %w", provider.ErrMalformedResponse)
	}

	address := strings.TrimSpace(mailboxes[0])
	login, domain, ok := strings.Cut(address, "@")
	if !ok || login == "" || domain == "" || strings.Contains(domain, "@") {
		return "", nil, fmt.Errorf("1secmail returned invalid address %q: %w", address, provider.ErrMalformedResponse)
	}
	return address, State{Login: login, Domain: domain}, nil
}

// ListMessages returns the mailbox's messages, newest first. A payload that
// is not a list of messages yields an empty inbox rather than an error.
func (p *Provider) ListMessages(ctx context.Context, state provider.State) ([]provider.Summary, error) {
	st, err := stateOf(state)
	if err != nil {
		return nil, err
	}
	raw, err := p.get(ctx, url.Values{
		"action": {"getMessages"},
		"login":  {st.Login},
		"domain": {st.Domain},
	})
	if err != nil {
		return nil, err
	}

	var entries []messageEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		p.logger.Debug("1secmail listing is not a message list", "error", err)
		return []provider.Summary{}, nil
	}

	out := make([]provider.Summary, 0, len(entries))
	for _, entry := range entries {
		out = append(out, provider.Summary{
			ID:      string(entry.ID),
			From:    entry.From,
			Subject: entry.Subject,
			Date:    entry.Date,
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
	raw, err := p.get(ctx, url.Values{
		"action": {"readMessage"},
		"login":  {st.Login},
		"domain": {st.Domain},
		"id":     {id},
	})
	if err != nil {
		return provider.Detail{}, err
	}

	var detail messageDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return provider.Detail{}, fmt.Errorf("decode 1secmail message %s: %w", id, provider.ErrMalformedResponse)
	}

	attachments := make([]provider.Attachment, 0, len(detail.Attachments))
	for _, a := range detail.Attachments {
		attachments = append(attachments, provider.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return provider.Detail{
		Summary: provider.Summary{
			ID:      string(detail.ID),
			From:    detail.From,
			Subject: detail.Subject,
			Date:    detail.Date,
		},
		TextBody:    detail.TextBody,
		HTMLBody:    detail.HTMLBody,
		Attachments: attachments,
	}, nil
}

// DecodeState restores a State serialized with provider.EncodeState.
func (p *Provider) DecodeState(raw []byte) (provider.State, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode 1secmail state: %w", err)
	}
	return st, nil
}

// get performs a GET with the given query. HTTP 429 responses are retried
// after Retry-After (default 2s) plus the attempt number in seconds; once
// retries are exhausted the last 429 is returned.
func (p *Provider) get(ctx context.Context, query url.Values) ([]byte, error) {
	endpoint := p.baseURL + "?" + query.Encode()

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		body, retryAfter, err := p.doGet(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if provider.StatusCode(err) != http.StatusTooManyRequests || attempt == p.retries {
			break
		}

		delay := retryAfter + time.Duration(attempt)*time.Second
		p.logger.Info("rate limited by 1secmail",
			"action", query.Get("action"),
			"attempt", attempt+1,
			"retry_after", delay,
		)
		if err := p.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("context cancelled during retry wait: %w", err)
		}
	}
	return nil, lastErr
}

// doGet performs a single request and returns the body on 2xx.
func (p *Provider) doGet(ctx context.Context, endpoint string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, &provider.NetworkError{Provider: Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &provider.NetworkError{Provider: Name, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &provider.HTTPError{
			Provider:   Name,
			StatusCode: resp.StatusCode,
			Body:       provider.TruncateBody(body),
		}
	}
	return body, 0, nil
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

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
