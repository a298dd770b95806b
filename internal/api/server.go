package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.io/infrasutra/tempinbox/internal/auth"
	"github.io/infrasutra/tempinbox/internal/config"
	"github.io/infrasutra/tempinbox/internal/inbox"
	"github.io/infrasutra/tempinbox/internal/pagination"
	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/rawmail"
	"github.io/infrasutra/tempinbox/internal/session"
	"github.io/infrasutra/tempinbox/internal/store"
	webassets "github.io/infrasutra/tempinbox/web"
)

type Server struct {
	cfg      config.Config
	store    *store.Store
	auth     *auth.Manager
	sessions *session.Manager
	locks    *keyedMutex
	logger   *slog.Logger
	now      func() time.Time
	mux      *http.ServeMux
	staticFS fs.FS
	staticOK bool
}

func NewServer(cfg config.Config, store *store.Store, authManager *auth.Manager, sessions *session.Manager, logger *slog.Logger) *Server {
	staticFS, err := webassets.Dist()
	staticOK := err == nil
	if err != nil {
		logger.Warn("ui assets not embedded", "error", err)
	}
	server := &Server{
		cfg:      cfg,
		store:    store,
		auth:     authManager,
		sessions: sessions,
		locks:    newKeyedMutex(),
		logger:   logger,
		now:      time.Now,
		staticFS: staticFS,
		staticOK: staticOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", server.handleSession)
	mux.HandleFunc("/api/mailbox", server.handleMailbox)
	mux.HandleFunc("/api/provider", server.handleProvider)
	mux.HandleFunc("/api/messages", server.handleMessages)
	mux.HandleFunc("/api/messages/", server.handleMessage)
	server.mux = mux
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") {
		s.mux.ServeHTTP(w, r)
		return
	}
	if path == "/health" {
		s.handleHealth(w, r)
		return
	}
	if path == "/ready" {
		s.handleReady(w, r)
		return
	}
	if path == "/metrics" {
		s.handleMetrics(w, r)
		return
	}

	s.serveStatic(w, r)
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if !s.staticOK {
		s.respondText(w, http.StatusNotFound, "UI assets missing from build.")
		return
	}

	cleaned := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if cleaned == "" {
		cleaned = "index.html"
	}

	if strings.HasPrefix(cleaned, "assets/") {
		if s.serveEmbeddedFile(w, r, cleaned) {
			return
		}
		http.NotFound(w, r)
		return
	}

	if s.serveEmbeddedFile(w, r, cleaned) {
		return
	}

	if s.serveEmbeddedFile(w, r, "index.html") {
		return
	}

	s.respondText(w, http.StatusNotFound, "UI assets missing from build.")
}

func (s *Server) serveEmbeddedFile(w http.ResponseWriter, r *http.Request, name string) bool {
	file, err := s.staticFS.Open(name)
	if err != nil {
		return false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	if seeker, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Name(), info.ModTime(), seeker)
		return true
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return false
	}
	reader := bytes.NewReader(data)
	http.ServeContent(w, r, info.Name(), info.ModTime(), reader)
	return true
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.withSession(w, r, func(sess *session.Session) {
		s.respondJSON(w, http.StatusOK, s.sessionView(sess))
	})
}

func (s *Server) handleMailbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.withSession(w, r, func(sess *session.Session) {
		result, err := s.sessions.Generate(r.Context(), sess)
		if err != nil {
			s.respondFailure(w, err)
			return
		}
		response := struct {
			sessionResponse
			FellBack bool   `json:"fellBack"`
			Notice   string `json:"notice,omitempty"`
		}{
			sessionResponse: s.sessionView(sess),
			FellBack:        result.FellBack,
		}
		if result.FellBack {
			response.Notice = fmt.Sprintf("%s refused the request (HTTP 403); created the address on %s instead.",
				s.sessions.Registry().Label(result.Refused),
				s.sessions.Registry().Label(result.Provider),
			)
		}
		s.respondJSON(w, http.StatusOK, response)
	})
}

func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	s.withSession(w, r, func(sess *session.Session) {
		if err := s.sessions.SwitchProvider(sess, strings.TrimSpace(payload.Provider)); err != nil {
			http.Error(w, "unknown provider", http.StatusBadRequest)
			return
		}
		s.respondJSON(w, http.StatusOK, s.sessionView(sess))
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	search := query.Get("search")
	force, _ := strconv.ParseBool(query.Get("refresh"))
	params := pagination.FromQuery(query)

	s.withSession(w, r, func(sess *session.Session) {
		listing, err := s.sessions.Inbox(r.Context(), sess, force)
		if errors.Is(err, session.ErrNoMailbox) {
			s.respondFailure(w, err)
			return
		}

		matched := inbox.Filter(listing.Messages, search)
		if params.Oldest() {
			matched = slices.Clone(matched)
			slices.Reverse(matched)
		}
		start, end := params.Window(len(matched))

		response := messagesResponse{
			Address:   sess.Address,
			Provider:  sess.Provider,
			Messages:  make([]messageSummary, 0, end-start),
			Stats:     inbox.Stats(listing.Messages, sess.Read),
			Matched:   len(matched),
			Page:      params.Page,
			Limit:     params.Limit,
			HasNext:   params.HasNext(len(matched)),
			Fetched:   listing.Fetched,
			Stale:     listing.Stale,
			RetryInMS: listing.RetryIn.Milliseconds(),
		}
		for _, msg := range matched[start:end] {
			response.Messages = append(response.Messages, toSummary(msg, sess.IsRead(msg.ID)))
		}
		if err != nil {
			response.Error = toErrorBody(err)
		}
		s.respondJSON(w, http.StatusOK, response)
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(parts) == 1:
		s.withSession(w, r, func(sess *session.Session) {
			s.handleMessageDetail(w, r, sess, id)
		})
	case len(parts) == 2 && parts[1] == "raw":
		s.withSession(w, r, func(sess *session.Session) {
			s.handleMessageRaw(w, r, sess, id)
		})
	case len(parts) == 2 && parts[1] == "headers":
		s.withSession(w, r, func(sess *session.Session) {
			s.handleMessageHeaders(w, r, sess, id)
		})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleMessageDetail(w http.ResponseWriter, r *http.Request, sess *session.Session, id string) {
	d, err := s.sessions.Open(r.Context(), sess, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	kind, body := inbox.PreferredBody(d)
	detail := messageDetail{
		messageSummary: toSummary(d.Summary, true),
		Text:           d.TextBody,
		HTML:           d.HTMLBody,
		Preferred:      kind,
		Body:           body,
		Attachments:    make([]attachmentSummary, 0, len(d.Attachments)),
		HasSource:      s.sessions.SupportsSource(sess),
	}
	for _, a := range d.Attachments {
		detail.Attachments = append(detail.Attachments, attachmentSummary{
			Filename:    inbox.AttachmentName(a),
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleMessageRaw(w http.ResponseWriter, r *http.Request, sess *session.Session, id string) {
	raw, err := s.sessions.Source(r.Context(), sess, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "message/rfc822")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=message-%s.eml", sanitizeFilename(id)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleMessageHeaders(w http.ResponseWriter, r *http.Request, sess *session.Session, id string) {
	raw, err := s.sessions.Source(r.Context(), sess, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	parsed, err := rawmail.Parse(raw)
	response := struct {
		rawmail.Message
		ParseError string `json:"parseError,omitempty"`
	}{Message: parsed}
	if err != nil {
		s.logger.Warn("parse message source", "session", sess.ID, "message", id, "error", err)
		response.ParseError = err.Error()
	}
	s.respondJSON(w, http.StatusOK, response)
}

// respondFailure maps session and provider errors onto a status code and a
// JSON body carrying the error kind.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, session.ErrNoMailbox):
		status = http.StatusConflict
	case errors.Is(err, session.ErrSourceUnsupported):
		status = http.StatusNotImplemented
	case errorKind(err) == "internal":
		status = http.StatusInternalServerError
	}
	s.respondJSON(w, status, toErrorBody(err))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.respondText(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.respondText(w, http.StatusOK, "ready")
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountSessions(r.Context())
	if err != nil {
		s.respondText(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.respondText(w, http.StatusOK, fmt.Sprintf("tempinbox_sessions %d\n", count))
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

type providerInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type sessionResponse struct {
	Address        string         `json:"address"`
	Provider       string         `json:"provider"`
	ProviderLabel  string         `json:"providerLabel"`
	Providers      []providerInfo `json:"providers"`
	HasMailbox     bool           `json:"hasMailbox"`
	PollIntervalMS int64          `json:"pollIntervalMs"`
}

func (s *Server) sessionView(sess *session.Session) sessionResponse {
	registry := s.sessions.Registry()
	view := sessionResponse{
		Address:        sess.Address,
		Provider:       sess.Provider,
		ProviderLabel:  registry.Label(sess.Provider),
		Providers:      []providerInfo{},
		HasMailbox:     sess.HasMailbox(),
		PollIntervalMS: s.sessions.PollInterval().Milliseconds(),
	}
	for _, name := range registry.Names() {
		view.Providers = append(view.Providers, providerInfo{Name: name, Label: registry.Label(name)})
	}
	return view
}

type messageSummary struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Date      string `json:"date"`
	HumanDate string `json:"humanDate"`
	Read      bool   `json:"read"`
}

type messageDetail struct {
	messageSummary
	Text        string              `json:"text"`
	HTML        string              `json:"html"`
	Preferred   string              `json:"preferred"`
	Body        string              `json:"body"`
	Attachments []attachmentSummary `json:"attachments"`
	HasSource   bool                `json:"hasSource"`
}

type attachmentSummary struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type messagesResponse struct {
	Address   string           `json:"address"`
	Provider  string           `json:"provider"`
	Messages  []messageSummary `json:"messages"`
	Stats     inbox.Counts     `json:"stats"`
	Matched   int              `json:"matched"`
	Page      int              `json:"page"`
	Limit     int              `json:"limit"`
	HasNext   bool             `json:"hasNext"`
	Fetched   bool             `json:"fetched"`
	Stale     bool             `json:"stale"`
	RetryInMS int64            `json:"retryInMs"`
	Error     *errorBody       `json:"error,omitempty"`
}

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Status int    `json:"status,omitempty"`
}

func toSummary(msg provider.Summary, read bool) messageSummary {
	return messageSummary{
		ID:        msg.ID,
		From:      msg.From,
		Subject:   msg.Subject,
		Date:      msg.Date,
		HumanDate: inbox.HumanTime(msg.Date),
		Read:      read,
	}
}

func toErrorBody(err error) *errorBody {
	body := &errorBody{Error: err.Error(), Kind: errorKind(err)}
	var fbErr *session.FallbackError
	if errors.As(err, &fbErr) {
		body.Status = provider.StatusCode(fbErr.FallbackErr)
	} else {
		body.Status = provider.StatusCode(err)
	}
	return body
}

// errorKind classifies err for clients. A failed fallback is reported by
// the kind of the backup provider's failure.
func errorKind(err error) string {
	var fbErr *session.FallbackError
	switch {
	case errors.Is(err, session.ErrNoMailbox):
		return "no_mailbox"
	case errors.Is(err, session.ErrSourceUnsupported):
		return "unsupported"
	case errors.As(err, &fbErr):
		return provider.Kind(fbErr.FallbackErr)
	default:
		return provider.Kind(err)
	}
}

func sanitizeFilename(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}
