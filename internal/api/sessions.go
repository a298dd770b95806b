package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.io/infrasutra/tempinbox/internal/auth"
	"github.io/infrasutra/tempinbox/internal/session"
	"github.io/infrasutra/tempinbox/internal/store"
)

// withSession resolves the caller's session, runs fn with exclusive access
// to it and persists the result. Requests without a valid cookie get a new
// session and cookie.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*session.Session)) {
	ctx := r.Context()
	now := s.now()
	id, fresh := s.sessionID(r, now)

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.loadSession(ctx, id, fresh, now)
	if err != nil {
		s.logger.Error("load session", "session", id, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, &errorBody{Error: "unable to load session", Kind: "internal"})
		return
	}
	if fresh {
		token, err := s.auth.Issue(id, now)
		if err != nil {
			s.logger.Error("issue session token", "error", err)
			s.respondJSON(w, http.StatusInternalServerError, &errorBody{Error: "unable to create session", Kind: "internal"})
			return
		}
		s.setSessionCookie(w, token, now)
	}

	fn(sess)

	rec, err := s.sessions.Record(sess)
	if err != nil {
		s.logger.Error("encode session", "session", id, "error", err)
		return
	}
	// The request may already be cancelled; the session must still be saved.
	if err := s.store.SaveSession(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("save session", "session", id, "error", err)
	}
}

func (s *Server) sessionID(r *http.Request, now time.Time) (string, bool) {
	cookie, err := r.Cookie(s.auth.CookieName())
	if err != nil {
		return auth.NewSessionID(), true
	}
	id, err := s.auth.Parse(cookie.Value, now)
	if err != nil {
		s.logger.Debug("discarding session cookie", "error", err)
		return auth.NewSessionID(), true
	}
	return id, false
}

func (s *Server) loadSession(ctx context.Context, id string, fresh bool, now time.Time) (*session.Session, error) {
	if !fresh {
		rec, err := s.store.GetSession(ctx, id)
		if err == nil {
			return s.sessions.Restore(rec), nil
		}
		if !errors.Is(err, store.ErrSessionNotFound) {
			return nil, err
		}
	}

	if s.cfg.SessionTTL > 0 {
		pruned, err := s.store.PruneSessions(ctx, now.Add(-s.cfg.SessionTTL))
		if err != nil {
			s.logger.Warn("prune sessions", "error", err)
		} else if pruned > 0 {
			s.logger.Info("pruned idle sessions", "count", pruned)
		}
	}
	return s.sessions.New(id), nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, now time.Time) {
	cookie := &http.Cookie{
		Name:     s.auth.CookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// Without a max age the cookie lives for the browser session.
	if maxAge := s.auth.MaxAge(); maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = now.Add(maxAge)
	}
	http.SetCookie(w, cookie)
}

// keyedMutex serializes work per session id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
