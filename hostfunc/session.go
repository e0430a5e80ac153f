package hostfunc

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Session is host-side HTTP client state addressed by an opaque handle.
// Calls on one session are serialized through mu.
type Session struct {
	ID string

	mu        sync.Mutex
	client    *http.Client
	transport *http.Transport
}

func (s *Session) close() {
	s.transport.CloseIdleConnections()
}

type SessionOption func(*SessionStore)

// WithMaxSessions bounds the number of live sessions. Zero means unbounded.
func WithMaxSessions(n int) SessionOption {
	return func(s *SessionStore) {
		s.max = n
	}
}

// WithTransport sets the transport template cloned for every new session.
func WithTransport(t *http.Transport) SessionOption {
	return func(s *SessionStore) {
		s.template = t
	}
}

// WithAllowedHosts applies the host allowlist to every redirect followed by
// a session's client. Empty allows every host.
func WithAllowedHosts(hosts []string) SessionOption {
	return func(s *SessionStore) {
		s.allowed = hosts
	}
}

const maxRedirects = 10

// SessionStore maps session handles to their client state.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	allowed  []string
	template *http.Transport
}

func NewSessionStore(opts ...SessionOption) *SessionStore {
	s := &SessionStore{sessions: make(map[string]*Session)}
	for _, opt := range opts {
		opt(s)
	}
	if s.template == nil {
		s.template = http.DefaultTransport.(*http.Transport)
	}
	return s
}

// Create allocates a session with an empty cookie jar and its own connection
// pool, and returns its handle.
func (s *SessionStore) Create() (string, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return "", fmt.Errorf("create cookie jar: %w", err)
	}
	transport := s.template.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.max > 0 && len(s.sessions) >= s.max {
		return "", fmt.Errorf("%w: limit is %d", ErrTooManySessions, s.max)
	}

	id := newHandle()
	for s.sessions[id] != nil {
		id = newHandle()
	}
	s.sessions[id] = &Session{
		ID:        id,
		transport: transport,
		client: &http.Client{
			Jar:           jar,
			Transport:     transport,
			CheckRedirect: s.checkRedirect,
		},
	}
	return id, nil
}

// checkRedirect keeps every hop of a redirect chain inside the allowlist.
func (s *SessionStore) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}
	if host := req.URL.Hostname(); !hostAllowed(s.allowed, host) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	return sess, ok
}

// Close destroys a session. It reports whether the handle existed.
func (s *SessionStore) Close(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.close()
	}
	return ok
}

func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func newHandle() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
