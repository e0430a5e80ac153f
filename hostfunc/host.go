package hostfunc

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type HostConfig struct {
	HTTP        HTTPConfig
	DNS         DNSConfig
	MaxSessions int
}

// Host is the capability set bound into one script execution. It owns the
// execution's sessions and its error sentinel.
type Host struct {
	sessions *SessionStore
	errs     *ErrorSlot
	http     *HTTP
	dns      *DNS
}

func NewHost(cfg HostConfig) *Host {
	sessions := NewSessionStore(
		WithMaxSessions(cfg.MaxSessions),
		WithAllowedHosts(cfg.HTTP.AllowedHosts),
	)
	return &Host{
		sessions: sessions,
		errs:     &ErrorSlot{},
		http:     NewHTTP(cfg.HTTP, sessions),
		dns:      NewDNS(cfg.DNS),
	}
}

// Register binds the host's guest functions into r.
func (h *Host) Register(r *Registry) {
	r.Register("http_mksession", h.fallible("http_mksession", h.mksession))
	r.Register("http_request", h.fallible("http_request", h.request), "session", "method", "url", "options")
	r.Register("http_send", h.fallible("http_send", h.send), "request")
	r.Register("http_close", h.closeSession, "session")
	r.Register("dns", h.fallible("dns", h.resolve), "name", "options")
	r.Register("last_err", h.lastErr)
	r.Register("clear_err", h.clearErr)
}

// Sessions exposes the host's session store.
func (h *Host) Sessions() *SessionStore {
	return h.sessions
}

// LastError returns the error currently held by the sentinel.
func (h *Host) LastError() error {
	return h.errs.Err()
}

// Close destroys every session created during the execution.
func (h *Host) Close() {
	h.sessions.CloseAll()
}

// fallible turns a failing call into a nil result plus a sentinel entry. The
// sentinel is cleared on entry so a successful call never leaves a stale error.
func (h *Host) fallible(name string, fn Func) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		h.errs.Clear()
		result, err := fn(ctx, args)
		if err != nil {
			Logger().Debug("host call failed", zap.String("fn", name), zap.Error(err))
			h.errs.Set(err)
			return nil, nil
		}
		return result, nil
	}
}

func (h *Host) mksession(ctx context.Context, args map[string]any) (any, error) {
	return h.sessions.Create()
}

func (h *Host) request(ctx context.Context, args map[string]any) (any, error) {
	session, ok := args["session"].(string)
	if !ok {
		return nil, bridgeErr("expected string, got "+typeName(args["session"]), "session")
	}
	if _, ok := h.sessions.Get(session); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, session)
	}
	method, ok := args["method"].(string)
	if !ok {
		return nil, bridgeErr("expected string, got "+typeName(args["method"]), "method")
	}
	rawURL, ok := args["url"].(string)
	if !ok {
		return nil, bridgeErr("expected string, got "+typeName(args["url"]), "url")
	}
	opts, err := ParseOptions(args["options"])
	if err != nil {
		return nil, fmt.Errorf("invalid request options: %w", err)
	}
	req, err := NewHTTPRequest(session, method, rawURL, opts)
	if err != nil {
		return nil, err
	}
	return RequestValue(req), nil
}

func (h *Host) send(ctx context.Context, args map[string]any) (any, error) {
	req, err := ParseRequest(args["request"])
	if err != nil {
		return nil, fmt.Errorf("invalid http request object: %w", err)
	}
	resp, err := h.http.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return ResponseValue(resp), nil
}

func (h *Host) closeSession(ctx context.Context, args map[string]any) (any, error) {
	session, _ := args["session"].(string)
	return h.sessions.Close(session), nil
}

func (h *Host) resolve(ctx context.Context, args map[string]any) (any, error) {
	q, err := ParseDNSQuery(args["name"], args["options"])
	if err != nil {
		return nil, err
	}
	resp, err := h.dns.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	return DNSValue(resp), nil
}

func (h *Host) lastErr(ctx context.Context, args map[string]any) (any, error) {
	if err := h.errs.Err(); err != nil {
		return err.Error(), nil
	}
	return nil, nil
}

func (h *Host) clearErr(ctx context.Context, args map[string]any) (any, error) {
	h.errs.Clear()
	return nil, nil
}
