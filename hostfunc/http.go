package hostfunc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
)

type HTTPConfig struct {
	// AllowedHosts restricts requests to these hosts and their subdomains.
	// Empty allows every host.
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

// HTTP issues guest requests on sessions from a SessionStore.
type HTTP struct {
	cfg      HTTPConfig
	sessions *SessionStore
}

func NewHTTP(cfg HTTPConfig, sessions *SessionStore) *HTTP {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &HTTP{cfg: cfg, sessions: sessions}
}

// Execute sends req on its session. The request timeout covers the whole
// exchange including reading the response body.
func (h *HTTP) Execute(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
	sess, ok := h.sessions.Get(req.Session)
	if !ok {
		return HTTPResponse{}, fmt.Errorf("%w: %q", ErrUnknownSession, req.Session)
	}

	target, err := h.buildURL(req)
	if err != nil {
		return HTTPResponse{}, err
	}

	// The deadline starts once the session is ours, so waiting behind another
	// call on the same session does not eat into this request's timeout.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = h.cfg.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := newNativeRequest(ctx, req, target)
	if err != nil {
		return HTTPResponse{}, err
	}

	start := time.Now()
	resp, err := sess.client.Do(httpReq)
	if errors.Is(err, ErrHostNotAllowed) {
		return HTTPResponse{}, err
	}
	if err != nil {
		return HTTPResponse{}, h.execErr(ctx, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodySize))
	if err != nil {
		return HTTPResponse{}, h.execErr(ctx, timeout, err)
	}

	Logger().Debug("http request",
		zap.String("method", req.Method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return HTTPResponse{
		Status:  resp.StatusCode,
		Headers: headers,
		Text:    string(body),
		URL:     resp.Request.URL.String(),
	}, nil
}

func (h *HTTP) buildURL(req HTTPRequest) (string, error) {
	if len(req.URL) > h.cfg.MaxURLLength {
		return "", bridgeErr("exceeds max length", "url")
	}
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return "", bridgeErr("invalid url", "url")
	}
	if host := parsed.Hostname(); !h.isHostAllowed(host) {
		return "", fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	if len(req.Options.Query) > 0 {
		q := parsed.Query()
		for k, v := range req.Options.Query {
			q.Set(k, v)
		}
		parsed.RawQuery = q.Encode()
	}
	return parsed.String(), nil
}

func newNativeRequest(ctx context.Context, req HTTPRequest, target string) (*http.Request, error) {
	var body io.Reader
	var contentType string
	switch {
	case req.Options.JSON != nil:
		data, err := json.Marshal(req.Options.JSON)
		if err != nil {
			return nil, bridgeErr("not encodable: "+err.Error(), "json")
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.Options.Form != nil:
		form := url.Values{}
		for k, v := range req.Options.Form {
			form.Set(k, v)
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Options.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (h *HTTP) execErr(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ExecError{Kind: ExecTimeout, Message: timeout.String(), Cause: err}
	}
	return &ExecError{Kind: ExecTransport, Message: err.Error(), Cause: err}
}

func (h *HTTP) isHostAllowed(host string) bool {
	return hostAllowed(h.cfg.AllowedHosts, host)
}

// hostAllowed matches host against allowed entries and their subdomains.
func hostAllowed(allowed []string, host string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}
