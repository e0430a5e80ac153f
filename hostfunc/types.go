package hostfunc

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// HTTP types

// RequestOptions are the guest-controlled knobs of one HTTP call.
// At most one of JSON and Form is set.
type RequestOptions struct {
	Headers map[string]string
	Query   map[string]string
	JSON    any
	Form    map[string]string
	// Timeout bounds the whole call. Zero means the executor default.
	Timeout time.Duration
}

func (o RequestOptions) Validate() error {
	if o.JSON != nil && o.Form != nil {
		return bridgeErr("json and form bodies are mutually exclusive")
	}
	if o.Timeout < 0 {
		return bridgeErr("must be positive", "timeout")
	}
	return nil
}

// HTTPRequest is a fully validated request ready to be sent on a session.
type HTTPRequest struct {
	Session string
	Method  string
	URL     string
	Options RequestOptions
}

func NewHTTPRequest(session, method, rawURL string, opts RequestOptions) (HTTPRequest, error) {
	if session == "" {
		return HTTPRequest{}, bridgeErr("required", "session")
	}
	method = strings.ToUpper(method)
	switch method {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
	default:
		return HTTPRequest{}, bridgeErr(fmt.Sprintf("unsupported method %q", method), "method")
	}
	if rawURL == "" {
		return HTTPRequest{}, bridgeErr("required", "url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return HTTPRequest{}, bridgeErr("invalid url", "url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return HTTPRequest{}, bridgeErr("scheme must be http or https", "url")
	}
	if err := opts.Validate(); err != nil {
		return HTTPRequest{}, err
	}
	return HTTPRequest{
		Session: session,
		Method:  method,
		URL:     rawURL,
		Options: opts,
	}, nil
}

type HTTPResponse struct {
	Status  int
	Headers map[string]string
	Text    string
	// URL is the final location after redirects.
	URL string
}

// DNS types

type DNSQuery struct {
	Name       string
	Type    uint16
	Timeout time.Duration
}

type DNSAnswer struct {
	Name  string
	Type  string
	TTL   uint32
	Value string
}

type DNSResponse struct {
	Rcode   string
	Answers []DNSAnswer
}
