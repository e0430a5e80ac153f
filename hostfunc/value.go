package hostfunc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Guest values crossing the bridge are limited to nil, bool, float64, string,
// map[string]any and []any. Integer kinds are accepted as numbers for callers
// that build values on the host side.

// ParseOptions converts a guest options table into RequestOptions.
// Unknown keys are ignored.
func ParseOptions(v any) (RequestOptions, error) {
	var opts RequestOptions
	if v == nil {
		return opts, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return opts, bridgeErr("expected table, got "+typeName(v), "options")
	}

	var err error
	if opts.Headers, err = stringMap(m["headers"], "headers"); err != nil {
		return RequestOptions{}, err
	}
	if opts.Query, err = stringMap(m["query"], "query"); err != nil {
		return RequestOptions{}, err
	}
	if body, ok := m["json"]; ok && body != nil {
		opts.JSON = body
	}
	if opts.Form, err = formMap(m["form"]); err != nil {
		return RequestOptions{}, err
	}
	if t, ok := m["timeout"]; ok && t != nil {
		if opts.Timeout, err = parseTimeout(t); err != nil {
			return RequestOptions{}, err
		}
	}

	if err := opts.Validate(); err != nil {
		return RequestOptions{}, err
	}
	return opts, nil
}

// ParseRequest converts a guest request value, as produced by RequestValue,
// back into an HTTPRequest.
func ParseRequest(v any) (HTTPRequest, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return HTTPRequest{}, bridgeErr("expected table, got "+typeName(v), "request")
	}
	session, err := requiredString(m, "session")
	if err != nil {
		return HTTPRequest{}, err
	}
	method, err := requiredString(m, "method")
	if err != nil {
		return HTTPRequest{}, err
	}
	rawURL, err := requiredString(m, "url")
	if err != nil {
		return HTTPRequest{}, err
	}
	opts, err := ParseOptions(m)
	if err != nil {
		return HTTPRequest{}, err
	}
	return NewHTTPRequest(session, method, rawURL, opts)
}

// RequestValue renders req as a flat guest table. Options are inlined so the
// guest can adjust them before sending.
func RequestValue(req HTTPRequest) map[string]any {
	out := map[string]any{
		"session": req.Session,
		"method":  req.Method,
		"url":     req.URL,
	}
	if len(req.Options.Headers) > 0 {
		out["headers"] = anyMap(req.Options.Headers)
	}
	if len(req.Options.Query) > 0 {
		out["query"] = anyMap(req.Options.Query)
	}
	if req.Options.JSON != nil {
		out["json"] = req.Options.JSON
	}
	if req.Options.Form != nil {
		out["form"] = anyMap(req.Options.Form)
	}
	if req.Options.Timeout > 0 {
		out["timeout"] = float64(req.Options.Timeout) / float64(time.Millisecond)
	}
	return out
}

// ResponseValue renders resp as a guest table with status, text, headers and
// url keys. Header names are lower-cased.
func ResponseValue(resp HTTPResponse) map[string]any {
	headers := make(map[string]any, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[strings.ToLower(k)] = v
	}
	return map[string]any{
		"status":  float64(resp.Status),
		"text":    resp.Text,
		"headers": headers,
		"url":     resp.URL,
	}
}

// ParseDNSQuery converts the guest arguments of the dns host function.
func ParseDNSQuery(name any, options any) (DNSQuery, error) {
	host, ok := name.(string)
	if !ok || host == "" {
		return DNSQuery{}, bridgeErr("expected non-empty string, got "+typeName(name), "name")
	}
	q := DNSQuery{Name: host, Type: dns.TypeA}
	if options == nil {
		return q, nil
	}
	m, ok := options.(map[string]any)
	if !ok {
		return DNSQuery{}, bridgeErr("expected table, got "+typeName(options), "options")
	}
	if r, ok := m["record"]; ok && r != nil {
		rs, ok := r.(string)
		if !ok {
			return DNSQuery{}, bridgeErr("expected string, got "+typeName(r), "record")
		}
		t, ok := dns.StringToType[strings.ToUpper(rs)]
		if !ok {
			return DNSQuery{}, bridgeErr(fmt.Sprintf("unknown record type %q", rs), "record")
		}
		q.Type = t
	}
	// The resolver is host configuration. A guest-chosen server would be an
	// unfiltered UDP destination.
	if ns, ok := m["nameserver"]; ok && ns != nil {
		return DNSQuery{}, bridgeErr("set by the host", "nameserver")
	}
	if t, ok := m["timeout"]; ok && t != nil {
		var err error
		if q.Timeout, err = parseTimeout(t); err != nil {
			return DNSQuery{}, err
		}
	}
	return q, nil
}

// DNSValue renders a DNS response as a guest table.
func DNSValue(resp DNSResponse) map[string]any {
	answers := make([]any, 0, len(resp.Answers))
	for _, a := range resp.Answers {
		answers = append(answers, map[string]any{
			"name":  a.Name,
			"type":  a.Type,
			"ttl":   float64(a.TTL),
			"value": a.Value,
		})
	}
	return map[string]any{
		"rcode":   resp.Rcode,
		"answers": answers,
	}
}

func stringMap(v any, key string) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, bridgeErr("expected table, got "+typeName(v), key)
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			return nil, bridgeErr("expected string, got "+typeName(val), key, k)
		}
		out[k] = s
	}
	return out, nil
}

func formMap(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, bridgeErr("expected table, got "+typeName(v), "form")
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		switch x := val.(type) {
		case string:
			out[k] = x
		case bool:
			out[k] = strconv.FormatBool(x)
		default:
			f, ok := toFloat(val)
			if !ok {
				return nil, bridgeErr("expected scalar, got "+typeName(val), "form", k)
			}
			out[k] = formatNumber(f)
		}
	}
	return out, nil
}

func requiredString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", bridgeErr("required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", bridgeErr("expected string, got "+typeName(v), key)
	}
	return s, nil
}

func anyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MaxTimeout caps guest-supplied timeouts.
const MaxTimeout = 10 * time.Minute

// parseTimeout converts a guest number of milliseconds into a duration in
// (0, MaxTimeout].
func parseTimeout(v any) (time.Duration, error) {
	ms, ok := toFloat(v)
	if !ok {
		return 0, bridgeErr("expected number of milliseconds, got "+typeName(v), "timeout")
	}
	if math.IsNaN(ms) || ms <= 0 {
		return 0, bridgeErr("must be positive", "timeout")
	}
	if ms > float64(MaxTimeout/time.Millisecond) {
		return 0, bridgeErr(fmt.Sprintf("exceeds maximum of %dms", MaxTimeout.Milliseconds()), "timeout")
	}
	d := time.Duration(ms * float64(time.Millisecond))
	if d <= 0 {
		return 0, bridgeErr("must be positive", "timeout")
	}
	return d, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "table"
	case []any:
		return "list"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
