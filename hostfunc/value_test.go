package hostfunc

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseOptionsRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  RequestOptions
	}{
		{
			name:  "nil",
			input: nil,
			want:  RequestOptions{},
		},
		{
			name:  "empty table",
			input: map[string]any{},
			want:  RequestOptions{},
		},
		{
			name: "headers and query",
			input: map[string]any{
				"headers": map[string]any{"Content-Type": "application/json"},
				"query":   map[string]any{"foo": "bar"},
			},
			want: RequestOptions{
				Headers: map[string]string{"Content-Type": "application/json"},
				Query:   map[string]string{"foo": "bar"},
			},
		},
		{
			name: "json body",
			input: map[string]any{
				"json": map[string]any{"hello": "world", "n": 1.0},
			},
			want: RequestOptions{
				JSON: map[string]any{"hello": "world", "n": 1.0},
			},
		},
		{
			name: "form body with scalars",
			input: map[string]any{
				"form": map[string]any{"a": "x", "b": 2.0, "c": true, "d": 1.5},
			},
			want: RequestOptions{
				Form: map[string]string{"a": "x", "b": "2", "c": "true", "d": "1.5"},
			},
		},
		{
			name:  "timeout in milliseconds",
			input: map[string]any{"timeout": 250.0},
			want:  RequestOptions{Timeout: 250 * time.Millisecond},
		},
		{
			name: "unknown keys ignored",
			input: map[string]any{
				"follow": true,
				"query":  map[string]any{"q": "x"},
			},
			want: RequestOptions{Query: map[string]string{"q": "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseOptions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseOptionsRejectsMalformedShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		wantPath string
	}{
		{"not a table", "headers", "options"},
		{"headers not a table", map[string]any{"headers": "x"}, "headers"},
		{"header value not string", map[string]any{"headers": map[string]any{"X-Num": 1.0}}, "headers.X-Num"},
		{"query value not string", map[string]any{"query": map[string]any{"q": true}}, "query.q"},
		{"nested form", map[string]any{"form": map[string]any{"a": map[string]any{}}}, "form.a"},
		{"timeout not number", map[string]any{"timeout": "fast"}, "timeout"},
		{"negative timeout", map[string]any{"timeout": -5.0}, "timeout"},
		{"timeout overflows duration", map[string]any{"timeout": 1e13}, "timeout"},
		{"timeout above maximum", map[string]any{"timeout": 600001.0}, "timeout"},
		{"timeout below a nanosecond", map[string]any{"timeout": 1e-7}, "timeout"},
		{"infinite timeout", map[string]any{"timeout": math.Inf(1)}, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions(tt.input)
			if !errors.Is(err, ErrBridge) {
				t.Fatalf("expected bridge error, got %v", err)
			}
			var be *BridgeError
			if !errors.As(err, &be) {
				t.Fatalf("expected *BridgeError, got %T", err)
			}
			if got := joinPath(be.Path); got != tt.wantPath {
				t.Errorf("path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestParseOptionsJSONAndFormExclusive(t *testing.T) {
	_, err := ParseOptions(map[string]any{
		"json": map[string]any{"a": "b"},
		"form": map[string]any{"a": "b"},
	})
	if !errors.Is(err, ErrBridge) {
		t.Fatalf("expected bridge error, got %v", err)
	}

	opts := RequestOptions{JSON: "x", Form: map[string]string{}}
	if err := opts.Validate(); !errors.Is(err, ErrBridge) {
		t.Errorf("Validate: expected bridge error, got %v", err)
	}
}

func TestParseRequestInvertsRequestValue(t *testing.T) {
	req, err := NewHTTPRequest("abc", "post", "https://example.com/x", RequestOptions{
		Headers: map[string]string{"A": "1"},
		Query:   map[string]string{"q": "s"},
		JSON:    []any{"a", 1.0},
		Timeout: 1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHTTPRequest: %v", err)
	}
	if req.Method != "POST" {
		t.Errorf("method = %q, want POST", req.Method)
	}

	got, err := ParseRequest(RequestValue(req))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRequestMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"not a table", 42.0},
		{"missing session", map[string]any{"method": "GET", "url": "http://x"}},
		{"missing url", map[string]any{"session": "s", "method": "GET"}},
		{"bad method", map[string]any{"session": "s", "method": "BREW", "url": "http://x"}},
		{"bad scheme", map[string]any{"session": "s", "method": "GET", "url": "file:///etc/passwd"}},
		{"session not string", map[string]any{"session": 1.0, "method": "GET", "url": "http://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRequest(tt.input); !errors.Is(err, ErrBridge) {
				t.Errorf("expected bridge error, got %v", err)
			}
		})
	}
}

func TestResponseValue(t *testing.T) {
	got := ResponseValue(HTTPResponse{
		Status:  404,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Text:    "nope",
		URL:     "http://example.com/final",
	})
	want := map[string]any{
		"status":  404.0,
		"text":    "nope",
		"headers": map[string]any{"content-type": "text/plain"},
		"url":     "http://example.com/final",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResponseValue mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDNSQuery(t *testing.T) {
	q, err := ParseDNSQuery("example.com", map[string]any{"record": "mx", "timeout": 100.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Type != 15 || q.Timeout != 100*time.Millisecond {
		t.Errorf("unexpected query %+v", q)
	}

	if _, err := ParseDNSQuery("example.com", map[string]any{"record": "BOGUS"}); !errors.Is(err, ErrBridge) {
		t.Errorf("expected bridge error for unknown record, got %v", err)
	}
	if _, err := ParseDNSQuery("example.com", map[string]any{"nameserver": "203.0.113.1:53"}); !errors.Is(err, ErrBridge) {
		t.Errorf("expected bridge error for guest nameserver, got %v", err)
	}
	if _, err := ParseDNSQuery("example.com", map[string]any{"timeout": 1e13}); !errors.Is(err, ErrBridge) {
		t.Errorf("expected bridge error for oversized timeout, got %v", err)
	}
	if _, err := ParseDNSQuery(nil, nil); !errors.Is(err, ErrBridge) {
		t.Errorf("expected bridge error for missing name, got %v", err)
	}
}

func joinPath(p []string) string {
	out := ""
	for i, s := range p {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
