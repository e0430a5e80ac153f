package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/caffeineduck/snoop/hostfunc"
	"go.uber.org/zap"
)

func TestFindFrame(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantIdx  int
		wantKind frameKind
	}{
		{"no frame", "hello world", -1, frameNone},
		{"call frame", "prefix\x00SNOOP:{}\x00suffix", 6, frameCall},
		{"result frame", "prefix\x00SNOOP_RESULT:5\x00suffix", 6, frameResult},
		{"call before result", "\x00SNOOP:{}\x00\x00SNOOP_RESULT:1\x00", 0, frameCall},
		{"result before call", "\x00SNOOP_RESULT:1\x00\x00SNOOP:{}\x00", 0, frameResult},
		{"empty content", "", -1, frameNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, kind := findFrame(tt.content)
			if idx != tt.wantIdx {
				t.Errorf("idx = %d, want %d", idx, tt.wantIdx)
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %d, want %d", kind, tt.wantKind)
			}
		})
	}
}

func TestExtractFrame(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		idx           int
		prefix        string
		wantPayload   string
		wantRemaining string
		wantOK        bool
	}{
		{
			name:          "valid call",
			content:       "prefix\x00SNOOP:{\"fn\":\"test\"}\x00suffix",
			idx:           6,
			prefix:        callPrefix,
			wantPayload:   `{"fn":"test"}`,
			wantRemaining: "suffix",
			wantOK:        true,
		},
		{
			name:          "incomplete frame",
			content:       "prefix\x00SNOOP:{partial",
			idx:           6,
			prefix:        callPrefix,
			wantPayload:   "",
			wantRemaining: "\x00SNOOP:{partial",
			wantOK:        false,
		},
		{
			name:          "valid result",
			content:       "\x00SNOOP_RESULT:10\x00remaining",
			idx:           0,
			prefix:        resultPrefix,
			wantPayload:   "10",
			wantRemaining: "remaining",
			wantOK:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, remaining, ok := extractFrame(tt.content, tt.idx, tt.prefix)
			if payload != tt.wantPayload {
				t.Errorf("payload = %q, want %q", payload, tt.wantPayload)
			}
			if remaining != tt.wantRemaining {
				t.Errorf("remaining = %q, want %q", remaining, tt.wantRemaining)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestPartialPrefixLen(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"hello", 0},
		{"hello\x00", 1},
		{"hello\x00SNO", 4},
		{"\x00SNOOP", 6},
		{"out\x00SNOOP_", 7},
		{"\x00SNOOP_RES", 10},
		{"\x00SNOOP_RESULT", 13},
		{"\x00SNOOP_X", 0},
		{"SNOOP", 0},
	}
	for _, tt := range tests {
		if got := partialPrefixLen(tt.content); got != tt.want {
			t.Errorf("partialPrefixLen(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func newTestProtocol(t *testing.T, registry *hostfunc.Registry) (*protocolHandler, *bufio.Scanner) {
	t.Helper()
	r, w := io.Pipe()
	t.Cleanup(func() { w.Close() })
	return newProtocolHandler(context.Background(), registry, w, zap.NewNop()), bufio.NewScanner(r)
}

func readReply(t *testing.T, sc *bufio.Scanner) callResponse {
	t.Helper()
	if !sc.Scan() {
		t.Fatalf("no reply: %v", sc.Err())
	}
	var resp callResponse
	if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
		t.Fatalf("invalid reply %q: %v", sc.Text(), err)
	}
	return resp
}

func TestProtocolServesCalls(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args["v"], nil
	})
	p, replies := newTestProtocol(t, registry)

	p.Write([]byte("before\x00SNOOP:{\"fn\":\"echo\",\"args\":{\"v\":\"hi\"}}\x00after"))
	if resp := readReply(t, replies); resp.Data != "hi" || resp.Error != "" {
		t.Errorf("unexpected reply %+v", resp)
	}
	if got := p.Stderr(); got != "beforeafter" {
		t.Errorf("stderr = %q", got)
	}
}

func TestProtocolSplitWrites(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("ping", func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	})
	p, replies := newTestProtocol(t, registry)

	frame := "log line\x00SNOOP:{\"fn\":\"ping\",\"args\":{}}\x00"
	for i := 0; i < len(frame); i++ {
		p.Write([]byte{frame[i]})
	}
	if resp := readReply(t, replies); resp.Data != "pong" {
		t.Errorf("unexpected reply %+v", resp)
	}
	if got := p.Stderr(); got != "log line" {
		t.Errorf("stderr = %q", got)
	}
}

func TestProtocolSplitResultFrame(t *testing.T) {
	p, _ := newTestProtocol(t, hostfunc.NewRegistry())

	frame := "done\x00SNOOP_RESULT:42\x00"
	for i := 0; i < len(frame); i++ {
		p.Write([]byte{frame[i]})
	}
	v, ok := p.Result()
	if !ok || v != float64(42) {
		t.Errorf("result = %v, %v", v, ok)
	}
	if got := p.Stderr(); got != "done" {
		t.Errorf("stderr = %q", got)
	}
}

func TestProtocolUnknownFunction(t *testing.T) {
	p, replies := newTestProtocol(t, hostfunc.NewRegistry())

	p.Write([]byte("\x00SNOOP:{\"fn\":\"nope\",\"args\":{}}\x00"))
	if resp := readReply(t, replies); !strings.Contains(resp.Error, "unknown function") {
		t.Errorf("unexpected reply %+v", resp)
	}

	p.Write([]byte("\x00SNOOP:{broken\x00"))
	if resp := readReply(t, replies); resp.Error != "invalid call format" {
		t.Errorf("unexpected reply %+v", resp)
	}
}

func TestProtocolResultFrame(t *testing.T) {
	p, _ := newTestProtocol(t, hostfunc.NewRegistry())

	if _, ok := p.Result(); ok {
		t.Fatal("result set before any frame")
	}
	p.Write([]byte("\x00SNOOP_RESULT:{\"hosts\":[\"a\",\"b\"]}\x00"))
	v, ok := p.Result()
	if !ok {
		t.Fatal("result not recorded")
	}
	hosts := v.(map[string]any)["hosts"].([]any)
	if len(hosts) != 2 || hosts[0] != "a" {
		t.Errorf("result = %v", v)
	}
}

func TestProtocolSentinelOverFrames(t *testing.T) {
	host := hostfunc.NewHost(hostfunc.HostConfig{})
	defer host.Close()
	registry := hostfunc.NewRegistry()
	host.Register(registry)
	p, replies := newTestProtocol(t, registry)

	p.Write([]byte("\x00SNOOP:{\"fn\":\"http_send\",\"args\":{\"request\":7}}\x00"))
	if resp := readReply(t, replies); resp.Data != nil || resp.Error != "" {
		t.Errorf("failing call should answer null data, got %+v", resp)
	}
	p.Write([]byte("\x00SNOOP:{\"fn\":\"last_err\",\"args\":{}}\x00"))
	resp := readReply(t, replies)
	if msg, _ := resp.Data.(string); !strings.Contains(msg, "invalid http request object") {
		t.Errorf("last_err = %+v", resp)
	}
}
