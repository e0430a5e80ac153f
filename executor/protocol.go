package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/snoop/hostfunc"
	"go.uber.org/zap"
)

// Frames written by WASI guests on stderr.
//
//	\x00SNOOP:{"fn":"http_mksession","args":{}}\x00
//	\x00SNOOP_RESULT:<json>\x00
//
// A call frame is answered with one JSON line on stdin. A result frame sets
// the value returned by the run.
const (
	callPrefix   = "\x00SNOOP:"
	resultPrefix = "\x00SNOOP_RESULT:"
	frameSuffix  = "\x00"
)

type frameKind int

const (
	frameNone frameKind = iota
	frameCall
	frameResult
)

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// protocolHandler intercepts stderr to serve host function calls.
// Bytes outside frames pass through as guest output.
type protocolHandler struct {
	ctx         context.Context
	registry    *hostfunc.Registry
	stdinWriter *io.PipeWriter
	logger      *zap.Logger

	mu        sync.Mutex
	stderr    bytes.Buffer
	buf       bytes.Buffer
	result    any
	hasResult bool
}

func newProtocolHandler(ctx context.Context, registry *hostfunc.Registry, stdinWriter *io.PipeWriter, logger *zap.Logger) *protocolHandler {
	return &protocolHandler{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
		logger:      logger,
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		content := p.buf.String()
		idx, kind := findFrame(content)
		if kind == frameNone {
			// Hold back a trailing partial prefix until the next write.
			keep := partialPrefixLen(content)
			p.stderr.WriteString(content[:len(content)-keep])
			p.buf.Reset()
			p.buf.WriteString(content[len(content)-keep:])
			break
		}

		p.stderr.WriteString(content[:idx])

		prefix := callPrefix
		if kind == frameResult {
			prefix = resultPrefix
		}
		payload, remaining, ok := extractFrame(content, idx, prefix)
		p.buf.Reset()
		p.buf.WriteString(remaining)
		if !ok {
			break
		}

		switch kind {
		case frameCall:
			p.call(payload)
		case frameResult:
			p.setResult(payload)
		}
	}

	return len(data), nil
}

// findFrame returns the index and kind of the earliest frame in content.
func findFrame(content string) (int, frameKind) {
	callIdx := strings.Index(content, callPrefix)
	resultIdx := strings.Index(content, resultPrefix)

	switch {
	case callIdx == -1 && resultIdx == -1:
		return -1, frameNone
	case resultIdx == -1 || (callIdx != -1 && callIdx < resultIdx):
		return callIdx, frameCall
	default:
		return resultIdx, frameResult
	}
}

// extractFrame cuts the frame starting at idx out of content. When the frame
// is incomplete it reports !ok and returns the unconsumed tail.
func extractFrame(content string, idx int, prefix string) (payload, remaining string, ok bool) {
	start := idx + len(prefix)
	end := strings.Index(content[start:], frameSuffix)
	if end == -1 {
		return "", content[idx:], false
	}
	return content[start : start+end], content[start+end+len(frameSuffix):], true
}

// partialPrefixLen returns how many trailing bytes of content could begin a
// call or result frame prefix.
func partialPrefixLen(content string) int {
	for n := min(len(content), len(resultPrefix)-1); n > 0; n-- {
		tail := content[len(content)-n:]
		if strings.HasPrefix(callPrefix, tail) || strings.HasPrefix(resultPrefix, tail) {
			return n
		}
	}
	return 0
}

func (p *protocolHandler) call(payload string) {
	var req callRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		p.respond(callResponse{Error: "invalid call format"})
		return
	}
	p.respond(p.handleCall(req))
}

func (p *protocolHandler) handleCall(req callRequest) callResponse {
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		p.logger.Debug("guest called unknown function", zap.String("fn", req.Fn))
		return callResponse{Error: "unknown function: " + req.Fn}
	}

	result, err := fn(p.ctx, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

func (p *protocolHandler) respond(resp callResponse) {
	data, _ := json.Marshal(resp)
	go p.stdinWriter.Write(append(data, '\n'))
}

func (p *protocolHandler) setResult(payload string) {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		p.logger.Debug("guest sent invalid result", zap.Error(err))
		return
	}
	p.result = v
	p.hasResult = true
}

// Stderr returns guest output written outside frames.
func (p *protocolHandler) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stderr.String() + p.buf.String()
}

func (p *protocolHandler) Result() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.hasResult
}
