package executor

import (
	"time"

	"github.com/caffeineduck/snoop/hostfunc"
	"go.uber.org/zap"
)

// Option configures a single run.
type Option func(*runConfig)

type runConfig struct {
	timeout      time.Duration
	allowedHosts []string
	nameserver   string
	maxSessions  int
	// Request limits
	httpTimeout      time.Duration
	httpMaxURLLength int
	httpMaxBodySize  int64
}

func defaultRunConfig() runConfig {
	return runConfig{
		timeout: 5 * time.Minute,
	}
}

func (c runConfig) hostConfig() hostfunc.HostConfig {
	return hostfunc.HostConfig{
		HTTP: hostfunc.HTTPConfig{
			AllowedHosts:   c.allowedHosts,
			MaxBodySize:    c.httpMaxBodySize,
			MaxURLLength:   c.httpMaxURLLength,
			RequestTimeout: c.httpTimeout,
		},
		DNS:         hostfunc.DNSConfig{Nameserver: c.nameserver},
		MaxSessions: c.maxSessions,
	}
}

// WithTimeout bounds the whole run, including every request it makes.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithAllowedHosts restricts HTTP requests to these hosts and their
// subdomains. Without it every host is reachable.
func WithAllowedHosts(hosts []string) Option {
	return func(c *runConfig) {
		c.allowedHosts = hosts
	}
}

// WithHTTPTimeout sets the default timeout of a request that does not set
// its own.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.httpTimeout = d
	}
}

func WithHTTPMaxURLLength(size int) Option {
	return func(c *runConfig) {
		c.httpMaxURLLength = size
	}
}

// WithHTTPMaxBodySize sets the maximum response body size read per request.
func WithHTTPMaxBodySize(size int64) Option {
	return func(c *runConfig) {
		c.httpMaxBodySize = size
	}
}

// WithMaxSessions caps the number of HTTP sessions a run may hold.
func WithMaxSessions(n int) Option {
	return func(c *runConfig) {
		c.maxSessions = n
	}
}

// WithNameserver sets the resolver used by dns(). The default comes from
// /etc/resolv.conf.
func WithNameserver(addr string) Option {
	return func(c *runConfig) {
		c.nameserver = addr
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = default (4GB)
	logger           *zap.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger: zap.NewNop(),
	}
}

// WithDiskCache enables a persistent compilation cache for WASI modules.
// Optionally provide a custom directory; otherwise uses ~/.cache/snoop or
// XDG_CACHE_HOME/snoop.
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to WASI modules.
// Each page is 64KB. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

func WithLogger(l *zap.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
)
