package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	DefaultURL       = "https://sn0int.com"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "snoop"
)

// Client calls the registry API. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type Option func(*clientConfig)

type clientConfig struct {
	token     string
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(c *clientConfig) {
		c.token = token
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

func New(baseURL string, opts ...Option) *Client {
	cfg := clientConfig{
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.timeout).
		SetHeader("User-Agent", cfg.userAgent).
		SetHeader("Accept", "application/json")
	if cfg.token != "" {
		hc.SetAuthToken(cfg.token)
	}
	return &Client{http: hc, logger: cfg.logger}
}

func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) Whoami(ctx context.Context) (WhoamiResponse, error) {
	return do[WhoamiResponse](ctx, c, c.http.R(), resty.MethodGet, "/api/v0/whoami")
}

func (c *Client) Publish(ctx context.Context, code string) (PublishResponse, error) {
	req := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(PublishRequest{Code: code})
	return do[PublishResponse](ctx, c, req, resty.MethodPost, "/api/v0/publish")
}

// Download fetches a module's source. An empty version selects the latest.
func (c *Client) Download(ctx context.Context, author, name, version string) (DownloadResponse, error) {
	if version == "" {
		version = "latest"
	}
	req := c.http.R().
		SetPathParams(map[string]string{"author": author, "name": name, "version": version})
	return do[DownloadResponse](ctx, c, req, resty.MethodGet, "/api/v0/dl/{author}/{name}/{version}")
}

func (c *Client) Info(ctx context.Context, author, name string) (ModuleInfoResponse, error) {
	req := c.http.R().
		SetPathParams(map[string]string{"author": author, "name": name})
	return do[ModuleInfoResponse](ctx, c, req, resty.MethodGet, "/api/v0/info/{author}/{name}")
}

func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	req := c.http.R().SetQueryParam("q", query)
	return do[[]SearchResult](ctx, c, req, resty.MethodGet, "/api/v0/search")
}

// do sends req and decodes the envelope whatever the HTTP status, so the
// registry's own error message reaches the caller.
func do[T any](ctx context.Context, c *Client, req *resty.Request, method, url string) (T, error) {
	res, err := req.SetContext(ctx).Execute(method, url)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", method, url, err)
	}
	c.logger.Debug("registry response",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", res.StatusCode()),
		zap.Duration("duration", res.Duration()),
	)
	return Decode[T](res.StatusCode(), []byte(res.String()))
}
