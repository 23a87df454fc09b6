package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"rest-gateway/rest/router/application"
	"rest-gateway/rest/router/domain"
	"rest-gateway/rest/router/infra"
)

type (
	Request  = domain.Request
	Response = domain.Response
	Handle   = domain.Handle
	Route    = domain.Route

	RetryPolicy = application.RetryPolicy
	BucketInfo  = application.BucketInfo
)

// Conta padrão: 50 requests por segundo para a conta inteira.
const (
	DefaultGlobalLimit  = 50
	DefaultGlobalWindow = time.Second
)

type config struct {
	httpClient      *http.Client
	userAgent       string
	headers         map[string]string
	globalLimit     int
	globalWindow    time.Duration
	retry           application.RetryPolicy
	exchangeTimeout time.Duration
	stats           domain.StatsStore
	logger          *zap.Logger
	clock           domain.Clock
}

type Option func(*config)

func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = c }
}

func WithUserAgent(ua string) Option {
	return func(cfg *config) { cfg.userAgent = ua }
}

// WithHeader adiciona um header a toda troca (ex: Authorization fornecido de fora).
func WithHeader(key, value string) Option {
	return func(cfg *config) { cfg.headers[key] = value }
}

// WithGlobalLimit define a cota da conta. limit <= 0 desliga o portão local;
// 429 com escopo global continua suspendendo todos os buckets.
func WithGlobalLimit(limit int, window time.Duration) Option {
	return func(cfg *config) {
		cfg.globalLimit = limit
		cfg.globalWindow = window
	}
}

func WithRetryPolicy(p application.RetryPolicy) Option {
	return func(cfg *config) { cfg.retry = p }
}

func WithExchangeTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.exchangeTimeout = d }
}

func WithStats(s domain.StatsStore) Option {
	return func(cfg *config) { cfg.stats = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

func WithClock(c domain.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// Client liga o HTTPExchanger ao Router da camada application.
type Client struct {
	router *application.Router
	global *domain.GlobalAllowance
}

func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := config{
		headers:         make(map[string]string),
		globalLimit:     DefaultGlobalLimit,
		globalWindow:    DefaultGlobalWindow,
		retry:           application.DefaultRetryPolicy(),
		exchangeTimeout: 10 * time.Second,
		logger:          zap.NewNop(),
		clock:           domain.SystemClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	exOpts := []infra.ExchangerOption{infra.WithExchangeClock(cfg.clock)}
	if cfg.httpClient != nil {
		exOpts = append(exOpts, infra.WithHTTPClient(cfg.httpClient))
	}
	if cfg.userAgent != "" {
		exOpts = append(exOpts, infra.WithUserAgent(cfg.userAgent))
	}
	for k, v := range cfg.headers {
		exOpts = append(exOpts, infra.WithDefaultHeader(k, v))
	}
	ex, err := infra.NewHTTPExchanger(baseURL, exOpts...)
	if err != nil {
		return nil, err
	}

	global := domain.NewGlobalAllowance(cfg.globalLimit, cfg.globalWindow)
	r := application.NewRouter(application.Options{
		Exchanger:       ex,
		Global:          global,
		Retry:           cfg.retry,
		ExchangeTimeout: cfg.exchangeTimeout,
		Clock:           cfg.clock,
		Stats:           cfg.stats,
		Logger:          cfg.logger,
	})
	return &Client{router: r, global: global}, nil
}

// Submit nunca falha de forma síncrona; o resultado chega pelo Handle.
func (c *Client) Submit(req Request) *Handle { return c.router.Submit(req) }

func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	return c.router.Do(ctx, req)
}

// Call monta a request da rota e espera a resposta.
func (c *Client) Call(ctx context.Context, route Route, params ...any) (Response, error) {
	return c.router.Do(ctx, route.NewRequest(params...))
}

func (c *Client) Buckets() []BucketInfo { return c.router.Buckets() }

func (c *Client) BucketCount() int { return c.router.BucketCount() }

func (c *Client) GlobalRemaining() int { return c.global.Remaining() }

// GlobalCeiling é 0 quando não há teto global configurado.
func (c *Client) GlobalCeiling() int { return c.global.Ceiling() }

func (c *Client) Close(ctx context.Context) error { return c.router.Close(ctx) }
