package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"rest-gateway/rest/router/domain"
)

const defaultMaxBodyBytes = 8 << 20

// HTTPExchanger implementa domain.Exchanger com net/http.
//
// Pool de conexões, TLS e autenticação ficam por conta do *http.Client e dos
// headers padrão recebidos de fora.
type HTTPExchanger struct {
	client    *http.Client
	baseURL   string
	userAgent string
	header    http.Header
	clock     domain.Clock
	maxBody   int64
}

type ExchangerOption func(*HTTPExchanger)

func WithHTTPClient(c *http.Client) ExchangerOption {
	return func(e *HTTPExchanger) { e.client = c }
}

func WithUserAgent(ua string) ExchangerOption {
	return func(e *HTTPExchanger) { e.userAgent = ua }
}

// WithDefaultHeader adiciona um header a toda troca (ex: Authorization).
func WithDefaultHeader(key, value string) ExchangerOption {
	return func(e *HTTPExchanger) { e.header.Set(key, value) }
}

func WithExchangeClock(c domain.Clock) ExchangerOption {
	return func(e *HTTPExchanger) { e.clock = c }
}

func WithMaxBodyBytes(n int64) ExchangerOption {
	return func(e *HTTPExchanger) { e.maxBody = n }
}

func NewHTTPExchanger(baseURL string, opts ...ExchangerOption) (*HTTPExchanger, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("invalid base url: scheme must be http or https")
	}

	e := &HTTPExchanger{
		client:    http.DefaultClient,
		baseURL:   strings.TrimRight(u.String(), "/"),
		userAgent: "rest-gateway",
		header:    make(http.Header),
		clock:     domain.SystemClock{},
		maxBody:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *HTTPExchanger) Exchange(ctx context.Context, req domain.Request) (domain.Response, error) {
	target := e.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return domain.Response{}, fmt.Errorf("build request: %w", err)
	}

	for k, vs := range e.header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if e.userAgent != "" {
		hr.Header.Set("User-Agent", e.userAgent)
	}
	for k, v := range req.Header {
		hr.Header.Set(k, v)
	}
	if len(req.Body) > 0 && hr.Header.Get("Content-Type") == "" {
		hr.Header.Set("Content-Type", "application/json")
	}
	if req.Reason != "" {
		hr.Header.Set(HeaderAuditReason, url.PathEscape(req.Reason))
	}

	resp, err := e.client.Do(hr)
	if err != nil {
		return domain.Response{}, fmt.Errorf("exchange %s %s: %w", req.Method, req.Template, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody))
	if err != nil {
		return domain.Response{}, fmt.Errorf("read body %s %s: %w", req.Method, req.Template, err)
	}

	return domain.Response{
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      b,
		RateLimit: ParseRateLimit(resp.Header, resp.StatusCode, b, e.clock.Now()),
	}, nil
}

var _ domain.Exchanger = (*HTTPExchanger)(nil)
