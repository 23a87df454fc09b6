package router

import (
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"rest-gateway/rest/router/domain"
	"rest-gateway/rest/router/infra"
)

// Dispatcher é o mínimo que o proxy precisa do Client.
type Dispatcher interface {
	Submit(req Request) *Handle
}

// TemplateFunc devolve o template de rota da request de entrada.
type TemplateFunc func(r *http.Request) string

type ProxyOptions struct {
	Dispatcher Dispatcher
	TemplateFn TemplateFunc
	// TemplateHeader permite ao chamador informar o template explicitamente.
	TemplateHeader string
	// PathPrefix é removido do path de entrada antes de encaminhar.
	PathPrefix string
	// ForwardHeaders são copiados da entrada para a troca com o servidor.
	ForwardHeaders   []string
	MaxBodyBytes     int64
	AddRouterHeaders bool
	Logger           *zap.Logger
}

var (
	snowflakeSegment = regexp.MustCompile(`^[0-9]+$`)
	defaultForward   = []string{"Authorization", "Content-Type", infra.HeaderAuditReason}
	hopByHop         = map[string]bool{
		"Connection":        true,
		"Content-Length":    true,
		"Keep-Alive":        true,
		"Transfer-Encoding": true,
		"Upgrade":           true,
	}
)

// TemplateFromPath troca ids numéricos por "{id}" e o token que segue
// /webhooks/{id}/ por "{token}", para que ids diferentes caiam no mesmo bucket.
func TemplateFromPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		switch {
		case snowflakeSegment.MatchString(p):
			parts[i] = "{id}"
		case i >= 2 && parts[i-2] == "webhooks" && parts[i-1] == "{id}" && p != "":
			parts[i] = "{token}"
		}
	}
	return strings.Join(parts, "/")
}

func DefaultTemplateFunc(templateHeader, pathPrefix string) TemplateFunc {
	return func(r *http.Request) string {
		if templateHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(templateHeader)); v != "" {
				return v
			}
		}
		return TemplateFromPath(trimPrefix(r.URL.Path, pathPrefix))
	}
}

func trimPrefix(path, prefix string) string {
	p := strings.TrimPrefix(path, strings.TrimRight(prefix, "/"))
	if p == "" {
		return "/"
	}
	return p
}

// ProxyHandler encaminha cada request de entrada pelo router e copia a resposta
// do servidor de volta. O router decide quando enviar; o handler só espera.
func ProxyHandler(opts ProxyOptions) http.Handler {
	if opts.TemplateFn == nil {
		opts.TemplateFn = DefaultTemplateFunc(opts.TemplateHeader, opts.PathPrefix)
	}
	if len(opts.ForwardHeaders) == 0 {
		opts.ForwardHeaders = defaultForward
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, opts.MaxBodyBytes))
		if err != nil {
			http.Error(w, "cannot read body", http.StatusBadRequest)
			return
		}

		req := domain.Request{
			Method:   r.Method,
			Template: opts.TemplateFn(r),
			Path:     trimPrefix(r.URL.Path, opts.PathPrefix),
			Query:    r.URL.Query(),
			Body:     body,
		}
		for _, name := range opts.ForwardHeaders {
			if v := r.Header.Get(name); v != "" {
				req = req.WithHeader(name, v)
			}
		}

		start := time.Now()
		h := opts.Dispatcher.Submit(req)
		resp, err := h.Wait(r.Context())

		if opts.AddRouterHeaders {
			w.Header().Set("X-Router-Request-Id", h.ID())
			w.Header().Set("X-Router-Route", req.Method+" "+req.Template)
			w.Header().Set("X-Router-Wait", formatSeconds(time.Since(start)))
		}

		switch {
		case resp.Status != 0:
			// sucesso, ClientError e ServerError com status: repassa o que o servidor disse
			writeUpstream(w, resp)
		case errors.Is(err, domain.ErrCancelled):
			// quem chamou foi embora; a request segue no router
		case errors.Is(err, domain.ErrRouterClosed):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			opts.Logger.Warn("upstream exchange failed",
				zap.String("request_id", h.ID()),
				zap.String("route", req.Method+" "+req.Template),
				zap.Error(err))
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}
	})
}

func writeUpstream(w http.ResponseWriter, resp domain.Response) {
	for k, vs := range resp.Header {
		if hopByHop[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
