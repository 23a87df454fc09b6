package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"rest-gateway/rest/router/domain"
)

// stubDispatcher resolve cada Submit na hora com o resultado configurado.
type stubDispatcher struct {
	mu   sync.Mutex
	got  []Request
	resp Response
	err  error
}

func (d *stubDispatcher) Submit(req Request) *Handle {
	d.mu.Lock()
	d.got = append(d.got, req)
	d.mu.Unlock()

	h := domain.NewHandle("stub-1")
	h.Resolve(d.resp, d.err)
	return h
}

func TestTemplateFromPath(t *testing.T) {
	cases := map[string]string{
		"/channels/123/webhooks":         "/channels/{id}/webhooks",
		"/webhooks/123/abc-TOKEN":        "/webhooks/{id}/{token}",
		"/webhooks/123/abc/messages/456": "/webhooks/{id}/{token}/messages/{id}",
		"/guilds/1/webhooks":             "/guilds/{id}/webhooks",
		"/users/@me":                     "/users/@me",
		"/webhooks/123":                  "/webhooks/{id}",
	}
	for in, want := range cases {
		if got := TemplateFromPath(in); got != want {
			t.Fatalf("TemplateFromPath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestDefaultTemplateFunc_PrefersHeader(t *testing.T) {
	fn := DefaultTemplateFunc("X-Route-Template", "/api")

	r := httptest.NewRequest(http.MethodGet, "http://gw/api/channels/1/webhooks", nil)
	if got := fn(r); got != "/channels/{id}/webhooks" {
		t.Fatalf("expected derived template, got %q", got)
	}

	r.Header.Set("X-Route-Template", " /channels/{channel.id}/webhooks ")
	if got := fn(r); got != "/channels/{channel.id}/webhooks" {
		t.Fatalf("expected header template, got %q", got)
	}
}

func TestProxyHandler_ForwardsAndCopiesResponse(t *testing.T) {
	d := &stubDispatcher{resp: Response{
		Status: http.StatusCreated,
		Header: map[string][]string{"X-Ratelimit-Remaining": {"4"}, "Connection": {"close"}},
		Body:   []byte(`{"id":"1"}`),
	}}
	h := ProxyHandler(ProxyOptions{Dispatcher: d, PathPrefix: "/api", AddRouterHeaders: true})

	r := httptest.NewRequest(http.MethodPost, "http://gw/api/channels/55/webhooks?x=1", strings.NewReader(`{"name":"n"}`))
	r.Header.Set("Authorization", "Bot t")
	r.Header.Set("Cookie", "secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusCreated || w.Body.String() != `{"id":"1"}` {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Ratelimit-Remaining") != "4" || w.Header().Get("Connection") != "" {
		t.Fatalf("unexpected headers %v", w.Header())
	}
	if w.Header().Get("X-Router-Route") != "POST /channels/{id}/webhooks" || w.Header().Get("X-Router-Request-Id") != "stub-1" {
		t.Fatalf("router headers missing: %v", w.Header())
	}

	req := d.got[0]
	if req.Path != "/channels/55/webhooks" || req.Query.Get("x") != "1" || string(req.Body) != `{"name":"n"}` {
		t.Fatalf("unexpected forwarded request %+v", req)
	}
	if req.Header["Authorization"] != "Bot t" {
		t.Fatalf("authorization not forwarded")
	}
	if _, ok := req.Header["Cookie"]; ok {
		t.Fatalf("only allow-listed headers should be forwarded")
	}
}

func TestProxyHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"closed", domain.ErrRouterClosed, http.StatusServiceUnavailable},
		{"transport", &domain.ServerError{Attempts: 3, Err: errors.New("dial")}, http.StatusBadGateway},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := ProxyHandler(ProxyOptions{Dispatcher: &stubDispatcher{err: c.err}})
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/webhooks/1", nil))
			if w.Code != c.want {
				t.Fatalf("expected %d, got %d", c.want, w.Code)
			}
		})
	}
}

func TestProxyHandler_ServerErrorKeepsUpstreamStatus(t *testing.T) {
	d := &stubDispatcher{
		resp: Response{Status: http.StatusNotFound, Body: []byte(`{"message":"Unknown Webhook","code":10015}`)},
		err:  domain.NewClientError(404, nil),
	}
	h := ProxyHandler(ProxyOptions{Dispatcher: d})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/webhooks/1", nil))

	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Unknown Webhook") {
		t.Fatalf("expected upstream 404 passthrough, got %d %q", w.Code, w.Body.String())
	}
}
