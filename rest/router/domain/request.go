package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Request descreve uma chamada lógica à API remota.
//
// É um valor imutável: os métodos With* devolvem cópias. O Dispatcher consome
// cada Request uma única vez.
type Request struct {
	ID       string
	Method   string
	Template string
	Path     string
	Query    url.Values
	Header   map[string]string
	Body     []byte
	// Reason vai no header X-Audit-Log-Reason quando não vazio.
	Reason string
}

func (r Request) WithBody(body []byte) Request {
	r.Body = body
	return r
}

func (r Request) WithReason(reason string) Request {
	r.Reason = reason
	return r
}

func (r Request) WithHeader(key, value string) Request {
	h := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		h[k] = v
	}
	h[key] = value
	r.Header = h
	return r
}

func (r Request) WithQuery(key, value string) Request {
	q := make(url.Values, len(r.Query)+1)
	for k, v := range r.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Add(key, value)
	r.Query = q
	return r
}

// Route é um endpoint da API: método + template com placeholders ("{channel.id}").
type Route struct {
	Method   string
	Template string
}

func NewRoute(method, template string) Route {
	return Route{Method: strings.ToUpper(method), Template: template}
}

// NewRequest substitui os placeholders do template, na ordem, pelos params.
// Params a mais são ignorados; placeholders sem param ficam vazios.
func (rt Route) NewRequest(params ...any) Request {
	var b strings.Builder
	tpl := rt.Template
	i := 0
	for {
		open := strings.IndexByte(tpl, '{')
		if open < 0 {
			b.WriteString(tpl)
			break
		}
		end := strings.IndexByte(tpl[open:], '}')
		if end < 0 {
			b.WriteString(tpl)
			break
		}
		b.WriteString(tpl[:open])
		if i < len(params) {
			b.WriteString(url.PathEscape(fmt.Sprint(params[i])))
		}
		i++
		tpl = tpl[open+end+1:]
	}

	return Request{
		Method:   rt.Method,
		Template: rt.Template,
		Path:     b.String(),
	}
}

func (rt Route) String() string { return rt.Method + " " + rt.Template }
