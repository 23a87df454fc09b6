package router

import (
	"net/http"
	"time"

	"rest-gateway/rest/router/application"
	"rest-gateway/rest/router/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// RetryAfter vai no header Retry-After quando a vaga não sai a tempo.
	RetryAfter time.Duration
}

// ConcurrencyMiddleware limita quantas requests de entrada ficam presas esperando
// o router. Sem vaga dentro do timeout, responde RejectStatus (503 por padrão).
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	adm := application.Admission{
		Pool:           infra.NewSemaphorePool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := adm.Acquire(r.Context())
			if err != nil {
				if opts.RetryAfter > 0 {
					w.Header().Set("Retry-After", formatSeconds(opts.RetryAfter))
				}
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
