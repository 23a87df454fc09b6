package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rest-gateway/rest/upstreamsim"
)

// Servidor falso da API remota para validar o gateway na mão:
//
//	SIM_BUCKET_LIMIT=2 SIM_GLOBAL_LIMIT=10 go run ./teste-validacao/servidor-upstream
//	UPSTREAM_URL=http://localhost:8081 go run ./cmd/gateway
//	for i in $(seq 1 10); do curl -s localhost:8080/channels/1/webhooks & done
func main() {
	log, _ := zap.NewDevelopment()
	defer func() { _ = log.Sync() }()

	addr := getenvDefault("LISTEN_ADDR", ":8081")
	sim := upstreamsim.New(upstreamsim.Options{
		BucketLimit:  getenvIntDefault("SIM_BUCKET_LIMIT", 5),
		BucketWindow: getenvDurationDefault("SIM_BUCKET_WINDOW", 5*time.Second),
		GlobalLimit:  getenvIntDefault("SIM_GLOBAL_LIMIT", 50),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	sim.StartJanitor(ctx)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sim.ServeHTTP(w, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("bucket", w.Header().Get("X-RateLimit-Bucket")),
			zap.String("remaining", w.Header().Get("X-RateLimit-Remaining")),
			zap.Duration("took", time.Since(start)))
	})

	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("upstream simulator listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return i
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
}
