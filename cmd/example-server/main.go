package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rest-gateway/rest/router"
	"rest-gateway/rest/router/domain"
)

func main() {
	// Exemplo: usando o router direto dentro do seu serviço (sem o gateway)
	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()

	upstream := os.Getenv("UPSTREAM_URL")
	if upstream == "" {
		upstream = "http://localhost:8081"
	}

	client, err := router.New(upstream,
		router.WithLogger(log),
		router.WithUserAgent("example-server"),
		router.WithGlobalLimit(10, time.Second),
	)
	if err != nil {
		log.Fatal("router", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	// GET /webhooks?channel=123 lista os webhooks do canal
	mux.HandleFunc("/webhooks", func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}

		resp, err := client.Call(r.Context(), router.Routes.ChannelWebhooksGet, channel)
		var ce *domain.ClientError
		switch {
		case err == nil:
		case errors.As(err, &ce):
			http.Error(w, ce.Message, ce.Status)
			return
		case errors.Is(err, domain.ErrCancelled):
			return
		default:
			log.Warn("webhooks call failed", zap.String("channel", channel), zap.Error(err))
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp.Body)
	})
	mux.HandleFunc("/buckets", func(w http.ResponseWriter, _ *http.Request) {
		type bucket struct {
			Key       string `json:"key"`
			State     string `json:"state"`
			Remaining int    `json:"remaining"`
			Queued    int    `json:"queued"`
		}
		var out []bucket
		for _, b := range client.Buckets() {
			out = append(out, bucket{Key: b.Key.String(), State: b.State.String(), Remaining: b.Remaining, Queued: b.Queued})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = client.Close(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr), zap.String("upstream", upstream))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
