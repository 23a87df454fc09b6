package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"rest-gateway/rest/router"
	"rest-gateway/rest/router/application"
	"rest-gateway/rest/router/infra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Egress proxy that paces calls to a rate-limited REST API",
	Long: `gateway recebe chamadas dos serviços internos e as encaminha para a API
remota através do router: uma fila por bucket, respeitando os headers
X-RateLimit-* e o limite global da conta.

Configuração por variáveis de ambiente (UPSTREAM_URL, LISTEN_ADDR, GLOBAL_LIMIT,
RATE_STATS_* ...) ou arquivo YAML via --config.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(newViper(cfgFile))
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return run(ctx, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars override it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(ctx context.Context, cfg config) error {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	var stores infra.MultiStatsStore

	reg := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		stores = append(stores, infra.NewMetrics(reg))
	}

	if cfg.RateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateStatsRedisAddr,
			Password: cfg.RateStatsRedisPassword,
			DB:       cfg.RateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis stats ping error: %w", err)
		}

		stores = append(stores, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.RateStatsPrefix),
			infra.WithStatsTTL(cfg.RateStatsTTL),
			infra.WithStatsBucket(cfg.RateStatsBucket),
			infra.WithStatsTrackBuckets(cfg.RateStatsTrackBuckets),
		))
	}

	opts := []router.Option{
		router.WithLogger(log),
		router.WithUserAgent(cfg.UserAgent),
		router.WithGlobalLimit(cfg.GlobalLimit, cfg.GlobalWindow),
		router.WithExchangeTimeout(cfg.ExchangeTimeout),
		router.WithRetryPolicy(application.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempt,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		}),
	}
	if len(stores) > 0 {
		opts = append(opts, router.WithStats(stores))
	}
	if cfg.Authorization != "" {
		opts = append(opts, router.WithHeader("Authorization", cfg.Authorization))
	}

	client, err := router.New(cfg.UpstreamURL, opts...)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	if cfg.MetricsEnabled {
		infra.RegisterBucketGauge(reg, client.BucketCount)
		infra.RegisterGlobalGauges(reg, client.GlobalCeiling(), client.GlobalRemaining)
	}

	h := router.ProxyHandler(router.ProxyOptions{
		Dispatcher:       client,
		TemplateHeader:   cfg.TemplateHeader,
		PathPrefix:       cfg.PathPrefix,
		ForwardHeaders:   forwardHeaders(cfg),
		AddRouterHeaders: cfg.AddRouterHeaders,
		Logger:           log,
	})
	h = router.ConcurrencyMiddleware(router.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		RetryAfter:     time.Second,
	})(h)

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/", h)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a resposta pode esperar a fila do bucket
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  90 * time.Second,
	}

	log.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upstream", cfg.UpstreamURL),
		zap.Int("global_limit", cfg.GlobalLimit),
		zap.Duration("global_window", cfg.GlobalWindow),
		zap.Int("retry_max_attempts", cfg.RetryMaxAttempt),
		zap.Int("concurrency_max", cfg.ConcurrencyMax),
		zap.Bool("rate_stats", cfg.RateStatsEnabled),
		zap.Bool("metrics", cfg.MetricsEnabled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		// fila restante recebe ErrRouterClosed
		if err := client.Close(shutdownCtx); err != nil {
			log.Warn("router close", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func forwardHeaders(cfg config) []string {
	hs := []string{"Content-Type", infra.HeaderAuditReason}
	if cfg.Authorization == "" {
		hs = append(hs, "Authorization")
	}
	return hs
}
