package infra

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rest-gateway/rest/router/domain"
)

// Metrics guarda as métricas Prometheus do router e implementa domain.StatsStore.
type Metrics struct {
	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	RateLimitedTotal *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ExchangesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restrouter",
				Name:      "exchanges_total",
				Help:      "Total exchanges with the upstream API",
			},
			[]string{"method", "template", "outcome"},
		),
		ExchangeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "restrouter",
				Name:      "exchange_duration_seconds",
				Help:      "Exchange duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restrouter",
				Name:      "rate_limited_total",
				Help:      "429 responses received, by scope",
			},
			[]string{"scope"}, // scope=bucket/global
		),
		RetriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restrouter",
				Name:      "retried_attempts_total",
				Help:      "Exchanges that were a retry of an earlier attempt",
			},
			[]string{"attempt"},
		),
	}
}

// RegisterBucketGauge expõe a contagem de buckets vivos do router.
func RegisterBucketGauge(reg prometheus.Registerer, count func() int) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "restrouter",
			Name:      "buckets",
			Help:      "Number of rate limit buckets with a dispatcher loop",
		},
		func() float64 { return float64(count()) },
	)
}

// RegisterGlobalGauges expõe o teto da cota global e as fichas que restam na janela.
func RegisterGlobalGauges(reg prometheus.Registerer, ceiling int, remaining func() int) {
	f := promauto.With(reg)
	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "restrouter",
			Name:      "global_ceiling",
			Help:      "Configured global requests per window (0 = unlimited)",
		},
		func() float64 { return float64(ceiling) },
	)
	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "restrouter",
			Name:      "global_remaining",
			Help:      "Global requests left in the current window",
		},
		func() float64 { return float64(remaining()) },
	)
}

func (m *Metrics) Record(_ context.Context, ev domain.ExchangeEvent) error {
	if m == nil {
		return nil
	}
	outcome := string(ev.Outcome)
	m.ExchangesTotal.WithLabelValues(ev.Method, ev.Template, outcome).Inc()
	m.ExchangeDuration.WithLabelValues(outcome).Observe(ev.Duration.Seconds())
	if ev.Outcome == domain.OutcomeRateLimited {
		scope := "bucket"
		if ev.Global {
			scope = "global"
		}
		m.RateLimitedTotal.WithLabelValues(scope).Inc()
	}
	if ev.Attempt > 1 {
		m.RetriesTotal.WithLabelValues(strconv.Itoa(ev.Attempt)).Inc()
	}
	return nil
}

var _ domain.StatsStore = (*Metrics)(nil)
