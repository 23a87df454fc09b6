package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// config mantém os nomes de env do gateway original (LISTEN_ADDR, UPSTREAM_URL,
// CONCURRENCY_*, RATE_STATS_*) e acrescenta os do router.
type config struct {
	ListenAddr  string `mapstructure:"listen_addr" validate:"required"`
	UpstreamURL string `mapstructure:"upstream_url" validate:"required,url"`
	PathPrefix  string `mapstructure:"path_prefix"`
	UserAgent   string `mapstructure:"user_agent"`
	// Authorization fixo enviado em toda troca; vazio repassa o da request de entrada.
	Authorization string `mapstructure:"authorization"`

	GlobalLimit     int           `mapstructure:"global_limit" validate:"gte=0"`
	GlobalWindow    time.Duration `mapstructure:"global_window" validate:"gt=0"`
	ExchangeTimeout time.Duration `mapstructure:"exchange_timeout" validate:"gt=0"`
	RetryMaxAttempt int           `mapstructure:"retry_max_attempts" validate:"gte=1,lte=10"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay" validate:"gtefield=RetryBaseDelay"`

	ConcurrencyMax     int           `mapstructure:"concurrency_max" validate:"gte=0"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout" validate:"gte=0"`
	AddRouterHeaders   bool          `mapstructure:"add_router_headers"`
	TemplateHeader     string        `mapstructure:"template_header"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path" validate:"startswith=/"`

	RateStatsEnabled       bool          `mapstructure:"rate_stats_enabled"`
	RateStatsRedisAddr     string        `mapstructure:"rate_stats_redis_addr" validate:"required_if=RateStatsEnabled true"`
	RateStatsRedisPassword string        `mapstructure:"rate_stats_redis_password"`
	RateStatsRedisDB       int           `mapstructure:"rate_stats_redis_db" validate:"gte=0"`
	RateStatsPrefix        string        `mapstructure:"rate_stats_prefix"`
	RateStatsTTL           time.Duration `mapstructure:"rate_stats_ttl"`
	RateStatsBucket        string        `mapstructure:"rate_stats_bucket" validate:"oneof=minute none"`
	RateStatsTrackBuckets  bool          `mapstructure:"rate_stats_track_buckets"`
}

var defaults = map[string]any{
	"listen_addr":               ":8080",
	"upstream_url":              "",
	"path_prefix":               "",
	"user_agent":                "rest-gateway",
	"authorization":             "",
	"global_limit":              50,
	"global_window":             time.Second,
	"exchange_timeout":          10 * time.Second,
	"retry_max_attempts":        3,
	"retry_base_delay":          500 * time.Millisecond,
	"retry_max_delay":           10 * time.Second,
	"concurrency_max":           100,
	"concurrency_timeout":       time.Duration(0),
	"add_router_headers":        false,
	"template_header":           "X-Route-Template",
	"log_level":                 "info",
	"metrics_enabled":           true,
	"metrics_path":              "/metrics",
	"rate_stats_enabled":        false,
	"rate_stats_redis_addr":     "",
	"rate_stats_redis_password": "",
	"rate_stats_redis_db":       0,
	"rate_stats_prefix":         "router:stats",
	"rate_stats_ttl":            24 * time.Hour,
	"rate_stats_bucket":         "minute",
	"rate_stats_track_buckets":  false,
}

// newViper lê o arquivo (opcional) e as variáveis de ambiente sem prefixo:
// rate_stats_ttl vem de RATE_STATS_TTL.
func newViper(configFile string) *viper.Viper {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func loadConfig(v *viper.Viper) (config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.RateStatsBucket = strings.ToLower(strings.TrimSpace(cfg.RateStatsBucket))

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
