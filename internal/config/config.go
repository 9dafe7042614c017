// Package config parses and validates all worker configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// The RUNPOD_* names match the variables injected into serverless pods by the
// platform, so a worker built with this SDK drops into an existing template
// without any extra wiring.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

// Config holds all worker configuration sourced from environment variables.
type Config struct {
	// ── Queue endpoints ─────────────────────────────────────────────────────────
	// WebhookGetJob is the job acquisition URL. "$ID" is replaced with the
	// worker's pod ID. Required for remote mode; validated by the caller so the
	// local API can run without it.
	WebhookGetJob string `env:"RUNPOD_WEBHOOK_GET_JOB"`
	// WebhookPostOutput and WebhookPostStream carry "$ID" placeholders replaced
	// with the job ID at submission time.
	WebhookPostOutput string `env:"RUNPOD_WEBHOOK_POST_OUTPUT"`
	WebhookPostStream string `env:"RUNPOD_WEBHOOK_POST_STREAM"`
	WebhookPing       string `env:"RUNPOD_WEBHOOK_PING"`
	APIKey            string `env:"RUNPOD_AI_API_KEY"`

	// ── Worker identity ─────────────────────────────────────────────────────────
	PodID       string `env:"RUNPOD_POD_ID"`
	PodHostname string `env:"RUNPOD_POD_HOSTNAME"`

	// ── Tuning ──────────────────────────────────────────────────────────────────
	// Concurrency is the number of independent acquire/execute pipelines.
	Concurrency  int           `env:"RUNPOD_WORKER_CONCURRENCY" envDefault:"1"`
	PollInterval time.Duration `env:"RUNPOD_POLL_INTERVAL"      envDefault:"1s"`
	PingInterval time.Duration `env:"RUNPOD_PING_INTERVAL"      envDefault:"10s"`
	// HTTPTimeout bounds every queue request, including the long-poll GET.
	HTTPTimeout time.Duration `env:"RUNPOD_HTTP_TIMEOUT" envDefault:"90s"`
	// MaxResultBytes caps the serialized result envelope. Default 20 MiB.
	MaxResultBytes int `env:"RUNPOD_MAX_RESULT_BYTES" envDefault:"20971520"`
	SubmitAttempts int `env:"RUNPOD_SUBMIT_ATTEMPTS"  envDefault:"3"`

	// ── Local surfaces ──────────────────────────────────────────────────────────
	// MetricsAddr exposes Prometheus metrics when non-empty (e.g. ":9090").
	MetricsAddr  string `env:"RUNPOD_METRICS_ADDR"`
	LocalAPIAddr string `env:"RUNPOD_API_ADDR" envDefault:":8000"`

	// ── Logging ─────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses Config from environment variables and fills identity defaults:
// a generated pod ID when the platform did not inject one, and the OS hostname.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.PodID == "" {
		cfg.PodID = "local-" + uuid.NewString()
	}
	if cfg.PodHostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.PodHostname = h
		} else {
			cfg.PodHostname = "unknown"
		}
	}
	return cfg, nil
}
