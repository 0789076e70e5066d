// Package config loads the server configuration from an optional dotenv file and the
// process environment. Environment variables win over the file. Every key is prefixed
// with GATEKEEPER_, e.g. GATEKEEPER_ADDR.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	pstrings "gatekeeper/pkg/platform/strings"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "GATEKEEPER_"

const EnvironmentProduction = "production"

// Server captures the process configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	TrustedProxies  []string
	ShutdownTimeout time.Duration
	SweepInterval   time.Duration
	CSRFTokenTTL    time.Duration
	Lockout         Lockout
	GlobalPerSecond float64
	GlobalBurst     int
	// RateLimitMaxKeys bounds the rate limit windows kept in memory. 0 is unbounded.
	RateLimitMaxKeys int
	// TraceSampleRatio is the share of root spans sampled. Sampled parents are always followed.
	TraceSampleRatio float64
	// IPDenyList and IPAllowList hold addresses or CIDRs. A non-empty allow list admits only
	// its members.
	IPDenyList  []string
	IPAllowList []string
}

type Lockout struct {
	MaxAttempts int
	Duration    time.Duration
	IdleTTL     time.Duration
}

// Default returns the configuration used when nothing is set. The environment defaults to
// production so that a missing variable never relaxes cookie security.
func Default() Server {
	return Server{
		Addr:            ":8080",
		Environment:     EnvironmentProduction,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		SweepInterval:   time.Minute,
		CSRFTokenTTL:    time.Hour,
		Lockout: Lockout{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		GlobalPerSecond: 1000,
		GlobalBurst:     2000,
	}
}

// IsProduction reports whether the server runs in production.
func (s Server) IsProduction() bool {
	return strings.EqualFold(s.Environment, EnvironmentProduction)
}

// Load reads envFile when it exists, then the environment. An empty envFile skips the file.
func Load(envFile string) (Server, error) {
	k := koanf.New(".")
	keyOf := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := k.Load(file.Provider(envFile), dotenv.ParserEnv(EnvPrefix, ".", keyOf)); err != nil {
				return Server{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", keyOf), nil); err != nil {
		return Server{}, fmt.Errorf("load environment: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (Server, error) {
	cfg := Default()
	r := reader{k: k}

	cfg.Addr = r.string("addr", cfg.Addr)
	cfg.Environment = r.string("env", cfg.Environment)
	cfg.LogLevel = r.string("log_level", cfg.LogLevel)
	cfg.TrustedProxies = pstrings.SplitList(r.string("trusted_proxies", ""))
	cfg.IPDenyList = pstrings.SplitList(r.string("ip_denylist", ""))
	cfg.IPAllowList = pstrings.SplitList(r.string("ip_allowlist", ""))
	cfg.ShutdownTimeout = r.duration("shutdown_timeout", cfg.ShutdownTimeout)
	cfg.SweepInterval = r.duration("sweep_interval", cfg.SweepInterval)
	cfg.CSRFTokenTTL = r.duration("csrf_token_ttl", cfg.CSRFTokenTTL)
	cfg.Lockout.MaxAttempts = r.int("lockout_max_attempts", cfg.Lockout.MaxAttempts)
	cfg.Lockout.Duration = r.duration("lockout_duration", cfg.Lockout.Duration)
	cfg.Lockout.IdleTTL = r.duration("lockout_idle_ttl", cfg.Lockout.IdleTTL)
	cfg.GlobalPerSecond = r.float("global_rps", cfg.GlobalPerSecond)
	cfg.GlobalBurst = r.int("global_burst", cfg.GlobalBurst)
	cfg.RateLimitMaxKeys = r.int("ratelimit_max_keys", cfg.RateLimitMaxKeys)
	cfg.TraceSampleRatio = r.float("trace_sample_ratio", cfg.TraceSampleRatio)

	if err := errors.Join(r.errs...); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values that would disable a gate.
func (s Server) Validate() error {
	var errs []error
	if s.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if s.CSRFTokenTTL <= 0 {
		errs = append(errs, errors.New("csrf_token_ttl must be positive"))
	}
	if s.Lockout.MaxAttempts < 1 {
		errs = append(errs, errors.New("lockout_max_attempts must be at least 1"))
	}
	if s.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("lockout_duration must be positive"))
	}
	if s.Lockout.IdleTTL < 0 {
		errs = append(errs, errors.New("lockout_idle_ttl must not be negative"))
	}
	if s.GlobalPerSecond <= 0 || s.GlobalBurst < 1 {
		errs = append(errs, errors.New("global_rps and global_burst must be positive"))
	}
	if s.RateLimitMaxKeys < 0 {
		errs = append(errs, errors.New("ratelimit_max_keys must not be negative"))
	}
	if s.TraceSampleRatio < 0 || s.TraceSampleRatio > 1 {
		errs = append(errs, errors.New("trace_sample_ratio must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// reader converts koanf strings, collecting every parse error instead of silently
// falling back to zero values.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) string(key, def string) string {
	if v := strings.TrimSpace(r.k.String(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err))
		return def
	}
	return d
}

func (r *reader) int(key string, def int) int {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	raw := r.string(key, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err))
		return def
	}
	return f
}
