// Package config loads orbitgo settings from an optional YAML file and
// ORBITGO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/orbitgo/internal/auth"
	"github.com/star/orbitgo/internal/ephemeris"
	"github.com/star/orbitgo/internal/kepler"
	"github.com/star/orbitgo/internal/orbit"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/stream"
)

// EnvPrefix is prepended to every environment variable, e.g.
// ORBITGO_PROPAGATION_NUM_POINTS.
const EnvPrefix = "ORBITGO"

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr       string
	TrustProxy bool
}

// EphemerisConfig holds Horizons fetch and position file settings.
type EphemerisConfig struct {
	EnableFetch bool
	SourceURL   string
	CacheDir    string
	MaxFiles    int
	DataDir     string
	Span        ephemeris.Span
	Concurrency int
}

// Config is the complete service configuration.
type Config struct {
	HTTP        HTTPConfig
	Auth        auth.Config
	Propagation propagation.PropConfig
	CatalogPath string
	InfoPath    string // planet_data.json fact sheets, optional
	Ephemeris   EphemerisConfig
	Stream      stream.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("propagation.workers", runtime.NumCPU())
	v.SetDefault("propagation.num_points", orbit.DefaultNumPoints)
	v.SetDefault("propagation.tolerance", kepler.DefaultTolerance)
	v.SetDefault("propagation.max_iterations", kepler.DefaultMaxIterations)
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.info_path", "")
	v.SetDefault("ephemeris.enable_fetch", false)
	v.SetDefault("ephemeris.source_url", ephemeris.DefaultSourceURL)
	v.SetDefault("ephemeris.cache_dir", "/tmp/orbitgo/horizons")
	v.SetDefault("ephemeris.max_files", 5)
	v.SetDefault("ephemeris.data_dir", "data")
	v.SetDefault("ephemeris.start", "2024-01-01")
	v.SetDefault("ephemeris.stop", "2025-01-01")
	v.SetDefault("ephemeris.step", "1 DAYS")
	v.SetDefault("ephemeris.concurrency", 4)
	v.SetDefault("stream.max_concurrent_per_ip", 10)
	v.SetDefault("stream.max_total", 1000)
	v.SetDefault("stream.poll_interval", "5s")
	v.SetDefault("stream.keepalive_interval", "30s")
}

// New returns a viper instance with defaults and environment binding.
// When path is non-empty the YAML file is read; a missing file is an error.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads the configuration. Out-of-range values are logged and
// replaced by defaults; only auth misconfiguration is fatal.
func Load(path string, logger *slog.Logger) (Config, error) {
	v, err := New(path)
	if err != nil {
		return Config{}, err
	}
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("using config file", "path", f)
	}
	return FromViper(v, logger)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper, logger *slog.Logger) (Config, error) {
	authCfg, err := loadAuthConfig(v, logger)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:       v.GetString("http.addr"),
			TrustProxy: v.GetBool("http.trust_proxy"),
		},
		Auth:        authCfg,
		Propagation: loadPropConfig(v, logger),
		CatalogPath: v.GetString("catalog.path"),
		InfoPath:    v.GetString("catalog.info_path"),
		Ephemeris:   loadEphemerisConfig(v, logger),
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.Stream = loadStreamConfig(v, logger)
	cfg.Stream.TrustProxy = cfg.HTTP.TrustProxy
	return cfg, nil
}

func loadAuthConfig(v *viper.Viper, logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{Enabled: v.GetBool("auth.enabled")}
	if cfg.Enabled {
		cfg.Token = v.GetString("auth.token")
		if cfg.Token == "" {
			return cfg, errors.New("ORBITGO_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}
	return cfg, nil
}

func loadPropConfig(v *viper.Viper, logger *slog.Logger) propagation.PropConfig {
	cfg := propagation.PropConfig{
		Workers: v.GetInt("propagation.workers"),
		Orbit:   orbit.DefaultConfig(),
	}

	if cfg.Workers < 1 {
		logger.Warn("invalid propagation.workers value, using default", "value", cfg.Workers, "default", runtime.NumCPU())
		cfg.Workers = runtime.NumCPU()
	}

	if n := v.GetInt("propagation.num_points"); n < 1 {
		logger.Warn("invalid propagation.num_points value, using default", "value", n, "default", orbit.DefaultNumPoints)
	} else {
		cfg.Orbit.NumPoints = n
	}

	if tol := v.GetFloat64("propagation.tolerance"); !(tol > 0) || math.IsInf(tol, 0) {
		logger.Warn("invalid propagation.tolerance value, using default", "value", tol, "default", kepler.DefaultTolerance)
	} else {
		cfg.Orbit.Tolerance = tol
	}

	if n := v.GetInt("propagation.max_iterations"); n < 1 {
		logger.Warn("invalid propagation.max_iterations value, using default", "value", n, "default", kepler.DefaultMaxIterations)
	} else {
		cfg.Orbit.MaxIterations = n
	}

	logger.Info("propagation config",
		"workers", cfg.Workers,
		"num_points", cfg.Orbit.NumPoints,
		"tolerance", cfg.Orbit.Tolerance,
		"max_iterations", cfg.Orbit.MaxIterations,
	)

	return cfg
}

func loadEphemerisConfig(v *viper.Viper, logger *slog.Logger) EphemerisConfig {
	cfg := EphemerisConfig{
		EnableFetch: v.GetBool("ephemeris.enable_fetch"),
		SourceURL:   v.GetString("ephemeris.source_url"),
		CacheDir:    v.GetString("ephemeris.cache_dir"),
		MaxFiles:    v.GetInt("ephemeris.max_files"),
		DataDir:     v.GetString("ephemeris.data_dir"),
		Concurrency: v.GetInt("ephemeris.concurrency"),
	}

	if cfg.MaxFiles < 1 {
		logger.Warn("invalid ephemeris.max_files value, using default", "value", cfg.MaxFiles, "default", 5)
		cfg.MaxFiles = 5
	}
	if cfg.Concurrency < 1 {
		logger.Warn("invalid ephemeris.concurrency value, using default", "value", cfg.Concurrency, "default", 4)
		cfg.Concurrency = 4
	}

	cfg.Span = loadSpan(v, logger)

	logger.Info("ephemeris config",
		"enable_fetch", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"data_dir", cfg.DataDir,
		"start", cfg.Span.Start.Format(ephemeris.DateLayout),
		"stop", cfg.Span.Stop.Format(ephemeris.DateLayout),
		"step", cfg.Span.Step,
	)

	return cfg
}

func loadSpan(v *viper.Viper, logger *slog.Logger) ephemeris.Span {
	def := ephemeris.Span{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Stop:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Step:  "1 DAYS",
	}

	start, err := time.Parse(ephemeris.DateLayout, v.GetString("ephemeris.start"))
	if err != nil {
		logger.Warn("invalid ephemeris.start value, using default", "value", v.GetString("ephemeris.start"), "default", "2024-01-01")
		return def
	}
	stop, err := time.Parse(ephemeris.DateLayout, v.GetString("ephemeris.stop"))
	if err != nil {
		logger.Warn("invalid ephemeris.stop value, using default", "value", v.GetString("ephemeris.stop"), "default", "2025-01-01")
		return def
	}

	span := ephemeris.Span{Start: start, Stop: stop, Step: strings.TrimSpace(v.GetString("ephemeris.step"))}
	if err := span.Validate(); err != nil {
		logger.Warn("invalid ephemeris span, using default", "error", err)
		return def
	}
	return span
}

func loadStreamConfig(v *viper.Viper, logger *slog.Logger) stream.Config {
	def := stream.DefaultConfig()
	cfg := stream.Config{
		MaxConcurrentPerIP: v.GetInt("stream.max_concurrent_per_ip"),
		MaxTotal:           v.GetInt("stream.max_total"),
		PollInterval:       v.GetDuration("stream.poll_interval"),
		KeepaliveInterval:  v.GetDuration("stream.keepalive_interval"),
	}

	if cfg.MaxConcurrentPerIP < 1 {
		logger.Warn("invalid stream.max_concurrent_per_ip value, using default", "value", cfg.MaxConcurrentPerIP, "default", def.MaxConcurrentPerIP)
		cfg.MaxConcurrentPerIP = def.MaxConcurrentPerIP
	}
	if cfg.MaxTotal < 1 {
		logger.Warn("invalid stream.max_total value, using default", "value", cfg.MaxTotal, "default", def.MaxTotal)
		cfg.MaxTotal = def.MaxTotal
	}
	if cfg.PollInterval < 100*time.Millisecond {
		logger.Warn("invalid stream.poll_interval value, using default", "value", cfg.PollInterval, "default", def.PollInterval)
		cfg.PollInterval = def.PollInterval
	}
	if cfg.KeepaliveInterval < time.Second {
		logger.Warn("invalid stream.keepalive_interval value, using default", "value", cfg.KeepaliveInterval, "default", def.KeepaliveInterval)
		cfg.KeepaliveInterval = def.KeepaliveInterval
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"poll_interval_seconds", cfg.PollInterval.Seconds(),
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)

	return cfg
}
