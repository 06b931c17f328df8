// Package config provides configuration loading for eternal.
//
// Values come from an optional YAML file and ETERNAL_* environment
// variables, in that order of increasing precedence. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Archive backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Swarm sources.
const (
	SourceSimulated = "simulated"
	SourceWeb       = "web"
)

// Config holds the complete eternal configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Archive       ArchiveConfig       `koanf:"archive"`
	Swarm         SwarmConfig         `koanf:"swarm"`
	Gatekeeper    GatekeeperConfig    `koanf:"gatekeeper"`
	Synthesis     SynthesisConfig     `koanf:"synthesis"`
	Enrich        EnrichConfig        `koanf:"enrich"`
	FactFinder    FactFinderConfig    `koanf:"factfinder"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ArchiveConfig selects and configures the archive backend.
type ArchiveConfig struct {
	Backend string      `koanf:"backend"`
	Path    string      `koanf:"path"`
	Redis   RedisConfig `koanf:"redis"`
}

// RedisConfig configures the redis archive backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Key      string `koanf:"key"`
	Password Secret `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SwarmConfig configures the fetch swarm.
type SwarmConfig struct {
	Source           string   `koanf:"source"`
	SimulatedLatency Duration `koanf:"simulated_latency"`
	MaxConcurrency   int      `koanf:"max_concurrency"`
	SearchEndpoint   string   `koanf:"search_endpoint"`
	UserAgent        string   `koanf:"user_agent"`
	FetchTimeout     Duration `koanf:"fetch_timeout"`
	RateLimit        float64  `koanf:"rate_limit"` // requests per second across all web fetches
	CacheTTL         Duration `koanf:"cache_ttl"`
}

// GatekeeperConfig extends the built-in phase markers.
type GatekeeperConfig struct {
	SentrySignatures    []string `koanf:"sentry_signatures"`
	InterrogatorMarkers []string `koanf:"interrogator_markers"`
	SkipSecretRedaction bool     `koanf:"skip_secret_redaction"`
}

// SynthesisConfig configures the text-synthesis backend.
type SynthesisConfig struct {
	Endpoint   string   `koanf:"endpoint"`
	Model      string   `koanf:"model"`
	APIKey     Secret   `koanf:"api_key"`
	Timeout    Duration `koanf:"timeout"`
	MaxRetries int      `koanf:"max_retries"`
	RateLimit  float64  `koanf:"rate_limit"`
}

// EnrichConfig configures image lookup and visualization.
type EnrichConfig struct {
	PexelsAPIKey   Secret   `koanf:"pexels_api_key"`
	PexelsEndpoint string   `koanf:"pexels_endpoint"`
	StaticDir      string   `koanf:"static_dir"`
	CacheTTL       Duration `koanf:"cache_ttl"`
	Timeout        Duration `koanf:"timeout"`
}

// FactFinderConfig configures the own-system research agent.
type FactFinderConfig struct {
	WikipediaEndpoint string   `koanf:"wikipedia_endpoint"`
	Timeout           Duration `koanf:"timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"`
	Insecure        bool    `koanf:"insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// LoggingConfig is the subset of logging settings exposed through config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Archive.Backend {
	case BackendFile:
		if c.Archive.Path == "" {
			errs = append(errs, errors.New("archive.path is required for the file backend"))
		}
	case BackendRedis:
		if c.Archive.Redis.Addr == "" {
			errs = append(errs, errors.New("archive.redis.addr is required for the redis backend"))
		}
		if c.Archive.Redis.Key == "" {
			errs = append(errs, errors.New("archive.redis.key is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.backend must be %q or %q, got %q", BackendFile, BackendRedis, c.Archive.Backend))
	}

	switch c.Swarm.Source {
	case SourceSimulated:
	case SourceWeb:
		if err := validateEndpoint("swarm.search_endpoint", c.Swarm.SearchEndpoint); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("swarm.source must be %q or %q, got %q", SourceSimulated, SourceWeb, c.Swarm.Source))
	}
	if c.Swarm.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("swarm.max_concurrency cannot be negative, got %d", c.Swarm.MaxConcurrency))
	}

	if c.Synthesis.Endpoint != "" {
		if err := validateEndpoint("synthesis.endpoint", c.Synthesis.Endpoint); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Synthesis.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("synthesis.max_retries cannot be negative, got %d", c.Synthesis.MaxRetries))
	}

	if err := validateEndpoint("enrich.pexels_endpoint", c.Enrich.PexelsEndpoint); err != nil {
		errs = append(errs, err)
	}
	if err := validateEndpoint("factfinder.wikipedia_endpoint", c.FactFinder.WikipediaEndpoint); err != nil {
		errs = append(errs, err)
	}

	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("observability.sampling_rate must be between 0 and 1, got %f", c.Observability.SamplingRate))
	}

	return errors.Join(errs...)
}

func validateEndpoint(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", name, raw)
	}
	return nil
}
