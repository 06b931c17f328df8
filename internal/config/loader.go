package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ETERNAL_"

	// pexelsKeyEnv is read when enrich.pexels_api_key is unset.
	pexelsKeyEnv = "PEXELS_API_KEY"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. ETERNAL_* environment variables
//  2. YAML config file
//  3. Defaults from applyDefaults
//
// An empty configPath means ~/.config/eternal/config.yaml. A missing file is
// not an error. An existing file must be 0600 or 0400 and at most 1MB.
//
// Environment variables drop the prefix, lowercase, and use a double
// underscore as the section separator:
//
//	ETERNAL_SERVER__PORT          -> server.port
//	ETERNAL_ARCHIVE__REDIS__ADDR  -> archive.redis.addr
//	ETERNAL_SYNTHESIS__API_KEY    -> synthesis.api_key
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "eternal", "config.yaml")
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, k)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps ETERNAL_ARCHIVE__REDIS__ADDR to archive.redis.addr.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Stat the open descriptor so the checked file is the one we read.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields. Fields
// where zero is a meaningful setting are only defaulted when k never saw the
// key, so an explicit 0 survives.
func applyDefaults(cfg *Config, k *koanf.Koanf) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = BackendFile
	}
	if cfg.Archive.Path == "" {
		cfg.Archive.Path = filepath.Join("data", "eternal_archive.json")
	}
	if cfg.Archive.Redis.Key == "" {
		cfg.Archive.Redis.Key = "eternal:archive"
	}

	if cfg.Swarm.Source == "" {
		cfg.Swarm.Source = SourceSimulated
	}
	if !k.Exists("swarm.simulated_latency") {
		cfg.Swarm.SimulatedLatency = Duration(700 * time.Millisecond)
	}
	if cfg.Swarm.SearchEndpoint == "" {
		cfg.Swarm.SearchEndpoint = "https://html.duckduckgo.com/html/"
	}
	if cfg.Swarm.UserAgent == "" {
		cfg.Swarm.UserAgent = "EternalSwarm/1.0"
	}
	if cfg.Swarm.FetchTimeout == 0 {
		cfg.Swarm.FetchTimeout = Duration(10 * time.Second)
	}
	if cfg.Swarm.RateLimit == 0 {
		cfg.Swarm.RateLimit = 5
	}
	if cfg.Swarm.CacheTTL == 0 {
		cfg.Swarm.CacheTTL = Duration(time.Hour)
	}

	if cfg.Synthesis.Endpoint == "" {
		cfg.Synthesis.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Synthesis.Model == "" {
		cfg.Synthesis.Model = "gpt-4o-mini"
	}
	if cfg.Synthesis.Timeout == 0 {
		cfg.Synthesis.Timeout = Duration(60 * time.Second)
	}
	if !k.Exists("synthesis.max_retries") {
		cfg.Synthesis.MaxRetries = 3
	}
	if cfg.Synthesis.RateLimit == 0 {
		cfg.Synthesis.RateLimit = 2
	}

	if !cfg.Enrich.PexelsAPIKey.IsSet() {
		cfg.Enrich.PexelsAPIKey = Secret(os.Getenv(pexelsKeyEnv))
	}
	if cfg.Enrich.PexelsEndpoint == "" {
		cfg.Enrich.PexelsEndpoint = "https://api.pexels.com/v1/search"
	}
	if cfg.Enrich.CacheTTL == 0 {
		cfg.Enrich.CacheTTL = Duration(24 * time.Hour)
	}
	if cfg.Enrich.Timeout == 0 {
		cfg.Enrich.Timeout = Duration(10 * time.Second)
	}

	if cfg.FactFinder.WikipediaEndpoint == "" {
		cfg.FactFinder.WikipediaEndpoint = "https://en.wikipedia.org/api/rest_v1/page/summary/"
	}
	if cfg.FactFinder.Timeout == 0 {
		cfg.FactFinder.Timeout = Duration(15 * time.Second)
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "eternal"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
		cfg.Observability.Insecure = true
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.SamplingRate == 0 {
		cfg.Observability.SamplingRate = 1.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
