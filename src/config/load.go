package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envMappings maps flat environment variable names onto koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"mysql_dsn":             "database.dsn",
	"db_max_open_conns":     "database.max_open_conns",
	"db_max_idle_conns":     "database.max_idle_conns",
	"db_chunk_size":         "database.chunk_size",
	"substreams_endpoint":   "stream.endpoint",
	"substreams_api_token":  "stream.api_token",
	"substreams_module":     "stream.output_module",
	"start_block":           "stream.start_block",
	"stream_idle_timeout":   "stream.idle_timeout",
	"stream_max_attempts":   "stream.max_attempts",
	"ipfs_gateway":          "ipfs.gateway",
	"ipfs_timeout":          "ipfs.timeout",
	"ipfs_concurrency":      "ipfs.concurrency",
	"redis_url":             "redis.url",
	"redis_ttl":             "redis.ttl",
	"discord_webhook_url":   "telemetry.discord_webhook_url",
	"telemetry_environment": "telemetry.environment",
	"api_enabled":           "api.enabled",
	"api_listen":            "api.listen",
	"api_jwt_secret":        "api.jwt_secret",
	"api_cors_origins":      "api.cors_origins",
	"log_level":             "log.level",
	"log_format":            "log.format",
	"root_space_address":    "chain.root_space_address",
	"retry_base_delay":      "retry.base_delay",
	"retry_max_delay":       "retry.max_delay",
	"retry_max_attempts":    "retry.max_attempts",
}

var listKeys = map[string]bool{
	"api.cors_origins": true,
}

// Loader keeps the koanf instance so later layers, such as database
// settings, can be applied on top of the initial load.
type Loader struct {
	k *koanf.Koanf
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty or set through GEO_SINK_CONFIG), and the environment.
func Load(path string) (*Config, *Loader, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv("GEO_SINK_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, nil, fmt.Errorf("load environment: %w", err)
	}

	l := &Loader{k: k}
	cfg, err := l.build()
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

// Apply layers another provider on top and rebuilds the configuration.
func (l *Loader) Apply(p koanf.Provider) (*Config, error) {
	if err := l.k.Load(p, nil); err != nil {
		return nil, err
	}
	return l.build()
}

func (l *Loader) build() (*Config, error) {
	cfg := &Config{}
	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func envTransform(key, value string) (string, interface{}) {
	path := KeyFor(key)
	if path == "" {
		return "", nil
	}
	if listKeys[path] {
		return path, splitList(value)
	}
	return path, value
}

// KeyFor returns the koanf path for a flat setting name such as MYSQL_DSN
// or ipfs_gateway, or "" when the name is not recognised.
func KeyFor(name string) string {
	return envMappings[strings.ToLower(strings.TrimSpace(name))]
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
