// Package config loads geo-sink settings from defaults, an optional YAML
// file, the environment, and the database settings table, in that order.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Database  Database  `koanf:"database"`
	Stream    Stream    `koanf:"stream"`
	IPFS      IPFS      `koanf:"ipfs"`
	Redis     Redis     `koanf:"redis"`
	Telemetry Telemetry `koanf:"telemetry"`
	API       API       `koanf:"api"`
	Log       Log       `koanf:"log"`
	Chain     Chain     `koanf:"chain"`
	Retry     Retry     `koanf:"retry"`
}

type Database struct {
	DSN          string        `koanf:"dsn" validate:"required"`
	MaxOpenConns int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLife  time.Duration `koanf:"conn_max_life"`
	ChunkSize    int           `koanf:"chunk_size" validate:"min=1,max=5000"`
}

type Stream struct {
	Endpoint     string        `koanf:"endpoint" validate:"omitempty,url"`
	APIToken     string        `koanf:"api_token"`
	OutputModule string        `koanf:"output_module" validate:"required"`
	StartBlock   uint64        `koanf:"start_block"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"min=1s"`
	MaxAttempts  int           `koanf:"max_attempts" validate:"min=1"`
}

type IPFS struct {
	Gateway     string        `koanf:"gateway" validate:"required,url"`
	Timeout     time.Duration `koanf:"timeout" validate:"min=1s"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	Concurrency int           `koanf:"concurrency" validate:"min=1,max=256"`
}

type Redis struct {
	URL string        `koanf:"url"`
	TTL time.Duration `koanf:"ttl"`
}

type Telemetry struct {
	DiscordWebhookURL string `koanf:"discord_webhook_url" validate:"omitempty,url"`
	Environment       string `koanf:"environment"`
}

type API struct {
	Enabled     bool     `koanf:"enabled"`
	Listen      string   `koanf:"listen" validate:"required_if=Enabled true"`
	JWTSecret   string   `koanf:"jwt_secret"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type Chain struct {
	RootSpaceAddress string `koanf:"root_space_address" validate:"required"`
}

type Retry struct {
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1"`
}

func defaultConfig() *Config {
	return &Config{
		Database: Database{
			MaxOpenConns: 25,
			MaxIdleConns: 10,
			ConnMaxLife:  30 * time.Minute,
			ChunkSize:    500,
		},
		Stream: Stream{
			OutputModule: "geo_out",
			IdleTimeout:  5 * time.Minute,
			MaxAttempts:  5,
		},
		IPFS: IPFS{
			Gateway:     "https://ipfs.network.thegraph.com/api/v0/cat?arg=",
			Timeout:     60 * time.Second,
			BaseDelay:   100 * time.Millisecond,
			Concurrency: 20,
		},
		Redis: Redis{TTL: 24 * time.Hour},
		API: API{
			Enabled: true,
			Listen:  ":8080",
		},
		Log:   Log{Level: "info", Format: "json"},
		Chain: Chain{RootSpaceAddress: "0xEcC4016C71fF38B32f01538207B6F0FdcbCF99f5"},
		Retry: Retry{
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			MaxAttempts: 8,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%s) is below retry.base_delay (%s)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	return nil
}
