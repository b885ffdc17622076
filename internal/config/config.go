// Package config loads the hub configuration from the environment and
// parses decoder connection strings into typed descriptors.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/types"
)

// Config holds the full hub configuration.
//
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Decoder connection strings, one per kind. Comma-separated tokens,
	// each either a bare transport ("udp") or "<scheme>://<host>:<port>".
	ACARSConnections string `env:"ACARS_CONNECTIONS" envDefault:""`
	VDLMConnections  string `env:"VDLM_CONNECTIONS" envDefault:""`
	HFDLConnections  string `env:"HFDL_CONNECTIONS" envDefault:""`
	IMSLConnections  string `env:"IMSL_CONNECTIONS" envDefault:""`
	IRDMConnections  string `env:"IRDM_CONNECTIONS" envDefault:""`

	// Storage
	DatabasePath string `env:"ACARSHUB_DB" envDefault:"/run/acars/messages.db"`
	SaveAll      bool   `env:"DB_SAVEALL" envDefault:"false"`
	MessageDays  int    `env:"DB_SAVE_DAYS" envDefault:"7"`
	AlertDays    int    `env:"DB_ALERT_SAVE_DAYS" envDefault:"120"`

	// ADS-B snapshot poller
	EnableADSB   bool          `env:"ENABLE_ADSB" envDefault:"false"`
	ADSBURL      string        `env:"ADSB_URL" envDefault:"http://tar1090/data/aircraft.json"`
	ADSBInterval time.Duration `env:"ADSB_POLL_INTERVAL" envDefault:"5s"`
	ADSBTimeout  time.Duration `env:"ADSB_POLL_TIMEOUT" envDefault:"4s"`

	// HTTP surface: stats endpoint, prometheus metrics, websocket sink.
	Addr string `env:"WS_ADDR" envDefault:":8080"`

	// Optional NATS sink; empty disables it.
	NATSURL string `env:"NATS_URL" envDefault:""`

	// Time-series retention windows, per resolution.
	Retention1Min          time.Duration `env:"TIMESERIES_RETENTION_1MIN" envDefault:"24h"`
	Retention5Min          time.Duration `env:"TIMESERIES_RETENTION_5MIN" envDefault:"168h"`
	Retention1Hour         time.Duration `env:"TIMESERIES_RETENTION_1HOUR" envDefault:"720h"`
	Retention6Hour         time.Duration `env:"TIMESERIES_RETENTION_6HOUR" envDefault:"4320h"`
	RetentionPruneInterval time.Duration `env:"TIMESERIES_PRUNE_INTERVAL" envDefault:"1h"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from an optional .env file and the
// environment. Priority: ENV vars > .env file > defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("ACARSHUB_DB is required")
	}
	if c.MessageDays < 1 {
		return fmt.Errorf("DB_SAVE_DAYS must be > 0, got %d", c.MessageDays)
	}
	if c.AlertDays < 1 {
		return fmt.Errorf("DB_ALERT_SAVE_DAYS must be > 0, got %d", c.AlertDays)
	}
	if c.EnableADSB && c.ADSBURL == "" {
		return fmt.Errorf("ADSB_URL is required when ENABLE_ADSB is set")
	}
	if c.ADSBInterval <= 0 {
		return fmt.Errorf("ADSB_POLL_INTERVAL must be positive, got %s", c.ADSBInterval)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}
	return nil
}

// Connections returns the parsed descriptors for every decoder kind.
// Kinds with empty connection strings map to empty slices (disabled).
func (c *Config) Connections() map[types.Kind][]types.ConnectionDescriptor {
	return map[types.Kind][]types.ConnectionDescriptor{
		types.KindACARS: ParseConnections(c.ACARSConnections, types.KindACARS),
		types.KindVDLM2: ParseConnections(c.VDLMConnections, types.KindVDLM2),
		types.KindHFDL:  ParseConnections(c.HFDLConnections, types.KindHFDL),
		types.KindIMSL:  ParseConnections(c.IMSLConnections, types.KindIMSL),
		types.KindIRDM:  ParseConnections(c.IRDMConnections, types.KindIRDM),
	}
}

// LogConfig logs the configuration using structured logging.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("acars_connections", c.ACARSConnections).
		Str("vdlm_connections", c.VDLMConnections).
		Str("hfdl_connections", c.HFDLConnections).
		Str("imsl_connections", c.IMSLConnections).
		Str("irdm_connections", c.IRDMConnections).
		Str("database", c.DatabasePath).
		Bool("save_all", c.SaveAll).
		Int("message_save_days", c.MessageDays).
		Int("alert_save_days", c.AlertDays).
		Bool("adsb_enabled", c.EnableADSB).
		Str("adsb_url", c.ADSBURL).
		Dur("adsb_interval", c.ADSBInterval).
		Str("addr", c.Addr).
		Str("nats_url", c.NATSURL).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("Hub configuration loaded")
}
