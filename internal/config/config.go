// Package config loads kycform settings from defaults, an optional YAML
// file, a .env file and KYCFORM_* environment variables, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gabrielmiguelok/kycform/internal/application"
	"github.com/gabrielmiguelok/kycform/pkg/state"
	"github.com/gabrielmiguelok/kycform/pkg/transport"
)

// EnvPrefix prefixes every environment override, e.g. KYCFORM_SERVER_ADDR.
const EnvPrefix = "KYCFORM"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Submission SubmissionConfig `mapstructure:"submission"`
	State      StateConfig      `mapstructure:"state"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Transport  TransportConfig  `mapstructure:"transport"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxSessions       int           `mapstructure:"max_sessions"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`

	// MaxConnectionsPerIP caps live sessions per client; zero disables it.
	MaxConnectionsPerIP int `mapstructure:"max_connections_per_ip"`
	// EventRate is the sustained events per second one session may send.
	EventRate  float64 `mapstructure:"event_rate"`
	EventBurst int     `mapstructure:"event_burst"`

	// InsecureDevMode disables the WebSocket origin check.
	InsecureDevMode bool `mapstructure:"insecure_dev_mode"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SubmissionConfig struct {
	Delay   time.Duration `mapstructure:"delay"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StateConfig struct {
	// Backend is "memory" or "redis".
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type TransportConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

func setDefaults(v *viper.Viper) {
	tc := transport.DefaultTransportConfig()
	rc := state.DefaultRedisConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_sessions", 10000)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.insecure_dev_mode", false)
	v.SetDefault("server.max_connections_per_ip", 20)
	v.SetDefault("server.event_rate", 20.0)
	v.SetDefault("server.event_burst", 40)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("submission.delay", application.DefaultSubmitDelay)
	v.SetDefault("submission.timeout", 30*time.Second)

	v.SetDefault("state.backend", "memory")
	v.SetDefault("state.ttl", 30*time.Minute)
	v.SetDefault("state.redis.url", rc.URL)
	v.SetDefault("state.redis.pool_size", rc.PoolSize)
	v.SetDefault("state.redis.dial_timeout", rc.DialTimeout)
	v.SetDefault("state.redis.read_timeout", rc.ReadTimeout)
	v.SetDefault("state.redis.write_timeout", rc.WriteTimeout)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "kycform")

	v.SetDefault("transport.read_timeout", tc.ReadTimeout)
	v.SetDefault("transport.write_timeout", tc.WriteTimeout)
	v.SetDefault("transport.ping_interval", tc.PingInterval)
	v.SetDefault("transport.max_message_size", tc.MaxMessageSize)
}

// Load reads configuration. An empty path searches for kycform.yaml in the
// working directory and ./configs; a missing file is not an error there,
// but an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("kycform")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from path without overriding the process
// environment. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Server.ReadHeaderTimeout > 0, "server.read_header_timeout must be positive")
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")
	check(c.Server.MaxSessions >= 0, "server.max_sessions must not be negative")
	check(c.Server.MaxConnectionsPerIP >= 0, "server.max_connections_per_ip must not be negative")
	check(c.Server.EventRate >= 0, "server.event_rate must not be negative")
	check(c.Server.EventRate == 0 || c.Server.EventBurst >= 1, "server.event_burst must be at least 1")

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	check(c.Log.Format == "json" || c.Log.Format == "console", "log.format %q is not json or console", c.Log.Format)

	check(c.Submission.Delay >= 0, "submission.delay must not be negative")
	check(c.Submission.Timeout > c.Submission.Delay, "submission.timeout must exceed submission.delay")

	check(c.State.TTL > 0, "state.ttl must be positive")
	switch c.State.Backend {
	case "memory":
	case "redis":
		check(c.State.Redis.URL != "", "state.redis.url is required for the redis backend")
	default:
		errs = append(errs, fmt.Errorf("state.backend %q is not memory or redis", c.State.Backend))
	}

	check(c.Transport.ReadTimeout > c.Transport.PingInterval, "transport.read_timeout must exceed transport.ping_interval")
	check(c.Transport.WriteTimeout > 0, "transport.write_timeout must be positive")
	check(c.Transport.MaxMessageSize > 0, "transport.max_message_size must be positive")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// TransportSettings converts the transport section.
func (c *Config) TransportSettings() *transport.TransportConfig {
	tc := transport.DefaultTransportConfig()
	tc.ReadTimeout = c.Transport.ReadTimeout
	tc.WriteTimeout = c.Transport.WriteTimeout
	tc.PingInterval = c.Transport.PingInterval
	tc.MaxMessageSize = c.Transport.MaxMessageSize
	return tc
}

// WebSocketSettings converts the origin policy.
func (c *Config) WebSocketSettings() *transport.WebSocketConfig {
	return &transport.WebSocketConfig{
		AllowedOrigins:  c.Server.AllowedOrigins,
		InsecureDevMode: c.Server.InsecureDevMode,
	}
}

// RedisSettings converts the redis section.
func (c *Config) RedisSettings() state.RedisConfig {
	r := c.State.Redis
	return state.RedisConfig{
		URL:          r.URL,
		PoolSize:     r.PoolSize,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	}
}
