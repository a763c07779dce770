// Package config loads ntcore-client configuration from file, environment,
// and defaults, adapted from the teacher's viper/mapstructure-based loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jpokornyiii/ntcore-client/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full set of options governing one client session.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NTCORE_*)
//  2. Configuration file
//  3. Default values
type Config struct {
	// ServerAddress is the host the client dials. Required.
	ServerAddress string `mapstructure:"server_address" validate:"required" yaml:"server_address"`

	// ServerPort is the TCP port the client dials. Default 1735.
	ServerPort int `mapstructure:"server_port" validate:"required,min=1,max=65535" yaml:"server_port"`

	// ClientIdent is sent in CLIENT_HELLO; default empty string.
	ClientIdent string `mapstructure:"client_ident" yaml:"client_ident"`

	// KeepAliveInterval is how often a KEEP_ALIVE is sent when otherwise idle.
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval" validate:"required,gt=0" yaml:"keep_alive_interval"`

	// RPCTimeout is how long an outstanding RPC call waits before TimedOut.
	RPCTimeout time.Duration `mapstructure:"rpc_timeout" validate:"required,gt=0" yaml:"rpc_timeout"`

	// Reconnect controls whether an unexpected transport drop is retried.
	Reconnect bool `mapstructure:"reconnect" yaml:"reconnect"`

	// ReconnectBackoff parameterizes the retry delay schedule.
	ReconnectBackoff BackoffConfig `mapstructure:"reconnect_backoff" yaml:"reconnect_backoff"`

	// NonBlockingSend selects Backpressure-error mode over blocking when the
	// outbound queue is full (spec §5).
	NonBlockingSend bool `mapstructure:"non_blocking_send" yaml:"non_blocking_send"`

	// OutboundQueueSize bounds the outbound message queue.
	OutboundQueueSize int `mapstructure:"outbound_queue_size" validate:"required,gt=0" yaml:"outbound_queue_size"`

	// MaxRPCPayloadSize bounds the total encoded size of one RPC call's
	// parameter values; CallRPC rejects larger requests before sending
	// rather than let a malformed or runaway caller wedge the outbound
	// queue. Accepts human-readable sizes ("64KiB", "1MB") or a plain
	// byte count.
	MaxRPCPayloadSize bytesize.ByteSize `mapstructure:"max_rpc_payload_size" validate:"required,gt=0" yaml:"max_rpc_payload_size"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls Prometheus instrumentation and its /metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// BackoffConfig parameterizes reconnect backoff (spec §4.6).
type BackoffConfig struct {
	Initial time.Duration `mapstructure:"initial" validate:"required,gt=0" yaml:"initial"`
	Cap     time.Duration `mapstructure:"cap" validate:"required,gt=0" yaml:"cap"`
	Factor  float64       `mapstructure:"factor" validate:"required,gt=1" yaml:"factor"`
	Jitter  float64       `mapstructure:"jitter" validate:"gte=0,lte=1" yaml:"jitter"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served at /metrics.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port /metrics is served on when Enabled. Default 9191.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Default returns the configuration defaults named in spec §6, with no
// config file or environment overrides applied.
func Default() *Config {
	return &Config{
		ServerAddress:     "localhost",
		ServerPort:        1735,
		ClientIdent:       "",
		KeepAliveInterval: time.Second,
		RPCTimeout:        5 * time.Second,
		Reconnect:         true,
		ReconnectBackoff: BackoffConfig{
			Initial: 100 * time.Millisecond,
			Cap:     5 * time.Second,
			Factor:  2,
			Jitter:  0.25,
		},
		NonBlockingSend:   false,
		OutboundQueueSize: 256,
		MaxRPCPayloadSize: 64 * bytesize.KiB,
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9191,
		},
	}
}

// Load reads configuration from path (YAML), overlaying NTCORE_ environment
// variables, applying defaults for anything unset, and validating the
// result. An empty path with no default config file present yields
// Default() unmodified; a non-empty path that does not exist is an error.
// Environment variables override only keys that the config file sets, and
// are not consulted when no config file is found.
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	v := viper.New()
	setupViper(v, path)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return Default(), nil
	}

	cfg := Default()
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix("NTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return
	}

	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), byteSizeDecodeHook())
}

// byteSizeDecodeHook converts human-readable size strings ("64KiB", "1MB")
// and raw numbers to bytesize.ByteSize, matching the teacher's hook.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts human-readable duration strings ("100ms",
// "5s") and raw numbers to time.Duration, matching the teacher's hook.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ntcore-client")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ntcore-client")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
