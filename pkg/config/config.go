// Package config defines the configuration surface of the RADOS client
// core (spec §6) and loads it from file, environment and CLI flags via
// viper, validating the result with go-playground/validator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface exposed by the core library,
// matching the options table in spec §6 one-for-one.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus metrics registrar.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// EntityName is the principal id used to authenticate, e.g. "client.admin".
	EntityName string `mapstructure:"entity_name" validate:"required" yaml:"entity_name"`

	// KeyringPath locates the shared-secret keyring on disk.
	KeyringPath string `mapstructure:"keyring_path" validate:"required" yaml:"keyring_path"`

	// MonAddrs is the bootstrap monitor address list, "host:port" entries.
	MonAddrs []string `mapstructure:"mon_addrs" validate:"required,min=1,dive,required" yaml:"mon_addrs"`

	// ConnectTimeout bounds a single TCP connect attempt.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"required,gt=0" yaml:"connect_timeout"`

	// CommandTimeout bounds a monitor command, pool op, or map version request.
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"required,gt=0" yaml:"command_timeout"`

	// OperationTimeout is the overall wall-clock budget for an object
	// operation, applied across redirects.
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"required,gt=0" yaml:"operation_timeout"`

	// Hunt controls monitor hunting policy (spec §4.4).
	Hunt HuntConfig `mapstructure:"hunt" yaml:"hunt"`

	// KeepaliveInterval is the configured cadence of KEEPALIVE2 frames;
	// ApplyDefaults replaces zero with 10s. msgr.Connection does not read
	// this field and uses its own fixed 15s interval.
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval" yaml:"keepalive_interval"`

	// KeepaliveTimeout is how long to wait for a KEEPALIVE2_ACK before
	// declaring the connection unhealthy. msgr.Connection does not read
	// this field and uses its own fixed 30s timeout.
	KeepaliveTimeout time.Duration `mapstructure:"keepalive_timeout" validate:"required,gt=0" yaml:"keepalive_timeout"`

	// TickInterval is the cadence of the MonitorClient maintenance task,
	// which runs the ticket renewal sweep. Keepalive timeouts are not
	// checked there; each msgr.Connection checks its own.
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"required,gt=0" yaml:"tick_interval"`

	// Throttle controls ObjectClient admission control.
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`

	// SupportedFeatures / RequiredFeatures are the banner feature masks.
	SupportedFeatures uint64 `mapstructure:"supported_features" yaml:"supported_features"`
	RequiredFeatures  uint64 `mapstructure:"required_features" yaml:"required_features"`

	// PreferredModes is the ordered list of connection modes: "crc", "secure".
	PreferredModes []string `mapstructure:"preferred_modes" validate:"omitempty,dive,oneof=crc secure" yaml:"preferred_modes"`

	// SupportedAuthMethods is the ordered list of auth methods: "none", "cephx".
	SupportedAuthMethods []string `mapstructure:"supported_auth_methods" validate:"omitempty,dive,oneof=none cephx" yaml:"supported_auth_methods"`

	// ClientInc is the client incarnation, part of request ids (spec §3).
	ClientInc uint64 `mapstructure:"client_inc" yaml:"client_inc"`
}

// HuntConfig controls MonitorClient's monitor-hunting policy (spec §4.4, §6).
type HuntConfig struct {
	// Interval is the base delay between hunt rounds.
	Interval time.Duration `mapstructure:"interval" validate:"required,gt=0" yaml:"interval"`

	// Parallel is how many monitors are dialed concurrently per round.
	Parallel int `mapstructure:"parallel" validate:"required,gt=0" yaml:"parallel"`

	// IntervalBackoff is the multiplier applied to Interval after a failed round.
	IntervalBackoff float64 `mapstructure:"interval_backoff" validate:"required,gt=1" yaml:"interval_backoff"`

	// MinMultiple / MaxMultiple clamp the accumulated backoff multiplier.
	MinMultiple float64 `mapstructure:"min_multiple" validate:"required,gt=0" yaml:"min_multiple"`
	MaxMultiple float64 `mapstructure:"max_multiple" validate:"required,gtfield=MinMultiple" yaml:"max_multiple"`
}

// ThrottleConfig bounds concurrent ObjectClient admission (spec §5).
type ThrottleConfig struct {
	// Ops is the maximum number of in-flight operations.
	Ops int `mapstructure:"ops" validate:"required,gt=0" yaml:"ops"`

	// Bytes is the maximum estimated in-flight byte budget.
	Bytes int64 `mapstructure:"bytes" validate:"required,gt=0" yaml:"bytes"`
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

// MetricsConfig configures the Prometheus metrics registrar.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is registered.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Namespace prefixes every collector's fully qualified name.
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// Validate runs struct-tag validation over the config.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// Load reads configuration from the given path (YAML or TOML, inferred
// by viper from extension), overlays `RADOS_`-prefixed environment
// variables, applies defaults for anything left unset, and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("rados")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes a commented sample config file to path, the way
// `radosclient init` bootstraps a new deployment's config. force
// controls whether an existing file is overwritten.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	cfg := Config{}
	ApplyDefaults(&cfg)
	cfg.EntityName = "client.admin"
	cfg.KeyringPath = "/etc/ceph/ceph.client.admin.keyring"
	cfg.MonAddrs = []string{"127.0.0.1:3300"}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal sample config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
