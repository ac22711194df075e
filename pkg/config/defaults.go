package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Called after loading from file/environment, before Validate.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults.
//   - Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyHuntDefaults(&cfg.Hunt)
	applyThrottleDefaults(&cfg.Throttle)

	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = 60 * time.Second
	}
	if cfg.KeepaliveInterval == 0 {
		cfg.KeepaliveInterval = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 30 * time.Second
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 3 * time.Second
	}
	if len(cfg.PreferredModes) == 0 {
		cfg.PreferredModes = []string{"crc", "secure"}
	}
	if len(cfg.SupportedAuthMethods) == 0 {
		cfg.SupportedAuthMethods = []string{"cephx", "none"}
	}
	if cfg.SupportedFeatures == 0 {
		cfg.SupportedFeatures = defaultFeatureMask
	}
}

// defaultFeatureMask is the feature bitset this client advertises in the
// banner. Bit 0 stands in for "msgr2 revision 1 framing"; real deployments
// would enumerate the full CEPH_FEATURE_* catalog here.
const defaultFeatureMask uint64 = 1

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Namespace == "" {
		cfg.Namespace = "rados_client"
	}
}

func applyHuntDefaults(cfg *HuntConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 1500 * time.Millisecond
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = 2
	}
	if cfg.IntervalBackoff == 0 {
		cfg.IntervalBackoff = 2.0
	}
	if cfg.MinMultiple == 0 {
		cfg.MinMultiple = 1.0
	}
	if cfg.MaxMultiple == 0 {
		cfg.MaxMultiple = 10.0
	}
}

func applyThrottleDefaults(cfg *ThrottleConfig) {
	if cfg.Ops == 0 {
		cfg.Ops = 1024
	}
	if cfg.Bytes == 0 {
		cfg.Bytes = 100 << 20
	}
}
