package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Hunt: HuntConfig{Parallel: 7},
	}
	ApplyDefaults(cfg)
	require.Equal(t, 7, cfg.Hunt.Parallel)
	require.Equal(t, 2.0, cfg.Hunt.IntervalBackoff)
}

func TestApplyDefaults_ThrottleDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	require.Equal(t, 1024, cfg.Throttle.Ops)
	require.Equal(t, int64(100<<20), cfg.Throttle.Bytes)
}

func TestApplyDefaults_FeatureMask(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	require.Equal(t, defaultFeatureMask, cfg.SupportedFeatures)

	cfg2 := &Config{SupportedFeatures: 0xFF}
	ApplyDefaults(cfg2)
	require.Equal(t, uint64(0xFF), cfg2.SupportedFeatures)
}
