package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/instance"
)

// ServeConfig holds everything serve needs, resolved from flags, env and
// the config file
type ServeConfig struct {
	Instance instance.Config

	InstancesFile string

	// Manifest files are looked up here before asking the process
	ManifestsDir     string
	ManifestCacheTTL time.Duration

	MetricsPort      int
	Tracing          bool
	TraceSampleRatio float64
}

// LoadServeConfig loads configuration from viper
func LoadServeConfig() (*ServeConfig, error) {
	icfg := instance.DefaultConfig()

	if host := viper.GetString("instances.host"); host != "" {
		icfg.Host = host
	}
	if viper.IsSet("instances.base_port") {
		icfg.BasePort = viper.GetInt("instances.base_port")
	}
	if viper.IsSet("instances.stop_grace_period") {
		icfg.StopGracePeriod = viper.GetDuration("instances.stop_grace_period")
	}
	if viper.IsSet("instances.snapshot_interval") {
		icfg.SnapshotInterval = viper.GetDuration("instances.snapshot_interval")
	}
	icfg.WorkDir = viper.GetString("instances.work_dir")

	for _, t := range []string{instance.TypeClient, instance.TypeServer} {
		if path := viper.GetString("executables." + t); path != "" {
			icfg.Executables[t] = path
		}
	}

	cfg := &ServeConfig{
		Instance:         icfg,
		InstancesFile:    viper.GetString("instances.file"),
		ManifestsDir:     viper.GetString("manifests.dir"),
		ManifestCacheTTL: viper.GetDuration("manifests.cache_ttl"),
		MetricsPort:      viper.GetInt("metrics.port"),
		Tracing:          viper.GetBool("tracing.enabled"),
		TraceSampleRatio: viper.GetFloat64("tracing.sample_ratio"),
	}

	if cfg.InstancesFile == "" {
		return nil, fmt.Errorf("instances.file must be set")
	}
	if icfg.BasePort <= 0 || icfg.BasePort > 65535 {
		return nil, fmt.Errorf("instances.base_port %d out of range", icfg.BasePort)
	}
	if icfg.SnapshotInterval <= 0 {
		return nil, fmt.Errorf("instances.snapshot_interval must be positive")
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return nil, fmt.Errorf("metrics.port %d out of range", cfg.MetricsPort)
	}

	return cfg, nil
}
