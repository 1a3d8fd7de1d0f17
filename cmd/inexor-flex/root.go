package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "inexor-flex",
	Short: "Inexor game instance host",
	Long: `inexor-flex supervises Inexor game clients and servers.

Each instance is a child process exposing its state over the TreeSync gRPC
service. The host mirrors that state into a shared tree, persists the list
of instances and serves Prometheus metrics.`,
	SilenceUsage: true,
}

// envKeyReplacer maps config key instances.base_port to
// INEXOR_FLEX_INSTANCES_BASE_PORT
var envKeyReplacer = strings.NewReplacer(".", "_")

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ~/.inexor-flex.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Shorthand for --log-level debug")
	rootCmd.PersistentFlags().String("instances-file", defaultInstancesFile(), "File the instance list is persisted to")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("instances.file", rootCmd.PersistentFlags().Lookup("instances-file"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(instancesCmd)
}

func initConfig() {
	if cfgFile := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".inexor-flex")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("INEXOR_FLEX")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// Missing config file is fine
	viper.ReadInConfig()
}

func defaultInstancesFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "instances.toml"
	}
	return filepath.Join(dir, "inexor-flex", "instances.toml")
}

// newLogger builds the process-wide logger from log.level, log.format and
// log.debug.
func newLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	if viper.GetBool("log.debug") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format := strings.ToLower(viper.GetString("log.format")); format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
