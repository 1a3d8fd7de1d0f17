package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/connector"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/instance"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/procmgr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/tree"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the instance host",
	Long: `Run the instance host.

Loads the persisted instance list, starts every instance marked autostart,
saves the list periodically and serves Prometheus metrics on /metrics.

Example:
  inexor-flex serve
  inexor-flex serve --client-binary ./inexor-core --metrics-port 9191
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Host game processes serve TreeSync on")
	serveCmd.Flags().Int("base-port", 31416, "First port handed to instances")
	serveCmd.Flags().Duration("stop-grace-period", 10*time.Second, "Time between SIGTERM and SIGKILL when stopping")
	serveCmd.Flags().Duration("snapshot-interval", time.Minute, "How often the instance list is saved")
	serveCmd.Flags().String("client-binary", "", "Executable started for client instances")
	serveCmd.Flags().String("server-binary", "", "Executable started for server instances")
	serveCmd.Flags().String("manifests-dir", "", "Directory with <type>.yaml field manifests")
	serveCmd.Flags().Duration("manifest-cache-ttl", 5*time.Minute, "How long manifest files are cached")
	serveCmd.Flags().IntP("metrics-port", "m", 9090, "Prometheus metrics HTTP port (0 disables)")
	serveCmd.Flags().Bool("tracing", false, "Export spans to stderr")
	serveCmd.Flags().Float64("trace-sample-ratio", 1, "Fraction of traces exported")

	viper.BindPFlag("instances.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("instances.base_port", serveCmd.Flags().Lookup("base-port"))
	viper.BindPFlag("instances.stop_grace_period", serveCmd.Flags().Lookup("stop-grace-period"))
	viper.BindPFlag("instances.snapshot_interval", serveCmd.Flags().Lookup("snapshot-interval"))
	viper.BindPFlag("executables.client", serveCmd.Flags().Lookup("client-binary"))
	viper.BindPFlag("executables.server", serveCmd.Flags().Lookup("server-binary"))
	viper.BindPFlag("manifests.dir", serveCmd.Flags().Lookup("manifests-dir"))
	viper.BindPFlag("manifests.cache_ttl", serveCmd.Flags().Lookup("manifest-cache-ttl"))
	viper.BindPFlag("metrics.port", serveCmd.Flags().Lookup("metrics-port"))
	viper.BindPFlag("tracing.enabled", serveCmd.Flags().Lookup("tracing"))
	viper.BindPFlag("tracing.sample_ratio", serveCmd.Flags().Lookup("trace-sample-ratio"))
}

// host bundles what serve builds so it can be torn down in order
type host struct {
	manager *instance.Manager
	gather  prometheus.Gatherers
	tracing *sdktrace.TracerProvider
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := LoadServeConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	h, err := newHost(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("loading instances", "file", cfg.InstancesFile)
	if err := h.manager.LoadInstances(ctx); err != nil {
		// Broken entries are skipped, the rest keep running
		logger.Warn("some instances failed to load", "error", err)
	}

	snapshotsDone := make(chan error, 1)
	go func() {
		snapshotsDone <- h.manager.RunSnapshots(ctx)
	}()

	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		metricsServer = &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(cfg.MetricsPort)),
			Handler:           h.handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting metrics server", "port", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Instance.StopGracePeriod+5*time.Second)
	defer shutdownCancel()

	if err := h.manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("instance shutdown incomplete", "error", err)
	}

	// Stopping the snapshot loop writes the final instance list
	cancel()
	if err := <-snapshotsDone; err != nil {
		logger.Error("final snapshot failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	if h.tracing != nil {
		if err := h.tracing.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// newHost wires the tree, metrics, tracing and manager together
func newHost(cfg *ServeConfig, logger *slog.Logger) (*host, error) {
	h := &host{}

	if cfg.Tracing {
		tp, err := newTracerProvider(context.Background(), os.Stderr, cfg.TraceSampleRatio)
		if err != nil {
			return nil, err
		}
		h.tracing = tp
	}

	procMetrics := procmgr.NewPrometheusMetricsCollector("inexor_process")
	connMetrics := connector.NewPrometheusMetricsCollector("inexor_connector")
	instMetrics := instance.NewPrometheusMetricsCollector("inexor_instance")
	h.gather = prometheus.Gatherers{
		prometheus.DefaultGatherer,
		procMetrics.Registry(),
		connMetrics.Registry(),
		instMetrics.Registry(),
	}

	procs := procmgr.NewProcessManager(
		procmgr.WithLogger(logger),
		procmgr.WithGracePeriod(cfg.Instance.StopGracePeriod),
		procmgr.WithMetricsCollector(procMetrics),
		procmgr.WithOutputSink(procmgr.LogSink{Logger: logger}),
	)

	var source connector.ManifestSource = connector.NewRemoteManifestSource()
	if cfg.ManifestsDir != "" {
		source = connector.ChainManifestSource{
			connector.NewFileManifestSource(cfg.ManifestsDir, cfg.ManifestCacheTTL),
			source,
		}
	}

	manager, err := instance.New(tree.NewRoot(), cfg.Instance,
		instance.WithLogger(logger),
		instance.WithStore(instance.NewTOMLStore(cfg.InstancesFile)),
		instance.WithMetrics(instMetrics),
		instance.WithProcessManager(procs),
		instance.WithConnectorOptions(
			connector.WithManifestSource(source),
			connector.WithMetrics(connMetrics),
		),
	)
	if err != nil {
		return nil, err
	}
	h.manager = manager

	return h, nil
}

type healthResponse struct {
	Status    string                    `json:"status"`
	Instances map[string]instance.State `json:"instances"`
}

func (h *host) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(h.gather, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Instances: map[string]instance.State{}}
		for _, id := range h.manager.IDs() {
			node, err := h.manager.Get(id)
			if err != nil {
				continue
			}
			resp.Instances[id] = h.manager.State(node)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}
