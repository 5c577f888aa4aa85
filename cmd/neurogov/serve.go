package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/neurogov/internal/admin"
	"github.com/polisai/neurogov/internal/governance"
	"github.com/polisai/neurogov/pkg/config"
	"github.com/polisai/neurogov/pkg/domain"
	"github.com/polisai/neurogov/pkg/dreamnet"
	"github.com/polisai/neurogov/pkg/ecoshard"
	"github.com/polisai/neurogov/pkg/logging"
	"github.com/polisai/neurogov/pkg/policy"
	"github.com/polisai/neurogov/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// components is the live governance state driven by the admin server.
type components struct {
	engine   *policy.ConsensusEngine
	kernel   *governance.SafetyKernel
	dreamnet *dreamnet.Index

	// bounds holds the configured bounds last pushed into the kernel.
	bounds map[domain.Axis]governance.Bounds
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the governance admin server",
		Long: `Serve loads the configuration, ingests the telemetry shard into the safety
kernel, and exposes the consensus engine and kernel over HTTP. Edits to the
configuration file are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	cmd.Flags().String("listen", "", "Address to listen on (overrides admin.address)")
	return cmd
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	listenAddr, err := cmd.Flags().GetString("listen")
	if err != nil {
		return fmt.Errorf("failed to get listen flag: %w", err)
	}

	flagLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	bootstrap := logging.NewLogger(logging.Config{Level: flagLevel, Pretty: true})

	var loader *config.Loader
	var cfg *config.Config
	if configPath != "" {
		loader, err = config.NewLoader(configPath, bootstrap)
		if err != nil {
			return err
		}
		defer func() { _ = loader.Close() }()
		cfg, err = loader.Load()
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		bootstrap.Error("Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	level := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") {
		level = flagLevel
	}
	logger := logging.NewLogger(logging.Config{Level: level, Pretty: cfg.Logging.Pretty})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error("Failed to initialise tracing", "error", err)
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("Failed to flush traces", "error", err)
		}
	}()

	c := newComponents(cfg, logger)
	if err := c.apply(cfg); err != nil {
		return err
	}
	ingestShard(ctx, cfg.Shard.Path, c.kernel, logger)

	metrics := admin.NewMetrics()
	if err := metrics.RegisterKernel(c.kernel); err != nil {
		return fmt.Errorf("register kernel metrics: %w", err)
	}
	srv := admin.NewServer(admin.Options{
		Engine:   c.engine,
		Kernel:   c.kernel,
		Dreamnet: c.dreamnet,
		Metrics:  metrics,
		Logger:   logger,
	})

	if loader != nil {
		err := loader.Watch(func(next *config.Config) {
			if err := c.apply(next); err != nil {
				logger.Error("Failed to apply configuration reload", "error", err)
				metrics.RecordConfigReload("error")
				return
			}
			logger.Info("Configuration reloaded", "path", loader.Path())
			metrics.RecordConfigReload("success")
		})
		if err != nil {
			logger.Warn("Configuration hot reload disabled", "error", err)
		}
	}

	addr := cfg.Admin.Address
	if listenAddr != "" {
		addr = listenAddr
	}
	return serveHTTP(ctx, addr, srv.Handler(), logger)
}

func newComponents(cfg *config.Config, logger *slog.Logger) *components {
	return &components{
		engine:   policy.NewConsensusEngine(policy.WithLogger(logger)),
		kernel:   governance.NewSafetyKernel(governance.WithKernelLogger(logger)),
		dreamnet: dreamnet.NewIndex(cfg.Dreamnet.CarbonLimit),
		bounds:   make(map[domain.Axis]governance.Bounds),
	}
}

// apply pushes weights, threshold, bounds, and the carbon limit from cfg
// into the running components. Axis bounds are only pushed when their
// configured value differs from the last one applied, so a reload leaves
// bounds set by approved decisions in place.
func (c *components) apply(cfg *config.Config) error {
	var errs []error
	for role, weight := range cfg.Consensus.RoleWeights() {
		errs = append(errs, c.engine.SetStakeholderWeight(role, weight))
	}
	errs = append(errs, c.engine.SetConsensusThreshold(cfg.Consensus.Threshold))
	for axis, b := range cfg.Safety.AxisBounds() {
		if prev, ok := c.bounds[axis]; ok && prev == b {
			continue
		}
		if err := c.kernel.SetBounds(axis, b.Min, b.Max); err != nil {
			errs = append(errs, err)
			continue
		}
		c.bounds[axis] = b
	}
	c.dreamnet.SetCarbonLimit(cfg.Dreamnet.CarbonLimit)
	return errors.Join(errs...)
}

// ingestShard feeds the shard into the kernel. A missing shard is not fatal
// for the server.
func ingestShard(ctx context.Context, path string, kernel *governance.SafetyKernel, logger *slog.Logger) {
	if path == "" {
		return
	}
	result, err := ecoshard.LoadFile(ctx, path, logger)
	if err != nil {
		logger.Warn("Telemetry shard not ingested", "path", path, "error", err)
		return
	}
	applied := kernel.IngestTelemetry(result.Nodes)
	logger.Info("Telemetry shard ingested",
		"path", path, "records", len(result.Nodes), "skipped", result.Skipped, "applied", applied)
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("Failed to bind listener", "addr", addr, "error", err)
		return err
	}

	// Log the actual resolved address (useful when addr is :0)
	logger.Info("Admin server listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
		return err
	}
	logger.Info("Admin server stopped")
	return nil
}
