// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/must"
	"github.com/urfave/cli/v3"
)

// Flags to locate the service configuration.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to the config file",
			Value: "/etc/config/conf.yaml",
		},
		&cli.StringFlag{
			Name:  "secrets",
			Usage: "Path to the secrets file, overriding values of the config file",
			Value: "/etc/secrets/secrets.yaml",
		},
	}
}

// Load and validate the configuration, then set up the default logger.
func loadConfig(cmd *cli.Command) (conf.Config, error) {
	config, err := conf.GetConfig[conf.Config](cmd.String("config"), cmd.String("secrets"))
	if err != nil {
		return conf.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return conf.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	config.LoggingConfig.SetDefaultLogger()
	return config, nil
}

// Run the prometheus metrics server for monitoring.
func runMonitoringServer(ctx context.Context, registry *monitoring.Registry, config conf.MonitoringConfig) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	slog.Info("metrics listening", "port", config.Port)
	addr := fmt.Sprintf(":%d", config.Port)
	must.Succeed(httpext.ListenAndServeContext(ctx, addr, mux))
}

func main() {
	// If called with `--version`, report version and exit (the Dockerfile
	// uses this to check if the binary was built correctly)
	bininfo.HandleVersionArgument()

	// Override User-Agent header for all requests made by this process
	wrap := httpext.WrapTransport(&http.DefaultTransport)
	wrap.SetOverrideUserAgent(bininfo.Component(), bininfo.VersionOr("rolling"))

	// This context will gracefully shutdown when the process receives the
	// standard shutdown signal SIGINT, with a 10-second delay to allow
	// Kubernetes to stop sending new requests well before the process starts
	// to shut down.
	ctx := httpext.ContextWithSIGINT(context.Background(), 10*time.Second)

	cmd := &cli.Command{
		Name:  "cortex-isolation",
		Usage: "Aggregate image isolation for the nova external scheduler",
		Commands: []*cli.Command{
			newSchedulerNovaCommand(),
			newSyncNovaCommand(),
			newEvaluateCommand(),
			newSimulateCommand(),
		},
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
