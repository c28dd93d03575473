// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cobaltcore-dev/cortex-isolation/internal/knowledge/datasources/openstack/nova"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/aggregates"
	novascheduler "github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/db"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/mqtt"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/httpext"
	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"
)

func newSchedulerNovaCommand() *cli.Command {
	return &cli.Command{
		Name:  "scheduler-nova",
		Usage: "Serve nova scheduling requests with a http API",
		Flags: configFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			bininfo.SetTaskName(cmd.Name)
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// Set runtime concurrency to match CPU limit imposed by Kubernetes
			undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(slog.Debug))
			if err != nil {
				return err
			}
			defer undoMaxprocs()

			registry := monitoring.NewRegistry(config.MonitoringConfig)
			database := db.NewPostgresDB(config.DBConfig, db.NewDBMonitor(registry))
			defer database.Close()
			// The syncer may not have run yet.
			if err := database.CreateTable(database.AddTable(nova.Aggregate{})); err != nil {
				return fmt.Errorf("failed to create aggregates table: %w", err)
			}

			pipeline, err := novascheduler.NewPipeline(ctx, config.NovaScheduler, registry)
			if err != nil {
				return fmt.Errorf("failed to create nova pipeline: %w", err)
			}
			if config.MQTTConfig.URL != "" {
				client := mqtt.NewClient(config.MQTTConfig, mqtt.NewMQTTMonitor(registry))
				if err := client.Connect(); err != nil {
					return err
				}
				defer client.Disconnect()
				pipeline = novascheduler.PublishDecisions(ctx, pipeline, client)
			}
			go runMonitoringServer(ctx, registry, config.MonitoringConfig)

			mux := http.NewServeMux()
			resolver := aggregates.DBResolver{DB: database}
			novascheduler.NewAPI(config.APIConfig, pipeline, resolver, registry).Init(mux)

			// Run the api server after all handlers have been registered to the mux.
			slog.Info("api listening", "port", config.APIConfig.Port)
			addr := fmt.Sprintf(":%d", config.APIConfig.Port)
			return httpext.ListenAndServeContext(ctx, addr, mux)
		},
	}
}
