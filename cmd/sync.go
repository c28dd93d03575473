// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/cobaltcore-dev/cortex-isolation/internal/knowledge/datasources"
	"github.com/cobaltcore-dev/cortex-isolation/internal/knowledge/datasources/openstack/nova"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/db"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/keystone"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/must"
	"github.com/urfave/cli/v3"
)

func newSyncNovaCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync-nova",
		Usage: "Periodically sync the nova aggregates into the database",
		Flags: configFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			bininfo.SetTaskName(cmd.Name)
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			registry := monitoring.NewRegistry(config.MonitoringConfig)
			database := db.NewPostgresDB(config.DBConfig, db.NewDBMonitor(registry))
			defer database.Close()

			monitor := datasources.NewSyncMonitor(registry)
			keystoneAPI := keystone.NewClient(config.KeystoneConfig)
			pipeline := datasources.Pipeline{
				Syncers: []datasources.Datasource{
					&nova.NovaSyncer{DB: database, Mon: monitor, API: nova.NewNovaAPI(monitor, keystoneAPI)},
				},
				Interval: time.Duration(config.NovaSync.IntervalSeconds) * time.Second,
			}
			must.Succeed(pipeline.Init(ctx))

			go runMonitoringServer(ctx, registry, config.MonitoringConfig)
			pipeline.SyncPeriodic(ctx)
			return nil
		},
	}
}
