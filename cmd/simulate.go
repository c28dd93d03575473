// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cobaltcore-dev/cortex-isolation/cmd/sim"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/db"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
	"github.com/urfave/cli/v3"
)

func newSimulateCommand() *cli.Command {
	flags := append(configFlags(),
		&cli.StringFlag{
			Name:  "url",
			Usage: "Url of the nova external scheduler endpoint",
			Value: "http://localhost:8080/scheduler/nova/external",
		},
		&cli.StringSliceFlag{
			Name:  "property",
			Usage: "Image property of the simulated vm as key=value, may be repeated",
		},
	)
	return &cli.Command{
		Name:  "simulate",
		Usage: "Send a simulated vm scheduling request for all synced hosts",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			properties, err := parseProperties(cmd.StringSlice("property"))
			if err != nil {
				return err
			}
			registry := monitoring.NewRegistry(config.MonitoringConfig)
			database := db.NewPostgresDB(config.DBConfig, db.NewDBMonitor(registry))
			defer database.Close()
			_, err = sim.SimulateVMScheduling(ctx, database, sim.Options{
				URL:             cmd.String("url"),
				ImageProperties: properties,
			})
			return err
		},
	}
}

// Parse key=value pairs into a map.
func parseProperties(pairs []string) (map[string]string, error) {
	properties := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", pair)
		}
		properties[key] = value
	}
	return properties, nil
}
