// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	api "github.com/cobaltcore-dev/cortex-isolation/api/external/nova"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/aggregates"
	novascheduler "github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Filters run by the evaluate command, in this order.
var evaluatedFilters = []conf.FilterConfig{
	{Name: "filter_aggregate_image_isolation"},
	{Name: "filter_aggregate_image_os_distro_isolation"},
	{Name: "filter_aggregate_image_os_type_isolation"},
}

func newEvaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Run the isolation filters offline against a request and a list of aggregates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "request",
				Usage:    "Path to a nova external scheduler request (json)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "aggregates",
				Usage:    "Path to a list of aggregates with name, hosts and metadata (yaml or json)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log why hosts were filtered out",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging := conf.LoggingConfig{LevelStr: "warn", Format: "text"}
			if cmd.Bool("verbose") {
				logging.LevelStr = "debug"
			}
			slog.SetDefault(logging.NewLogger(os.Stderr))
			return evaluate(ctx, cmd.String("request"), cmd.String("aggregates"), os.Stdout)
		},
	}
}

// Run the isolation filters and write the remaining hosts as a
// nova external scheduler response.
func evaluate(ctx context.Context, requestPath, aggregatesPath string, w io.Writer) error {
	requestBytes, err := os.ReadFile(requestPath)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	var request api.ExternalSchedulerRequest
	if err := json.Unmarshal(requestBytes, &request); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	aggregatesBytes, err := os.ReadFile(aggregatesPath)
	if err != nil {
		return fmt.Errorf("failed to read aggregates: %w", err)
	}
	var aggs []aggregates.Aggregate
	if err := yaml.Unmarshal(aggregatesBytes, &aggs); err != nil {
		return fmt.Errorf("failed to decode aggregates: %w", err)
	}

	pipeline, err := novascheduler.NewPipeline(ctx, conf.NovaSchedulerConfig{Filters: evaluatedFilters}, nil)
	if err != nil {
		return err
	}
	decision, err := pipeline.Run(ctx, plugins.PipelineRequest{
		ExternalSchedulerRequest: request,
		Aggregates:               aggregates.NewRequestCache(aggregates.NewMapResolver(aggs...)),
	})
	if err != nil {
		return err
	}
	hosts := decision.OrderedHosts
	if hosts == nil {
		hosts = []string{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(api.ExternalSchedulerResponse{Hosts: hosts})
}
