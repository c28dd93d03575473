// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/lib"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins"
	"golang.org/x/sync/errgroup"
)

type FilterAggregateIsolationStepOpts struct {
	// How many hosts are evaluated concurrently. 0 evaluates sequentially.
	Parallelism int `json:"parallelism"`
}

func (o FilterAggregateIsolationStepOpts) Validate() error {
	if o.Parallelism < 0 {
		return fmt.Errorf("parallelism must be >= 0, got %d", o.Parallelism)
	}
	return nil
}

// Filter out hosts whose aggregates do not allow the value
// that the requested image declares for the isolation tag.
type FilterAggregateIsolationStep struct {
	lib.BaseFilter[plugins.PipelineRequest, FilterAggregateIsolationStepOpts]
	// Image property and aggregate metadata key checked by this filter.
	Tag string
}

func (s *FilterAggregateIsolationStep) Capabilities() lib.FilterCapabilities {
	return lib.FilterCapabilities{RunOncePerRequest: true, RunOnRebuild: true}
}

// Decisions only depend on the host and the requested value, so calls that
// share a request id but boot different images never share decisions.
func (s *FilterAggregateIsolationStep) DecisionKey(request plugins.PipelineRequest) string {
	if value, ok := request.GetImageProperty(s.Tag).Unpack(); ok && value != "" {
		return s.Tag + "=" + value
	}
	// Absent and empty values both pass every host.
	return s.Tag + " unset"
}

func (s *FilterAggregateIsolationStep) Run(ctx context.Context, traceLog *slog.Logger, request plugins.PipelineRequest) (*lib.StepResult, error) {
	result := s.IncludeAllHostsFromRequest(request)
	requested := request.GetImageProperty(s.Tag)
	if value, ok := requested.Unpack(); !ok || value == "" {
		traceLog.Debug("image does not request an isolation value, skipping", "tag", s.Tag)
		return result, nil
	}
	if request.Aggregates == nil {
		return nil, errors.New("no aggregate resolver given in request")
	}

	// Render hosts by their first hypervisor node in the logs.
	rendered := make(map[string]string, len(request.Hosts))
	for _, host := range request.Hosts {
		if _, ok := rendered[host.ComputeHost]; !ok {
			rendered[host.ComputeHost] = host.String()
		}
	}
	hosts := make([]string, 0, len(result.Activations))
	for host := range result.Activations {
		hosts = append(hosts, host)
	}
	slices.Sort(hosts)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Options.Parallelism))
	for _, host := range hosts {
		g.Go(func() error {
			metadata, err := request.Aggregates.Resolve(gctx, host)
			if err != nil {
				return fmt.Errorf("failed to resolve aggregates of host %s: %w", host, err)
			}
			decision := Evaluate(s.Tag, requested, rendered[host], metadata)
			if decision.Pass {
				return nil
			}
			traceLog.Debug(decision.Reason)
			mu.Lock()
			delete(result.Activations, host)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func init() {
	Index["filter_aggregate_image_isolation"] = func() NovaFilter {
		return &FilterAggregateIsolationStep{Tag: IsolationAggregateTag}
	}
	Index["filter_aggregate_image_os_distro_isolation"] = func() NovaFilter {
		return &FilterAggregateIsolationStep{Tag: OSDistroTag}
	}
	Index["filter_aggregate_image_os_type_isolation"] = func() NovaFilter {
		return &FilterAggregateIsolationStep{Tag: OSTypeTag}
	}
}
