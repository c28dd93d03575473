// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/prometheus/client_golang/prometheus"
)

// Wraps a scheduler filter to monitor its execution.
type FilterMonitor[RequestType PipelineRequest] struct {
	// The filter to monitor.
	filter Filter[RequestType]
	// The name of the monitored filter.
	stepName string
	// A timer to measure how long the filter takes to run.
	runTimer prometheus.Observer
	// A metric to observe how many hosts are removed by the filter.
	removedHostsObserver prometheus.Observer
}

// Wrap the given filter with a monitor.
func monitorFilter[RequestType PipelineRequest](
	filter Filter[RequestType],
	stepName string,
	m PipelineMonitor,
) *FilterMonitor[RequestType] {

	var runTimer prometheus.Observer
	if m.stepRunTimer != nil {
		runTimer = m.stepRunTimer.WithLabelValues(m.PipelineName, stepName)
	}
	var removedHostsObserver prometheus.Observer
	if m.stepRemovedHostsObserver != nil {
		removedHostsObserver = m.stepRemovedHostsObserver.WithLabelValues(m.PipelineName, stepName)
	}
	return &FilterMonitor[RequestType]{
		filter:               filter,
		stepName:             stepName,
		runTimer:             runTimer,
		removedHostsObserver: removedHostsObserver,
	}
}

// Initialize the wrapped filter.
func (fm *FilterMonitor[RequestType]) Init(ctx context.Context, opts conf.RawOpts) error {
	return fm.filter.Init(ctx, opts)
}

func (fm *FilterMonitor[RequestType]) Capabilities() FilterCapabilities {
	return fm.filter.Capabilities()
}

// Run the filter and observe its execution.
func (fm *FilterMonitor[RequestType]) Run(ctx context.Context, traceLog *slog.Logger, request RequestType) (*StepResult, error) {
	if fm.runTimer != nil {
		timer := prometheus.NewTimer(fm.runTimer)
		defer timer.ObserveDuration()
	}
	result, err := fm.filter.Run(ctx, traceLog, request)
	if err != nil {
		return nil, err
	}
	nHostsRemoved := len(uniqueHosts(request.GetHosts())) - len(result.Activations)
	if nHostsRemoved > 0 {
		traceLog.Info("scheduler: removed hosts", "name", fm.stepName, "count", nHostsRemoved)
	}
	if fm.removedHostsObserver != nil {
		fm.removedHostsObserver.Observe(float64(nHostsRemoved))
	}
	return result, nil
}

// Deduplicate hosts while keeping their order.
func uniqueHosts(hosts []string) []string {
	seen := make(map[string]struct{}, len(hosts))
	unique := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		unique = append(unique, host)
	}
	return unique
}
