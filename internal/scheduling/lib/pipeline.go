// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/prometheus/client_golang/prometheus"
)

type PipelineDecision struct {
	// The original weights provided as input to the pipeline.
	RawInWeights map[string]float64
	// The normalized input weights after applying the normalization function.
	NormalizedInWeights map[string]float64
	// The hosts in order of preference, with the most preferred host first.
	OrderedHosts []string
}

type Pipeline[RequestType PipelineRequest] interface {
	// Run the scheduling pipeline with the given request.
	Run(ctx context.Context, request RequestType) (PipelineDecision, error)
}

// Result of the pipeline initialization.
type PipelineInitResult[RequestType PipelineRequest] struct {
	// The pipeline, containing all filters that could be initialized.
	Pipeline Pipeline[RequestType]
	// Errors of filters that could not be added, by filter name.
	FilterErrors map[string]error
}

// Pipeline of scheduler filters.
type filterPipeline[RequestType PipelineRequest] struct {
	// The order in which filters are applied, by their step name.
	filtersOrder []string
	// The filters by their name.
	filters map[string]Filter[RequestType]
	// Monitor to observe the pipeline.
	monitor PipelineMonitor
}

// Create a new pipeline with the filters contained in the configuration.
// Filters that are unknown or fail to initialize are left out and reported.
func InitNewFilterPipeline[RequestType PipelineRequest](
	ctx context.Context,
	name string,
	supportedFilters map[string]func() Filter[RequestType],
	confedFilters []conf.FilterConfig,
	decisionCache *DecisionCache,
	monitor PipelineMonitor,
) PipelineInitResult[RequestType] {

	pipelineMonitor := monitor.SubPipeline(name)

	filtersByName := make(map[string]Filter[RequestType], len(confedFilters))
	filtersOrder := []string{}
	filterErrors := make(map[string]error)
	for _, filterConfig := range confedFilters {
		slog.Info("scheduler: configuring filter", "name", filterConfig.Name)
		makeFilter, ok := supportedFilters[filterConfig.Name]
		if !ok {
			slog.Error("scheduler: unsupported filter", "name", filterConfig.Name,
				"supported", slices.Sorted(maps.Keys(supportedFilters)))
			filterErrors[filterConfig.Name] = errors.New("unsupported filter name: " + filterConfig.Name)
			continue
		}
		var filter Filter[RequestType] = makeFilter()
		// The wrappers below hide the keyer, so look it up first.
		keyer, keyed := filter.(DecisionKeyer[RequestType])
		filter = validateFilter(filter)
		filter = monitorFilter(filter, filterConfig.Name, pipelineMonitor)
		if filter.Capabilities().RunOncePerRequest && decisionCache != nil {
			if keyed {
				filter = cacheFilterDecisions(filter, keyer, filterConfig.Name, decisionCache, pipelineMonitor)
			} else {
				slog.Warn("scheduler: filter runs once per request but has no decision key, not caching", "name", filterConfig.Name)
			}
		}
		if err := filter.Init(ctx, filterConfig.Options); err != nil {
			slog.Error("scheduler: failed to initialize filter", "name", filterConfig.Name, "error", err)
			filterErrors[filterConfig.Name] = fmt.Errorf("failed to initialize filter: %w", err)
			continue
		}
		filtersByName[filterConfig.Name] = filter
		filtersOrder = append(filtersOrder, filterConfig.Name)
		slog.Info("scheduler: added filter", "name", filterConfig.Name)
	}

	return PipelineInitResult[RequestType]{
		FilterErrors: filterErrors,
		Pipeline: &filterPipeline[RequestType]{
			filtersOrder: filtersOrder,
			filters:      filtersByName,
			monitor:      pipelineMonitor,
		},
	}
}

// Execute filters in the configured order. During this process, the
// request is narrowed down to only include the remaining hosts.
func (p *filterPipeline[RequestType]) runFilters(
	ctx context.Context,
	log *slog.Logger,
	request RequestType,
) (filteredRequest RequestType) {

	filteredRequest = request
	for _, filterName := range p.filtersOrder {
		filter := p.filters[filterName]
		stepLog := log.With("filter", filterName)
		if request.IsRebuild() && !filter.Capabilities().RunOnRebuild {
			stepLog.Info("scheduler: filter does not run on rebuild")
			p.monitor.observeSkippedStep(filterName, "rebuild")
			continue
		}
		stepLog.Info("scheduler: running filter")
		result, err := filter.Run(ctx, stepLog, filteredRequest)
		if errors.Is(err, ErrStepSkipped) {
			stepLog.Info("scheduler: filter skipped")
			p.monitor.observeSkippedStep(filterName, "skipped")
			continue
		}
		if err != nil {
			stepLog.Error("scheduler: failed to run filter", "error", err)
			p.monitor.observeSkippedStep(filterName, "error")
			continue
		}
		stepLog.Info("scheduler: finished filter")
		// Assume the resulting request type is the same as the input type.
		filteredRequest = filteredRequest.FilterHosts(result.Activations).(RequestType)
	}
	return filteredRequest
}

// Apply an initial weight to the hosts.
//
// Context:
// Openstack schedulers may give us very large (positive/negative) weights such as
// -99,000 or 99,000 (Nova). We want to respect these values, but still adjust them
// to a meaningful value.
func normalizeInputWeights(weights map[string]float64) map[string]float64 {
	normalizedWeights := make(map[string]float64, len(weights))
	for hostname, weight := range weights {
		normalizedWeights[hostname] = math.Tanh(weight)
	}
	return normalizedWeights
}

// Sort the hosts by their weights, highest first. Ties are sorted by name.
func sortHostsByWeights(hosts []string, weights map[string]float64) []string {
	sorted := slices.Clone(hosts)
	slices.SortFunc(sorted, func(a, b string) int {
		if c := cmp.Compare(weights[b], weights[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return sorted
}

// Evaluate the pipeline and return a list of hosts in order of preference.
func (p *filterPipeline[RequestType]) Run(ctx context.Context, request RequestType) (PipelineDecision, error) {
	if p.monitor.pipelineRunTimer != nil {
		timer := prometheus.NewTimer(p.monitor.pipelineRunTimer.WithLabelValues(p.monitor.PipelineName))
		defer timer.ObserveDuration()
	}
	slogArgs := request.GetTraceLogArgs()
	slogArgsAny := make([]any, 0, len(slogArgs)+1)
	for _, arg := range slogArgs {
		slogArgsAny = append(slogArgsAny, arg)
	}
	slogArgsAny = append(slogArgsAny, slog.String("pipeline", p.monitor.PipelineName))
	traceLog := slog.With(slogArgsAny...)

	hostsIn := uniqueHosts(request.GetHosts())
	traceLog.Info("scheduler: starting pipeline", "hosts", hostsIn)

	inWeights := normalizeInputWeights(request.GetWeights())
	traceLog.Info("scheduler: input weights", "weights", inWeights)

	filteredRequest := p.runFilters(ctx, traceLog, request)
	if err := ctx.Err(); err != nil {
		return PipelineDecision{}, fmt.Errorf("scheduler pipeline interrupted: %w", err)
	}
	remaining := uniqueHosts(filteredRequest.GetHosts())
	traceLog.Info("scheduler: finished filters", "remainingHosts", remaining)

	hosts := sortHostsByWeights(remaining, inWeights)
	traceLog.Info("scheduler: sorted hosts", "hosts", hosts)
	p.monitor.observePipelineResult(hostsIn, hosts)

	return PipelineDecision{
		RawInWeights:        request.GetWeights(),
		NormalizedInWeights: inWeights,
		OrderedHosts:        hosts,
	}, nil
}
