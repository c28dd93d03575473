// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"maps"
	"slices"
	"strings"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

// Custom prometheus registry that adds functionality to the default registry.
type Registry struct {
	// Inherited prometheus registry.
	*prometheus.Registry
	// Custom configuration for the monitoring.
	config conf.MonitoringConfig
}

// Create a new registry with the given configuration.
// This registry will include the default go collector and process collector.
func NewRegistry(config conf.MonitoringConfig) *Registry {
	registry := &Registry{
		Registry: prometheus.NewRegistry(),
		config:   config,
	}
	// Add go execution stats and process metrics to the registry.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Gather all metrics and attach the configured labels to each of them, so
// that the go and process collectors can be told apart from other services.
// Labels already set on a metric are kept as they are.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	families, err := r.Registry.Gather()
	if err != nil || len(r.config.Labels) == 0 {
		return families, err
	}
	names := slices.Sorted(maps.Keys(r.config.Labels))
	for _, family := range families {
		for _, metric := range family.Metric {
			for _, name := range names {
				if slices.ContainsFunc(metric.Label, func(l *dto.LabelPair) bool { return l.GetName() == name }) {
					continue
				}
				value := r.config.Labels[name]
				metric.Label = append(metric.Label, &dto.LabelPair{Name: &name, Value: &value})
			}
			// Exposition expects label pairs sorted by name.
			slices.SortFunc(metric.Label, func(a, b *dto.LabelPair) int {
				return strings.Compare(a.GetName(), b.GetName())
			})
		}
	}
	return families, nil
}
