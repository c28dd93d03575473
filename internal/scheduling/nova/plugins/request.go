// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	api "github.com/cobaltcore-dev/cortex-isolation/api/external/nova"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/aggregates"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/lib"
)

// Request passed through the nova scheduler pipeline.
type PipelineRequest struct {
	api.ExternalSchedulerRequest
	// Lookup for the aggregate metadata of the candidate hosts,
	// scoped to this request.
	Aggregates aggregates.Resolver `json:"-"`
}

// Return a copy of the request that only includes the given compute hosts.
// All hypervisor nodes of an included compute host are kept.
func (r PipelineRequest) FilterHosts(includedHosts map[string]float64) lib.PipelineRequest {
	hosts := make([]api.ExternalSchedulerHost, 0, len(includedHosts))
	weights := make(map[string]float64, len(includedHosts))
	for _, host := range r.Hosts {
		if _, ok := includedHosts[host.ComputeHost]; !ok {
			continue
		}
		hosts = append(hosts, host)
		if weight, ok := r.Weights[host.ComputeHost]; ok {
			weights[host.ComputeHost] = weight
		}
	}
	r.Hosts = hosts
	r.Weights = weights
	return r
}
