// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"slices"
	"testing"

	api "github.com/cobaltcore-dev/cortex-isolation/api/external/nova"
)

func TestPipelineRequest_FilterHosts(t *testing.T) {
	request := PipelineRequest{ExternalSchedulerRequest: api.ExternalSchedulerRequest{
		Hosts: []api.ExternalSchedulerHost{
			{ComputeHost: "host1", HypervisorHostname: "node1"},
			{ComputeHost: "host2", HypervisorHostname: "node2a"},
			{ComputeHost: "host2", HypervisorHostname: "node2b"},
			{ComputeHost: "host3", HypervisorHostname: "node3"},
		},
		Weights: map[string]float64{"host1": 1, "host2": 2, "host3": 3},
	}}
	filtered := request.FilterHosts(map[string]float64{"host2": 0, "host3": 0}).(PipelineRequest)
	if !slices.Equal(filtered.GetHosts(), []string{"host2", "host2", "host3"}) {
		t.Errorf("unexpected hosts %v", filtered.GetHosts())
	}
	if len(filtered.Weights) != 2 || filtered.Weights["host2"] != 2 || filtered.Weights["host3"] != 3 {
		t.Errorf("unexpected weights %v", filtered.Weights)
	}
	// The original request is not modified.
	if len(request.Hosts) != 4 || len(request.Weights) != 3 {
		t.Error("expected original request to stay unchanged")
	}
}
