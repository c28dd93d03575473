// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	api "github.com/cobaltcore-dev/cortex-isolation/api/external/nova"
	"github.com/cobaltcore-dev/cortex-isolation/internal/knowledge/datasources/openstack/nova"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/db"
	"github.com/google/uuid"
)

// Options of a simulated scheduling request.
type Options struct {
	// Url of the nova external scheduler endpoint.
	URL string
	// Image properties the simulated vm requests, e.g. os_distro=ubuntu.
	ImageProperties map[string]string
}

// Simulate the scheduling of a VM onto all compute hosts known from
// the synced aggregates, and return the hosts the scheduler keeps.
func SimulateVMScheduling(ctx context.Context, database db.DB, opts Options) ([]string, error) {
	var computeHosts []string
	query := "SELECT DISTINCT compute_host FROM " + nova.Aggregate{}.TableName() +
		" WHERE compute_host IS NOT NULL ORDER BY compute_host"
	if _, err := database.Select(&computeHosts, query); err != nil {
		return nil, fmt.Errorf("failed to get hosts: %w", err)
	}
	if len(computeHosts) == 0 {
		return nil, errors.New("no compute hosts in synced aggregates")
	}

	properties, err := json.Marshal(opts.ImageProperties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image properties: %w", err)
	}
	greq := "req-" + uuid.NewString()
	request := api.ExternalSchedulerRequest{
		Spec: api.NovaObject[api.NovaSpec]{
			Data: api.NovaSpec{
				ProjectID:  "my-project",
				NInstances: 1,
				Image: &api.NovaObject[api.NovaImageMeta]{
					Data: api.NovaImageMeta{Name: "simulated-image", Properties: properties},
				},
			},
		},
		Context: api.NovaRequestContext{
			ProjectID:       "my-project",
			RequestID:       greq,
			GlobalRequestID: &greq,
		},
		Weights: make(map[string]float64, len(computeHosts)),
	}
	for _, host := range computeHosts {
		request.Hosts = append(request.Hosts, api.ExternalSchedulerHost{
			ComputeHost:        host,
			HypervisorHostname: host,
		})
		request.Weights[host] = 1.0
	}

	slog.Info("sending POST request", "url", opts.URL, "hosts", len(computeHosts), "req", greq)
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send POST request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-OK response: %s", resp.Status)
	}
	var response api.ExternalSchedulerResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	rejected := slices.DeleteFunc(slices.Clone(computeHosts), func(host string) bool {
		return slices.Contains(response.Hosts, host)
	})
	slog.Info("received response", "hosts", response.Hosts, "rejected", rejected)
	return response.Hosts, nil
}
