// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/internal/knowledge/datasources"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/keystone"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/openstack"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/aggregates"
	"github.com/gophercloud/gophercloud/v2/pagination"
	"github.com/prometheus/client_golang/prometheus"
)

var errNotInitialized = errors.New("nova api is not initialized")

type NovaAPI interface {
	// Init the nova API.
	Init(ctx context.Context) error
	// Get all host aggregates, flattened to one entry per host.
	GetAllAggregates(ctx context.Context) ([]Aggregate, error)
}

// API for OpenStack Nova.
type novaAPI struct {
	// Monitor to track the api.
	mon datasources.Monitor
	// Keystone api to authenticate against.
	keystoneAPI keystone.Client
	// Authenticated OpenStack service client to fetch the data.
	sc *gophercloud.ServiceClient
}

func NewNovaAPI(mon datasources.Monitor, k keystone.Client) NovaAPI {
	return &novaAPI{mon: mon, keystoneAPI: k}
}

// Init the nova API.
func (api *novaAPI) Init(ctx context.Context) error {
	sc, err := openstack.NovaClient(ctx, api.keystoneAPI)
	if err != nil {
		return err
	}
	api.sc = sc
	return nil
}

func (api *novaAPI) GetAllAggregates(ctx context.Context) ([]Aggregate, error) {
	if api.sc == nil {
		return nil, errNotInitialized
	}
	label := Aggregate{}.TableName()
	slog.Info("fetching nova data", "label", label)

	pages, err := func() (pagination.Page, error) {
		if api.mon.RequestTimer != nil {
			hist := api.mon.RequestTimer.WithLabelValues(label)
			timer := prometheus.NewTimer(hist)
			defer timer.ObserveDuration()
		}
		return aggregates.List(api.sc).AllPages(ctx)
	}()
	if err != nil {
		return nil, err
	}

	type RawAggregate struct {
		UUID             string            `json:"uuid"`
		Name             string            `json:"name"`
		AvailabilityZone *string           `json:"availability_zone"`
		Hosts            []string          `json:"hosts"`
		Metadata         map[string]string `json:"metadata"`
	}
	type AggregatesPage struct {
		Aggregates []RawAggregate `json:"aggregates"`
	}
	data := &AggregatesPage{}
	if err := pages.(aggregates.AggregatesPage).ExtractInto(data); err != nil {
		return nil, err
	}
	slog.Info("fetched", "label", label, "count", len(data.Aggregates))

	result := []Aggregate{}
	for _, raw := range data.Aggregates {
		metadata := raw.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		encoded, err := json.Marshal(metadata)
		if err != nil {
			slog.Warn("failed to marshal aggregate metadata", "aggregate", raw.UUID, "error", err)
			encoded = []byte("{}")
		}
		if len(raw.Hosts) == 0 {
			result = append(result, Aggregate{
				UUID:             raw.UUID,
				Name:             raw.Name,
				AvailabilityZone: raw.AvailabilityZone,
				ComputeHost:      nil,
				Metadata:         string(encoded),
			})
			continue
		}
		for _, host := range raw.Hosts {
			result = append(result, Aggregate{
				UUID:             raw.UUID,
				Name:             raw.Name,
				AvailabilityZone: raw.AvailabilityZone,
				ComputeHost:      &host,
				Metadata:         string(encoded),
			})
		}
	}
	slog.Info("extracted after fetch", "label", label, "count", len(result))
	return result, nil
}
