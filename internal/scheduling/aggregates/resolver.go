// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/internal/knowledge/datasources/openstack/nova"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/db"
)

// Resolver looks up the merged aggregate metadata of a compute host.
type Resolver interface {
	Resolve(ctx context.Context, host string) (Metadata, error)
}

// Host aggregate as given in static aggregate lists.
type Aggregate struct {
	Name     string            `json:"name"`
	Hosts    []string          `json:"hosts"`
	Metadata map[string]string `json:"metadata"`
}

// Resolver over a static list of aggregates.
type MapResolver struct {
	byHost map[string][]map[string]string
}

func NewMapResolver(aggregates ...Aggregate) *MapResolver {
	byHost := make(map[string][]map[string]string)
	for _, agg := range aggregates {
		for _, host := range agg.Hosts {
			byHost[host] = append(byHost[host], agg.Metadata)
		}
	}
	return &MapResolver{byHost: byHost}
}

func (r *MapResolver) Resolve(_ context.Context, host string) (Metadata, error) {
	return MergeAll(r.byHost[host]...), nil
}

// Resolver over the nova aggregates synced into the database.
type DBResolver struct {
	DB db.DB
}

func (r DBResolver) Resolve(ctx context.Context, host string) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []nova.Aggregate
	query := "SELECT * FROM " + nova.Aggregate{}.TableName() + " WHERE compute_host = :host"
	group := "aggregates"
	if _, err := r.DB.SelectTimed(group, &rows, query, map[string]any{"host": host}); err != nil {
		return nil, fmt.Errorf("failed to select aggregates of host %s: %w", host, err)
	}
	merged := Metadata{}
	for _, row := range rows {
		var md map[string]string
		if err := json.Unmarshal([]byte(row.Metadata), &md); err != nil {
			slog.Warn("skipping aggregate with malformed metadata",
				"aggregate", row.UUID, "host", host, "error", err)
			continue
		}
		merged.Merge(md)
	}
	return merged, nil
}
