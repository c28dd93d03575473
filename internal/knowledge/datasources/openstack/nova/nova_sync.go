// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/internal/knowledge/datasources"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/db"
)

// Syncer for OpenStack nova host aggregates.
type NovaSyncer struct {
	// Database to store the nova objects in.
	DB db.DB
	// Monitor to track the syncer.
	Mon datasources.Monitor
	// Nova API client to fetch the data.
	API NovaAPI
}

// Init the OpenStack nova syncer.
func (s *NovaSyncer) Init(ctx context.Context) error {
	if err := s.API.Init(ctx); err != nil {
		return fmt.Errorf("failed to init nova api: %w", err)
	}
	return s.DB.CreateTable(s.DB.AddTable(Aggregate{}))
}

// Sync the OpenStack nova aggregates into the database.
func (s *NovaSyncer) Sync(ctx context.Context) (int64, error) {
	n, err := s.SyncAllAggregates(ctx)
	if err != nil {
		label := Aggregate{}.TableName()
		if s.Mon.SyncErrorsCounter != nil {
			s.Mon.SyncErrorsCounter.WithLabelValues(label).Inc()
		}
		return 0, err
	}
	return n, nil
}

// Sync all aggregates, replacing the previously synced ones.
func (s *NovaSyncer) SyncAllAggregates(ctx context.Context) (int64, error) {
	allAggregates, err := s.API.GetAllAggregates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch aggregates: %w", err)
	}
	// Since nova doesn't support listing only changed aggregates,
	// replace everything in one transaction.
	if err := db.ReplaceAll(s.DB, allAggregates...); err != nil {
		return 0, err
	}
	label := Aggregate{}.TableName()
	if s.Mon.ObjectsGauge != nil {
		s.Mon.ObjectsGauge.WithLabelValues(label).Set(float64(len(allAggregates)))
	}
	if s.Mon.RequestProcessedCounter != nil {
		s.Mon.RequestProcessedCounter.WithLabelValues(label).Inc()
	}
	slog.Info("synced objects", "type", label, "n", len(allAggregates))
	return int64(len(allAggregates)), nil
}
