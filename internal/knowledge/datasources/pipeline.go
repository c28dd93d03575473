// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package datasources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sapcc/go-bits/jobloop"
)

// Pipeline wrapper for all datasources.
type Pipeline struct {
	Syncers []Datasource
	// Base interval between two sync runs, jittered on each run.
	// Defaults to one minute.
	Interval time.Duration
}

// Initialize all datasources.
func (p *Pipeline) Init(ctx context.Context) error {
	for _, syncer := range p.Syncers {
		if err := syncer.Init(ctx); err != nil {
			return fmt.Errorf("failed to init datasource: %w", err)
		}
	}
	return nil
}

// Sync all datasources in parallel, once.
func (p *Pipeline) SyncOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, syncer := range p.Syncers {
		wg.Go(func() {
			n, err := syncer.Sync(ctx)
			if err != nil {
				slog.Error("failed to sync datasource", "error", err)
				return
			}
			slog.Info("synced datasource", "objects", n)
		})
	}
	wg.Wait()
}

// Sync all datasources in parallel until the context is cancelled.
func (p *Pipeline) SyncPeriodic(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		p.SyncOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("syncer shutting down")
			return
		case <-time.After(jobloop.DefaultJitter(interval)):
		}
	}
}
