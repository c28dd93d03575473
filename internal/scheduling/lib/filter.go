// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
)

// Capabilities a filter declares towards the pipeline. The pipeline
// reads them to decide how and when the filter is invoked.
type FilterCapabilities struct {
	// The filter's decision for a host does not change within one request,
	// so it may be reused when the scheduler calls again for the same request.
	RunOncePerRequest bool
	// The filter also applies when a workload is rebuilt in place.
	RunOnRebuild bool
}

// Interface for a filter as part of the scheduling pipeline.
type Filter[RequestType PipelineRequest] interface {
	// Configure the filter with its options.
	Init(ctx context.Context, opts conf.RawOpts) error
	// Run the filter and return the hosts that remain.
	Run(ctx context.Context, traceLog *slog.Logger, request RequestType) (*StepResult, error)
	// Capabilities declared by this filter.
	Capabilities() FilterCapabilities
}

// Implemented by filters that declare RunOncePerRequest. The key names
// everything in the request the filter's decision depends on besides the
// host, e.g. the requested image property. Decisions are only reused between
// calls with the same request id and the same key. Filters without it are
// never cached.
type DecisionKeyer[RequestType PipelineRequest] interface {
	DecisionKey(request RequestType) string
}
