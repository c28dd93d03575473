// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import "log/slog"

type PipelineRequest interface {
	// Get the hosts that went in the pipeline.
	GetHosts() []string
	// Get the weights for the hosts.
	GetWeights() map[string]float64
	// Get logging args to be used in the step's trace log.
	// Usually, this will be the request context including the request ID.
	GetTraceLogArgs() []slog.Attr
	// Get the id under which decisions for this request can be cached.
	// An empty id disables caching.
	GetRequestID() string
	// Whether the request rebuilds an existing workload in place.
	IsRebuild() bool
	// Return a copy of the request that only includes the given hosts.
	FilterHosts(includedHosts map[string]float64) PipelineRequest
}
