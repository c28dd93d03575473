// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
)

// Wrapper for filters that validates them after execution.
type FilterValidator[RequestType PipelineRequest] struct {
	// The wrapped filter to validate.
	Filter Filter[RequestType]
}

// Validate the wrapped filter.
func validateFilter[RequestType PipelineRequest](filter Filter[RequestType]) *FilterValidator[RequestType] {
	return &FilterValidator[RequestType]{Filter: filter}
}

// Initialize the wrapped filter.
func (s *FilterValidator[RequestType]) Init(ctx context.Context, opts conf.RawOpts) error {
	return s.Filter.Init(ctx, opts)
}

func (s *FilterValidator[RequestType]) Capabilities() FilterCapabilities {
	return s.Filter.Capabilities()
}

// Run the filter and validate what happens.
func (s *FilterValidator[RequestType]) Run(ctx context.Context, traceLog *slog.Logger, request RequestType) (*StepResult, error) {
	result, err := s.Filter.Run(ctx, traceLog, request)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("safety: filter returned no result")
	}
	// Note that the same compute host may appear multiple times if it has
	// several hypervisor nodes. Filters work on the compute host level.
	known := make(map[string]struct{}, len(request.GetHosts()))
	for _, host := range request.GetHosts() {
		known[host] = struct{}{}
	}
	// Filters can only remove hosts, not add new ones.
	for host := range result.Activations {
		if _, ok := known[host]; !ok {
			return nil, fmt.Errorf("safety: host %s was added during filter execution", host)
		}
	}
	return result, nil
}
