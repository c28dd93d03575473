// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
)

// Interface to which step options must conform.
type FilterOpts interface {
	// Validate the options for this step.
	Validate() error
}

// Step that doesn't take any options.
type EmptyFilterOpts struct{}

func (EmptyFilterOpts) Validate() error { return nil }

// Common base for all filters that provides some functionality
// that would otherwise be duplicated across all filters.
type BaseFilter[RequestType PipelineRequest, Opts FilterOpts] struct {
	// Options to pass via yaml to this filter.
	conf.JsonOpts[Opts]
}

// Init the filter with the options.
func (s *BaseFilter[RequestType, Opts]) Init(ctx context.Context, opts conf.RawOpts) error {
	if err := s.Load(opts); err != nil {
		return err
	}
	return s.Options.Validate()
}

// Get a default result (no action) for the hosts given in the request.
// Use this to initialize the result before applying filtering logic.
func (s *BaseFilter[RequestType, Opts]) IncludeAllHostsFromRequest(request RequestType) *StepResult {
	activations := make(map[string]float64)
	for _, host := range request.GetHosts() {
		activations[host] = 0
	}
	return &StepResult{Activations: activations}
}
