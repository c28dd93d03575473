// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
)

type mockPipelineRequest struct {
	Hosts     []string
	Weights   map[string]float64
	RequestID string
	Rebuild   bool
}

func (r mockPipelineRequest) GetHosts() []string             { return r.Hosts }
func (r mockPipelineRequest) GetWeights() map[string]float64 { return r.Weights }
func (r mockPipelineRequest) GetTraceLogArgs() []slog.Attr   { return nil }
func (r mockPipelineRequest) GetRequestID() string           { return r.RequestID }
func (r mockPipelineRequest) IsRebuild() bool                { return r.Rebuild }
func (r mockPipelineRequest) FilterHosts(includedHosts map[string]float64) PipelineRequest {
	hosts := []string{}
	weights := map[string]float64{}
	for _, host := range r.Hosts {
		if _, ok := includedHosts[host]; ok {
			hosts = append(hosts, host)
			weights[host] = r.Weights[host]
		}
	}
	r.Hosts = hosts
	r.Weights = weights
	return r
}

type mockFilter[RequestType PipelineRequest] struct {
	InitFunc     func(ctx context.Context, opts conf.RawOpts) error
	RunFunc      func(ctx context.Context, traceLog *slog.Logger, request RequestType) (*StepResult, error)
	Caps         FilterCapabilities
	RunCallCount int
}

func (m *mockFilter[RequestType]) Init(ctx context.Context, opts conf.RawOpts) error {
	if m.InitFunc == nil {
		return nil
	}
	return m.InitFunc(ctx, opts)
}

func (m *mockFilter[RequestType]) Run(ctx context.Context, traceLog *slog.Logger, request RequestType) (*StepResult, error) {
	m.RunCallCount++
	if m.RunFunc == nil {
		return &StepResult{}, nil
	}
	return m.RunFunc(ctx, traceLog, request)
}

func (m *mockFilter[RequestType]) Capabilities() FilterCapabilities {
	return m.Caps
}

// Filter function that keeps only the given hosts.
func keepHosts(hosts ...string) func(context.Context, *slog.Logger, mockPipelineRequest) (*StepResult, error) {
	return func(_ context.Context, _ *slog.Logger, request mockPipelineRequest) (*StepResult, error) {
		activations := map[string]float64{}
		for _, host := range request.GetHosts() {
			for _, keep := range hosts {
				if host == keep {
					activations[host] = 0
				}
			}
		}
		return &StepResult{Activations: activations}, nil
	}
}

// Mock filter that also provides a decision key.
type mockKeyedFilter struct {
	mockFilter[mockPipelineRequest]
	KeyFunc func(request mockPipelineRequest) string
}

func (m *mockKeyedFilter) DecisionKey(request mockPipelineRequest) string {
	if m.KeyFunc == nil {
		return ""
	}
	return m.KeyFunc(request)
}
