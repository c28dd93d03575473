// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
)

func TestPipeline_Run(t *testing.T) {
	tests := []struct {
		name           string
		filters        map[string]*mockFilter[mockPipelineRequest]
		order          []string
		request        mockPipelineRequest
		expectedResult []string
	}{
		{
			name: "filter removes a host",
			filters: map[string]*mockFilter[mockPipelineRequest]{
				"mock_filter": {RunFunc: keepHosts("host1", "host2")},
			},
			order: []string{"mock_filter"},
			request: mockPipelineRequest{
				Hosts:   []string{"host1", "host2", "host3"},
				Weights: map[string]float64{"host1": 0.5, "host2": 1.0, "host3": 2.0},
			},
			expectedResult: []string{"host2", "host1"},
		},
		{
			name: "filters are chained",
			filters: map[string]*mockFilter[mockPipelineRequest]{
				"first":  {RunFunc: keepHosts("host1", "host2")},
				"second": {RunFunc: keepHosts("host2", "host3")},
			},
			order: []string{"first", "second"},
			request: mockPipelineRequest{
				Hosts:   []string{"host1", "host2", "host3"},
				Weights: map[string]float64{"host1": 0, "host2": 0, "host3": 0},
			},
			expectedResult: []string{"host2"},
		},
		{
			name: "failing filter keeps all hosts",
			filters: map[string]*mockFilter[mockPipelineRequest]{
				"failing": {RunFunc: func(context.Context, *slog.Logger, mockPipelineRequest) (*StepResult, error) {
					return nil, errors.New("resolver unavailable")
				}},
			},
			order: []string{"failing"},
			request: mockPipelineRequest{
				Hosts:   []string{"host1", "host2"},
				Weights: map[string]float64{"host1": 1, "host2": 2},
			},
			expectedResult: []string{"host2", "host1"},
		},
		{
			name: "skipped filter keeps all hosts",
			filters: map[string]*mockFilter[mockPipelineRequest]{
				"skipped": {RunFunc: func(context.Context, *slog.Logger, mockPipelineRequest) (*StepResult, error) {
					return nil, ErrStepSkipped
				}},
			},
			order: []string{"skipped"},
			request: mockPipelineRequest{
				Hosts:   []string{"host1", "host2"},
				Weights: map[string]float64{"host1": 1, "host2": 2},
			},
			expectedResult: []string{"host2", "host1"},
		},
		{
			name: "equal weights are ordered by name",
			filters: map[string]*mockFilter[mockPipelineRequest]{},
			order:   []string{},
			request: mockPipelineRequest{
				Hosts:   []string{"host3", "host1", "host2"},
				Weights: map[string]float64{"host1": 99000, "host2": 99001, "host3": 99000},
			},
			// tanh saturates, so all weights are equal after normalization.
			expectedResult: []string{"host1", "host2", "host3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := map[string]Filter[mockPipelineRequest]{}
			for name, f := range tt.filters {
				filters[name] = validateFilter[mockPipelineRequest](f)
			}
			pipeline := &filterPipeline[mockPipelineRequest]{
				filters:      filters,
				filtersOrder: tt.order,
			}
			result, err := pipeline.Run(t.Context(), tt.request)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !slices.Equal(result.OrderedHosts, tt.expectedResult) {
				t.Errorf("expected hosts %v, got %v", tt.expectedResult, result.OrderedHosts)
			}
		})
	}
}

func TestPipeline_RunSkipsFiltersOnRebuild(t *testing.T) {
	rebuildAware := &mockFilter[mockPipelineRequest]{
		RunFunc: keepHosts("host1", "host2"),
		Caps:    FilterCapabilities{RunOnRebuild: true},
	}
	notOnRebuild := &mockFilter[mockPipelineRequest]{
		RunFunc: keepHosts("host1"),
	}
	pipeline := &filterPipeline[mockPipelineRequest]{
		filters: map[string]Filter[mockPipelineRequest]{
			"rebuild_aware":  rebuildAware,
			"not_on_rebuild": notOnRebuild,
		},
		filtersOrder: []string{"rebuild_aware", "not_on_rebuild"},
	}
	request := mockPipelineRequest{
		Hosts:   []string{"host1", "host2", "host3"},
		Weights: map[string]float64{"host1": 0, "host2": 0, "host3": 0},
		Rebuild: true,
	}
	result, err := pipeline.Run(t.Context(), request)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !slices.Equal(result.OrderedHosts, []string{"host1", "host2"}) {
		t.Errorf("unexpected hosts %v", result.OrderedHosts)
	}
	if rebuildAware.RunCallCount != 1 {
		t.Errorf("expected rebuild aware filter to run once, got %d", rebuildAware.RunCallCount)
	}
	if notOnRebuild.RunCallCount != 0 {
		t.Errorf("expected filter without rebuild capability not to run, got %d", notOnRebuild.RunCallCount)
	}

	// Without rebuild, both filters run.
	request.Rebuild = false
	result, err = pipeline.Run(t.Context(), request)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !slices.Equal(result.OrderedHosts, []string{"host1"}) {
		t.Errorf("unexpected hosts %v", result.OrderedHosts)
	}
}

func TestPipeline_RunCancelled(t *testing.T) {
	pipeline := &filterPipeline[mockPipelineRequest]{
		filters:      map[string]Filter[mockPipelineRequest]{},
		filtersOrder: []string{},
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := pipeline.Run(ctx, mockPipelineRequest{Hosts: []string{"host1"}}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestInitNewFilterPipeline(t *testing.T) {
	supported := map[string]func() Filter[mockPipelineRequest]{
		"keep_host1": func() Filter[mockPipelineRequest] {
			return &mockFilter[mockPipelineRequest]{RunFunc: keepHosts("host1")}
		},
		"bad_opts": func() Filter[mockPipelineRequest] {
			return &mockFilter[mockPipelineRequest]{InitFunc: func(context.Context, conf.RawOpts) error {
				return errors.New("invalid options")
			}}
		},
	}
	confed := []conf.FilterConfig{
		{Name: "keep_host1"},
		{Name: "bad_opts"},
		{Name: "unknown"},
	}
	result := InitNewFilterPipeline(t.Context(), "test", supported, confed, nil, NewPipelineMonitor())
	if len(result.FilterErrors) != 2 {
		t.Fatalf("expected 2 filter errors, got %v", result.FilterErrors)
	}
	if _, ok := result.FilterErrors["unknown"]; !ok {
		t.Error("expected error for unknown filter")
	}
	if _, ok := result.FilterErrors["bad_opts"]; !ok {
		t.Error("expected error for filter with invalid options")
	}
	decision, err := result.Pipeline.Run(t.Context(), mockPipelineRequest{
		Hosts:   []string{"host1", "host2"},
		Weights: map[string]float64{"host1": 0, "host2": 0},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !slices.Equal(decision.OrderedHosts, []string{"host1"}) {
		t.Errorf("unexpected hosts %v", decision.OrderedHosts)
	}
}

func TestInitNewFilterPipeline_DecisionCache(t *testing.T) {
	cached := &mockKeyedFilter{mockFilter: mockFilter[mockPipelineRequest]{
		RunFunc: keepHosts("host1"),
		Caps:    FilterCapabilities{RunOncePerRequest: true},
	}}
	uncached := &mockFilter[mockPipelineRequest]{
		RunFunc: keepHosts("host1", "host2"),
	}
	// Runs once per request, but cannot say what its decision depends on.
	unkeyed := &mockFilter[mockPipelineRequest]{
		RunFunc: keepHosts("host1", "host2"),
		Caps:    FilterCapabilities{RunOncePerRequest: true},
	}
	supported := map[string]func() Filter[mockPipelineRequest]{
		"cached":   func() Filter[mockPipelineRequest] { return cached },
		"uncached": func() Filter[mockPipelineRequest] { return uncached },
		"unkeyed":  func() Filter[mockPipelineRequest] { return unkeyed },
	}
	confed := []conf.FilterConfig{{Name: "cached"}, {Name: "uncached"}, {Name: "unkeyed"}}
	cache := NewDecisionCache(100, time.Minute)
	result := InitNewFilterPipeline(t.Context(), "test", supported, confed, cache, NewPipelineMonitor())
	if len(result.FilterErrors) != 0 {
		t.Fatalf("expected no filter errors, got %v", result.FilterErrors)
	}
	request := mockPipelineRequest{
		Hosts:     []string{"host1", "host2"},
		Weights:   map[string]float64{"host1": 0, "host2": 0},
		RequestID: "req-1",
	}
	for range 3 {
		decision, err := result.Pipeline.Run(t.Context(), request)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !slices.Equal(decision.OrderedHosts, []string{"host1"}) {
			t.Errorf("unexpected hosts %v", decision.OrderedHosts)
		}
	}
	if cached.RunCallCount != 1 {
		t.Errorf("expected cached filter to run once, got %d", cached.RunCallCount)
	}
	if uncached.RunCallCount != 3 {
		t.Errorf("expected uncached filter to run every time, got %d", uncached.RunCallCount)
	}
	if unkeyed.RunCallCount != 3 {
		t.Errorf("expected filter without decision key to run every time, got %d", unkeyed.RunCallCount)
	}
}
