// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFilterDecisionCache_Run(t *testing.T) {
	filter := &mockKeyedFilter{mockFilter: mockFilter[mockPipelineRequest]{RunFunc: keepHosts("host1")}}
	monitor := NewPipelineMonitor().SubPipeline("test")
	wrapped := cacheFilterDecisions[mockPipelineRequest](filter, filter, "step", NewDecisionCache(100, time.Minute), monitor)
	request := mockPipelineRequest{Hosts: []string{"host1", "host2"}, RequestID: "req-1"}

	for range 2 {
		result, err := wrapped.Run(t.Context(), slog.Default(), request)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := result.Activations["host1"]; !ok {
			t.Error("expected host1 to pass")
		}
		if _, ok := result.Activations["host2"]; ok {
			t.Error("expected host2 to be filtered")
		}
	}
	if filter.RunCallCount != 1 {
		t.Errorf("expected filter to run once, got %d", filter.RunCallCount)
	}
	hits := testutil.ToFloat64(monitor.cachedDecisionsCounter.WithLabelValues("test", "step"))
	if hits != 2 {
		t.Errorf("expected 2 cached decisions, got %f", hits)
	}

	// A new host without cached decision runs the filter again.
	request.Hosts = append(request.Hosts, "host3")
	if _, err := wrapped.Run(t.Context(), slog.Default(), request); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if filter.RunCallCount != 2 {
		t.Errorf("expected filter to run again for unknown host, got %d", filter.RunCallCount)
	}

	// Another request id does not share decisions.
	request.RequestID = "req-2"
	if _, err := wrapped.Run(t.Context(), slog.Default(), request); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if filter.RunCallCount != 3 {
		t.Errorf("expected filter to run for another request, got %d", filter.RunCallCount)
	}
}

func TestFilterDecisionCache_NoRequestID(t *testing.T) {
	filter := &mockKeyedFilter{mockFilter: mockFilter[mockPipelineRequest]{RunFunc: keepHosts("host1")}}
	wrapped := cacheFilterDecisions[mockPipelineRequest](filter, filter, "step", NewDecisionCache(100, time.Minute), PipelineMonitor{})
	request := mockPipelineRequest{Hosts: []string{"host1", "host2"}}
	for range 3 {
		if _, err := wrapped.Run(t.Context(), slog.Default(), request); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if filter.RunCallCount != 3 {
		t.Errorf("expected filter to run on every call, got %d", filter.RunCallCount)
	}
}

func TestFilterDecisionCache_ErrorsAreNotCached(t *testing.T) {
	fail := true
	filter := &mockKeyedFilter{mockFilter: mockFilter[mockPipelineRequest]{
		RunFunc: func(ctx context.Context, traceLog *slog.Logger, request mockPipelineRequest) (*StepResult, error) {
			if fail {
				return nil, errors.New("db down")
			}
			return keepHosts("host2")(ctx, traceLog, request)
		},
	}}
	wrapped := cacheFilterDecisions[mockPipelineRequest](filter, filter, "step", NewDecisionCache(100, time.Minute), PipelineMonitor{})
	request := mockPipelineRequest{Hosts: []string{"host1", "host2"}, RequestID: "req-1"}
	if _, err := wrapped.Run(t.Context(), slog.Default(), request); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	result, err := wrapped.Run(t.Context(), slog.Default(), request)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := result.Activations["host2"]; !ok || len(result.Activations) != 1 {
		t.Errorf("unexpected activations %v", result.Activations)
	}
	if filter.RunCallCount != 2 {
		t.Errorf("expected filter to run twice, got %d", filter.RunCallCount)
	}
}

func TestFilterDecisionCache_Expiry(t *testing.T) {
	filter := &mockKeyedFilter{mockFilter: mockFilter[mockPipelineRequest]{RunFunc: keepHosts("host1")}}
	wrapped := cacheFilterDecisions[mockPipelineRequest](filter, filter, "step", NewDecisionCache(100, 10*time.Millisecond), PipelineMonitor{})
	request := mockPipelineRequest{Hosts: []string{"host1"}, RequestID: "req-1"}
	if _, err := wrapped.Run(t.Context(), slog.Default(), request); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := wrapped.Run(t.Context(), slog.Default(), request); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if filter.RunCallCount != 2 {
		t.Errorf("expected filter to run again after expiry, got %d", filter.RunCallCount)
	}
}

func TestFilterDecisionCache_SameRequestDifferentKey(t *testing.T) {
	// The kept host depends on the requested value, like an image property.
	filter := &mockKeyedFilter{
		mockFilter: mockFilter[mockPipelineRequest]{
			RunFunc: func(ctx context.Context, traceLog *slog.Logger, request mockPipelineRequest) (*StepResult, error) {
				if request.Rebuild {
					return keepHosts("host2")(ctx, traceLog, request)
				}
				return keepHosts("host1")(ctx, traceLog, request)
			},
		},
		KeyFunc: func(request mockPipelineRequest) string {
			if request.Rebuild {
				return "value=b"
			}
			return "value=a"
		},
	}
	wrapped := cacheFilterDecisions[mockPipelineRequest](filter, filter, "step", NewDecisionCache(100, time.Minute), PipelineMonitor{})

	tests := []struct {
		name     string
		rebuild  bool
		expected string
		runs     int
	}{
		{name: "first value", expected: "host1", runs: 1},
		{name: "second value, same request id", rebuild: true, expected: "host2", runs: 2},
		{name: "first value again is cached", expected: "host1", runs: 2},
		{name: "second value again is cached", rebuild: true, expected: "host2", runs: 2},
	}
	for _, tt := range tests {
		request := mockPipelineRequest{Hosts: []string{"host1", "host2"}, RequestID: "greq-shared", Rebuild: tt.rebuild}
		result, err := wrapped.Run(t.Context(), slog.Default(), request)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", tt.name, err)
		}
		if _, ok := result.Activations[tt.expected]; !ok || len(result.Activations) != 1 {
			t.Errorf("%s: expected only %s, got %v", tt.name, tt.expected, result.Activations)
		}
		if filter.RunCallCount != tt.runs {
			t.Errorf("%s: expected %d filter runs, got %d", tt.name, tt.runs, filter.RunCallCount)
		}
	}
}

func TestFilterDecisionCache_NoKeyer(t *testing.T) {
	filter := &mockFilter[mockPipelineRequest]{RunFunc: keepHosts("host1")}
	wrapped := cacheFilterDecisions[mockPipelineRequest](filter, nil, "step", NewDecisionCache(100, time.Minute), PipelineMonitor{})
	request := mockPipelineRequest{Hosts: []string{"host1", "host2"}, RequestID: "req-1"}
	for range 2 {
		if _, err := wrapped.Run(t.Context(), slog.Default(), request); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if filter.RunCallCount != 2 {
		t.Errorf("expected filter without decision key to run every time, got %d", filter.RunCallCount)
	}
}
