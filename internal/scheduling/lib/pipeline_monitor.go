// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collection of Prometheus metrics to monitor the scheduler pipeline.
type PipelineMonitor struct {
	// The pipeline name is used to differentiate between different pipelines.
	PipelineName string

	// A histogram to measure how long each filter takes to run.
	stepRunTimer *prometheus.HistogramVec
	// A histogram to observe how many hosts are removed by a filter.
	stepRemovedHostsObserver *prometheus.HistogramVec
	// A counter for filters that were not run or failed.
	stepSkippedCounter *prometheus.CounterVec
	// A counter for host decisions served from the decision cache.
	cachedDecisionsCounter *prometheus.CounterVec
	// A histogram to measure how long the pipeline takes to run in total.
	pipelineRunTimer *prometheus.HistogramVec
	// A histogram to observe the number of hosts going into the scheduler pipeline.
	hostNumberInObserver *prometheus.HistogramVec
	// A histogram to observe the number of hosts coming out of the scheduler pipeline.
	hostNumberOutObserver *prometheus.HistogramVec
	// Counter for the number of requests processed by the scheduler.
	requestCounter *prometheus.CounterVec
}

// Create a new scheduler monitor. Register it on a registry to export the metrics.
func NewPipelineMonitor() PipelineMonitor {
	return PipelineMonitor{
		stepRunTimer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_scheduler_pipeline_step_run_duration_seconds",
			Help:    "Duration of scheduler pipeline step run",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline", "step"}),
		stepRemovedHostsObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_scheduler_pipeline_step_removed_hosts",
			Help:    "Number of hosts removed by scheduler pipeline step",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline", "step"}),
		stepSkippedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_scheduler_pipeline_step_skipped_total",
			Help: "Number of times a scheduler pipeline step was skipped or failed",
		}, []string{"pipeline", "step", "reason"}),
		cachedDecisionsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_scheduler_pipeline_step_cached_decisions_total",
			Help: "Number of host decisions served from the per-request decision cache",
		}, []string{"pipeline", "step"}),
		pipelineRunTimer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_scheduler_pipeline_run_duration_seconds",
			Help:    "Duration of scheduler pipeline run",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		hostNumberInObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_scheduler_pipeline_host_number_in",
			Help:    "Number of hosts going into the scheduler pipeline",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline"}),
		hostNumberOutObserver: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_scheduler_pipeline_host_number_out",
			Help:    "Number of hosts coming out of the scheduler pipeline",
			Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
		}, []string{"pipeline"}),
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_scheduler_pipeline_requests_total",
			Help: "Total number of requests processed by the scheduler.",
		}, []string{"pipeline"}),
	}
}

// Get a copied pipeline monitor with the name set.
func (m PipelineMonitor) SubPipeline(name string) PipelineMonitor {
	cp := m
	cp.PipelineName = name
	return cp
}

// Observe a scheduler pipeline result: hosts going in, and hosts going out.
func (m *PipelineMonitor) observePipelineResult(hostsIn, hostsOut []string) {
	if m.hostNumberInObserver != nil {
		m.hostNumberInObserver.WithLabelValues(m.PipelineName).Observe(float64(len(hostsIn)))
	}
	if m.hostNumberOutObserver != nil {
		m.hostNumberOutObserver.WithLabelValues(m.PipelineName).Observe(float64(len(hostsOut)))
	}
	if m.requestCounter != nil {
		m.requestCounter.WithLabelValues(m.PipelineName).Inc()
	}
}

func (m *PipelineMonitor) observeSkippedStep(stepName, reason string) {
	if m.stepSkippedCounter != nil {
		m.stepSkippedCounter.WithLabelValues(m.PipelineName, stepName, reason).Inc()
	}
}

func (m *PipelineMonitor) Describe(ch chan<- *prometheus.Desc) {
	m.stepRunTimer.Describe(ch)
	m.stepRemovedHostsObserver.Describe(ch)
	m.stepSkippedCounter.Describe(ch)
	m.cachedDecisionsCounter.Describe(ch)
	m.pipelineRunTimer.Describe(ch)
	m.hostNumberInObserver.Describe(ch)
	m.hostNumberOutObserver.Describe(ch)
	m.requestCounter.Describe(ch)
}

func (m *PipelineMonitor) Collect(ch chan<- prometheus.Metric) {
	m.stepRunTimer.Collect(ch)
	m.stepRemovedHostsObserver.Collect(ch)
	m.stepSkippedCounter.Collect(ch)
	m.cachedDecisionsCounter.Collect(ch)
	m.pipelineRunTimer.Collect(ch)
	m.hostNumberInObserver.Collect(ch)
	m.hostNumberOutObserver.Collect(ch)
	m.requestCounter.Collect(ch)
}
