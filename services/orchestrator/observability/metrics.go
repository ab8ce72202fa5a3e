// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the orchestrator.
//
// # Description
//
// Metrics cover the comparison pipeline end to end:
//   - Technique run counters and duration histograms (by technique, status)
//   - Evaluation counters and duration histograms (by evaluator, status)
//   - In-flight technique worker gauge
//   - Ingested chunk counter
//
// Metrics are exposed on /metrics. Use with Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "rageval"

// Metrics holds all Prometheus metrics of the service. Initialize once at
// startup via InitMetrics.
type Metrics struct {
	// TechniqueRunsTotal counts technique executions.
	// Labels: technique, status (success or the error kind).
	TechniqueRunsTotal *prometheus.CounterVec

	// TechniqueDurationSeconds measures wall-clock duration of one
	// technique run. Labels: technique.
	TechniqueDurationSeconds *prometheus.HistogramVec

	// ActiveTechniqueRuns tracks in-flight technique workers.
	ActiveTechniqueRuns prometheus.Gauge

	// QueriesTotal counts fan-out requests by status.
	// Labels: status (success, rejected, persistence_failed).
	QueriesTotal *prometheus.CounterVec

	// EvaluationsTotal counts per-record evaluations.
	// Labels: evaluator (llm_judge, reference), status.
	EvaluationsTotal *prometheus.CounterVec

	// EvaluationDurationSeconds measures one record's evaluation time.
	// Labels: evaluator.
	EvaluationDurationSeconds *prometheus.HistogramVec

	// IngestedChunksTotal counts chunks written to the vector index.
	IngestedChunksTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *Metrics

// InitMetrics creates and registers all metrics on the default registry.
// Call once at startup; a second call panics on duplicate registration.
func InitMetrics() *Metrics {
	DefaultMetrics = &Metrics{
		TechniqueRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "technique_runs_total",
				Help:      "Total technique executions by technique and status",
			},
			[]string{"technique", "status"},
		),

		TechniqueDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "technique_duration_seconds",
				Help:      "Wall-clock duration of one technique run",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"technique"},
		),

		ActiveTechniqueRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_technique_runs",
				Help:      "Number of technique workers currently running",
			},
		),

		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "queries_total",
				Help:      "Total fan-out requests by status",
			},
			[]string{"status"},
		),

		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "evaluations_total",
				Help:      "Total per-record evaluations by evaluator and status",
			},
			[]string{"evaluator", "status"},
		),

		EvaluationDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of one record's evaluation",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"evaluator"},
		),

		IngestedChunksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ingested_chunks_total",
				Help:      "Total chunks written to the vector index",
			},
		),
	}
	return DefaultMetrics
}

// TechniqueRunStarted bumps the in-flight gauge.
func (m *Metrics) TechniqueRunStarted() {
	if m == nil {
		return
	}
	m.ActiveTechniqueRuns.Inc()
}

// TechniqueRunFinished drops the in-flight gauge.
func (m *Metrics) TechniqueRunFinished() {
	if m == nil {
		return
	}
	m.ActiveTechniqueRuns.Dec()
}

// ObserveQuery counts one fan-out request by status.
func (m *Metrics) ObserveQuery(status string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
}

// ObserveIngestedChunks counts chunks written by one ingest.
func (m *Metrics) ObserveIngestedChunks(n int) {
	if m == nil {
		return
	}
	m.IngestedChunksTotal.Add(float64(n))
}

// ObserveTechniqueRun records one finished technique run. status is
// "success" or the result's error kind.
func (m *Metrics) ObserveTechniqueRun(technique, status string, seconds float64) {
	if m == nil {
		return
	}
	m.TechniqueRunsTotal.WithLabelValues(technique, status).Inc()
	m.TechniqueDurationSeconds.WithLabelValues(technique).Observe(seconds)
}

// ObserveEvaluation records one finished per-record evaluation.
func (m *Metrics) ObserveEvaluation(evaluator, status string, seconds float64) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(evaluator, status).Inc()
	m.EvaluationDurationSeconds.WithLabelValues(evaluator).Observe(seconds)
}
