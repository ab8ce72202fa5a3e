// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// newTestMetrics builds metrics without touching the default registry so
// tests stay isolated from InitMetrics.
func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return &Metrics{
		TechniqueRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "technique_runs_total"},
			[]string{"technique", "status"},
		),
		TechniqueDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: metricsNamespace, Name: "technique_duration_seconds"},
			[]string{"technique"},
		),
		ActiveTechniqueRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "active_technique_runs"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "queries_total"},
			[]string{"status"},
		),
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "evaluations_total"},
			[]string{"evaluator", "status"},
		),
		EvaluationDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: metricsNamespace, Name: "evaluation_duration_seconds"},
			[]string{"evaluator"},
		),
		IngestedChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "ingested_chunks_total"},
		),
	}
}

func TestObserveTechniqueRun(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveTechniqueRun("baseline", "success", 1.5)
	m.ObserveTechniqueRun("baseline", "success", 0.5)
	m.ObserveTechniqueRun("fusion", "timeout", 120)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TechniqueRunsTotal.WithLabelValues("baseline", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TechniqueRunsTotal.WithLabelValues("fusion", "timeout")))
}

func TestObserveEvaluation(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveEvaluation("llm_judge", "success", 2)
	m.ObserveEvaluation("reference", "error", 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("llm_judge", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("reference", "error")))
}

// A nil Metrics must be a no-op so code paths can observe unconditionally.
func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTechniqueRun("baseline", "success", 1)
	m.ObserveEvaluation("llm_judge", "success", 1)
	m.ObserveQuery("success")
	m.ObserveIngestedChunks(3)
	m.TechniqueRunStarted()
	m.TechniqueRunFinished()
}

func TestGaugeTracksActiveRuns(t *testing.T) {
	m := newTestMetrics(t)

	m.TechniqueRunStarted()
	m.TechniqueRunStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveTechniqueRuns))
	m.TechniqueRunFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveTechniqueRuns))
}

func TestObserveQueryAndIngest(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveQuery("success")
	m.ObserveQuery("success")
	m.ObserveQuery("rejected")
	m.ObserveIngestedChunks(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("rejected")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.IngestedChunksTotal))
}
