// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dispatch fans one query out over a set of techniques, bounds each
// run with a watchdog timeout, and persists the results as one batch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hwk-1212/rag-eval-project/services/embedding"
	"github.com/hwk-1212/rag-eval-project/services/llm"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/index"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/observability"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/store"
	"github.com/hwk-1212/rag-eval-project/services/orchestrator/techniques"
)

// Dispatcher runs comparison queries. One Dispatcher serves the whole
// process; per-request state lives on the stack of Run.
type Dispatcher struct {
	registry *techniques.Registry
	index    index.VectorIndex
	embedder embedding.Client
	llm      llm.LLMClient
	store    store.Store
}

// NewDispatcher wires a dispatcher from its long-lived collaborators.
func NewDispatcher(registry *techniques.Registry, idx index.VectorIndex, embedder embedding.Client, llmClient llm.LLMClient, st store.Store) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		index:    idx,
		embedder: embedder,
		llm:      llmClient,
		store:    st,
	}
}

// Available returns the registered technique names, sorted.
func (d *Dispatcher) Available() []string {
	return d.registry.Available()
}

// boundRun couples a constructed technique with its recorder so the
// watchdog can snapshot a partial trace after a timeout.
type boundRun struct {
	technique techniques.Technique
	recorder  *techniques.Recorder
}

// Run executes the request: every technique answers the same query against
// the same document scope, results come back in request order, and all
// results are persisted as QA records in one batch.
//
// Technique failures are data on the results; Run itself errors only on an
// invalid request (bad input, unknown technique name).
func (d *Dispatcher) Run(ctx context.Context, req *datatypes.QueryRequest) (*datatypes.QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := datatypes.ParseOptions(req.RagConfig)

	// Construct everything up front: an unknown technique rejects the whole
	// request before any work starts.
	runs := make([]boundRun, len(req.Techniques))
	for i, name := range req.Techniques {
		rec := techniques.NewRecorder()
		tk := &techniques.Toolkit{
			Index:       d.index,
			Embedder:    d.embedder,
			LLM:         d.llm,
			Recorder:    rec,
			DocumentIDs: req.DocumentIDs,
			Options:     opts,
		}
		tech, err := d.registry.Construct(name, tk)
		if err != nil {
			return nil, err
		}
		runs[i] = boundRun{technique: tech, recorder: rec}
	}

	session, persistOK := d.ensureSession(ctx, req)

	slog.Info("Dispatching query",
		"session_id", session.ID,
		"techniques", req.Techniques,
		"document_count", len(req.DocumentIDs),
		"max_concurrency", opts.MaxConcurrency,
	)

	results := make([]datatypes.TechniqueResult, len(runs))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrency)
	for i := range runs {
		i := i
		g.Go(func() error {
			observability.DefaultMetrics.TechniqueRunStarted()
			defer observability.DefaultMetrics.TechniqueRunFinished()
			res := d.runOne(groupCtx, runs[i], req.Query, opts)
			status := "success"
			if res.ErrorKind != "" {
				status = res.ErrorKind
			}
			observability.DefaultMetrics.ObserveTechniqueRun(res.TechniqueName, status, res.TotalTime)
			results[i] = *res
			return nil
		})
	}
	// Workers never return errors; failures land on the results.
	_ = g.Wait()

	resp := &datatypes.QueryResponse{
		SessionID: session.ID,
		Query:     req.Query,
		Results:   results,
		Timestamp: time.Now().UTC(),
	}

	recordIDs, err := d.persistResults(ctx, session.ID, req.Query, results)
	if err != nil || !persistOK {
		if err != nil {
			slog.Error("Failed to persist QA records", "session_id", session.ID, "error", err)
		}
		resp.PersistenceFailed = true
		return resp, nil
	}
	resp.RecordIDs = recordIDs
	return resp, nil
}

// runOne executes a single technique under the per-technique watchdog. The
// technique runs in its own goroutine; if the deadline passes first, the run
// context is canceled and a timeout result carries the partial trace.
func (d *Dispatcher) runOne(ctx context.Context, run boundRun, query string, opts datatypes.QueryOptions) *datatypes.TechniqueResult {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	done := make(chan *datatypes.TechniqueResult, 1)
	go func() {
		done <- run.technique.Answer(runCtx, query, opts.TopK)
	}()

	timer := time.NewTimer(opts.PerTechniqueTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-timer.C:
		cancel()
		slog.Warn("Technique timed out",
			"technique", run.technique.Name(),
			"timeout", opts.PerTechniqueTimeout,
		)
		return d.abortedResult(run, start, datatypes.ErrKindTimeout,
			fmt.Sprintf("technique exceeded %s deadline", opts.PerTechniqueTimeout))
	case <-ctx.Done():
		cancel()
		return d.abortedResult(run, start, datatypes.ErrKindCanceled, "request canceled")
	}
}

// abortedResult builds the synthetic result for a run the watchdog cut off.
// The partial trace recorded so far is preserved.
func (d *Dispatcher) abortedResult(run boundRun, start time.Time, kind, message string) *datatypes.TechniqueResult {
	return &datatypes.TechniqueResult{
		TechniqueName:   run.technique.Name(),
		RetrievedChunks: []datatypes.RetrievedChunk{},
		Trace:           run.recorder.Snapshot(),
		TotalTime:       time.Since(start).Seconds(),
		ErrorKind:       kind,
		ErrorMessage:    message,
	}
}

// ensureSession resolves the request's session, creating one when the
// request names none. Session persistence failures degrade to
// persistence_failed on the response instead of failing the query.
func (d *Dispatcher) ensureSession(ctx context.Context, req *datatypes.QueryRequest) (*datatypes.Session, bool) {
	now := time.Now().UTC()
	if req.SessionID == "" {
		session := &datatypes.Session{
			ID:         uuid.NewString(),
			Title:      datatypes.Preview(req.Query, 50),
			CreateTime: now,
			UpdateTime: now,
		}
		if err := d.store.CreateSession(ctx, session); err != nil {
			slog.Error("Failed to create session", "error", err)
			return session, false
		}
		return session, true
	}

	if err := d.store.TouchSession(ctx, req.SessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			session := &datatypes.Session{
				ID:         req.SessionID,
				Title:      datatypes.Preview(req.Query, 50),
				CreateTime: now,
				UpdateTime: now,
			}
			if createErr := d.store.CreateSession(ctx, session); createErr != nil {
				slog.Error("Failed to create session", "session_id", req.SessionID, "error", createErr)
				return session, false
			}
			return session, true
		}
		slog.Error("Failed to touch session", "session_id", req.SessionID, "error", err)
		return &datatypes.Session{ID: req.SessionID}, false
	}
	return &datatypes.Session{ID: req.SessionID}, true
}

// persistResults writes one QA record per technique result as a single
// batch and returns the record IDs in result order.
func (d *Dispatcher) persistResults(ctx context.Context, sessionID, query string, results []datatypes.TechniqueResult) ([]string, error) {
	now := time.Now().UTC()
	records := make([]datatypes.QARecord, len(results))
	ids := make([]string, len(results))
	for i, res := range results {
		id := uuid.NewString()
		ids[i] = id
		records[i] = datatypes.QARecord{
			ID:         id,
			SessionID:  sessionID,
			Query:      query,
			CreateTime: now,
			Result:     res,
		}
	}
	if err := d.store.SaveQARecords(ctx, records); err != nil {
		return nil, err
	}
	return ids, nil
}
