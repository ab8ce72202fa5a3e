// Copyright (C) 2026 RAG Eval Project Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package techniques

import (
	"fmt"
	"sync"
	"time"

	"github.com/hwk-1212/rag-eval-project/services/orchestrator/datatypes"
)

// maxTraceBytes bounds the approximate serialized size of one run's trace.
const maxTraceBytes = 64 * 1024

// maxDetailStringLen bounds any single string stored in event details.
const maxDetailStringLen = 300

// Recorder collects TraceEvents for one technique run. Each run gets its
// own recorder; techniques write from a single goroutine, but the fan-out
// dispatcher may snapshot a recorder from its watchdog while the technique
// is still running, so access is guarded by a mutex.
type Recorder struct {
	mu        sync.Mutex
	events    []datatypes.TraceEvent
	seq       int
	bytes     int
	truncated bool
}

// NewRecorder returns an empty recorder. Sequence numbers start at 0.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Log appends one TraceEvent. String details longer than 300 characters are
// truncated, and once the trace reaches its size bound further events are
// dropped after a final trace_truncated marker.
func (r *Recorder) Log(stepName, message string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.truncated {
		return
	}

	clean := make(map[string]any, len(details))
	size := len(stepName) + len(message) + 64
	for k, v := range details {
		if s, ok := v.(string); ok && len(s) > maxDetailStringLen {
			v = datatypes.Preview(s, maxDetailStringLen)
		}
		clean[k] = v
		size += len(k) + len(fmt.Sprintf("%v", v))
	}
	if len(clean) == 0 {
		clean = nil
	}

	if r.bytes+size > maxTraceBytes {
		r.truncated = true
		r.events = append(r.events, datatypes.TraceEvent{
			Sequence:  r.seq,
			StepName:  "trace_truncated",
			Message:   "trace size limit reached, dropping further events",
			Timestamp: time.Now().UTC(),
		})
		r.seq++
		return
	}

	r.events = append(r.events, datatypes.TraceEvent{
		Sequence:  r.seq,
		StepName:  stepName,
		Message:   message,
		Details:   clean,
		Timestamp: time.Now().UTC(),
	})
	r.seq++
	r.bytes += size
}

// Snapshot returns a copy of the events recorded so far.
func (r *Recorder) Snapshot() []datatypes.TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]datatypes.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
