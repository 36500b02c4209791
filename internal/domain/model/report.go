package model

import (
	"sync"
	"time"
)

// EntryKind distinguishes tenant outcomes from export job outcomes.
type EntryKind string

const (
	EntryKindTenant EntryKind = "tenant"
	EntryKindJob    EntryKind = "job"
)

// EntryStatus is the outcome of one processed unit.
type EntryStatus string

const (
	EntryStatusOK        EntryStatus = "ok"
	EntryStatusSkipped   EntryStatus = "skipped"
	EntryStatusError     EntryStatus = "error"
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusTransient EntryStatus = "transient"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
)

// ReportEntry is one unit's outcome within a run.
type ReportEntry struct {
	Kind   EntryKind   `json:"kind"`
	ID     string      `json:"id"`
	Status EntryStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// RunReport aggregates the outcome of one sync or sweep invocation. It is safe
// for concurrent Add calls.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Entries    []ReportEntry `json:"entries"`

	mu sync.Mutex
}

// NewRunReport starts an empty report.
func NewRunReport(runID string, startedAt time.Time) *RunReport {
	return &RunReport{RunID: runID, StartedAt: startedAt, Entries: []ReportEntry{}}
}

// Add appends an entry.
func (r *RunReport) Add(e ReportEntry) {
	r.mu.Lock()
	r.Entries = append(r.Entries, e)
	r.mu.Unlock()
}

// Merge appends every entry of other.
func (r *RunReport) Merge(other *RunReport) {
	if other == nil {
		return
	}
	other.mu.Lock()
	entries := append([]ReportEntry(nil), other.Entries...)
	other.mu.Unlock()

	r.mu.Lock()
	r.Entries = append(r.Entries, entries...)
	r.mu.Unlock()
}

// Finish stamps the finish time.
func (r *RunReport) Finish(at time.Time) {
	r.mu.Lock()
	r.FinishedAt = &at
	r.mu.Unlock()
}

// Counts tallies entries by status.
func (r *RunReport) Counts() map[EntryStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[EntryStatus]int)
	for _, e := range r.Entries {
		out[e.Status]++
	}
	return out
}

// Find returns the first entry of kind with id.
func (r *RunReport) Find(kind EntryKind, id string) (ReportEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Entries {
		if e.Kind == kind && e.ID == id {
			return e, true
		}
	}
	return ReportEntry{}, false
}
