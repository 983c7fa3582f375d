package dvr

import (
	"sort"
	"sync"
	"time"

	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
)

// JobStatus is the externally visible view of one job.
type JobStatus struct {
	JobID           string    `json:"job_id"`
	Index           int       `json:"index"`
	StreamURL       string    `json:"stream_url"`
	Output          string    `json:"output"`
	OutputPath      string    `json:"output_path,omitempty"`
	Start           time.Time `json:"start,omitzero"`
	End             time.Time `json:"end,omitzero"`
	State           State     `json:"state"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	ElapsedSeconds  float64   `json:"elapsed_seconds,omitempty"`
	Bytes           int64     `json:"bytes"`
	StopReason      string    `json:"stop_reason,omitempty"`
	Error           string    `json:"error,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BoardSnapshot is a point-in-time copy of a StatusBoard.
type BoardSnapshot struct {
	RunID  string        `json:"run_id"`
	Jobs   []JobStatus   `json:"jobs"`
	Counts map[State]int `json:"counts"`
}

// StatusBoard tracks job states of the current run for the ops server.
// Workers only write to it; readers get copies.
type StatusBoard struct {
	mu    sync.RWMutex
	runID string
	jobs  map[string]*JobStatus
	now   func() time.Time
}

// NewStatusBoard returns an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{jobs: make(map[string]*JobStatus), now: time.Now}
}

// Reset clears the board for a new run.
func (b *StatusBoard) Reset(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runID = runID
	b.jobs = make(map[string]*JobStatus)
}

// Track registers a job in the given state.
func (b *StatusBoard) Track(job Job, state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[job.ID] = &JobStatus{
		JobID:      job.ID,
		Index:      job.Index,
		StreamURL:  pnet.SanitizeURL(job.StreamURL),
		Output:     job.Output,
		OutputPath: job.OutputPath,
		Start:      job.Start,
		End:        job.End,
		State:      state,
		UpdatedAt:  b.now(),
	}
}

// TrackRejected registers a record that failed validation.
func (b *StatusBoard) TrackRejected(je *JobError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[je.JobID] = &JobStatus{
		JobID:     je.JobID,
		Index:     je.Index,
		StreamURL: pnet.SanitizeURL(je.StreamURL),
		Output:    je.Output,
		State:     StateRejected,
		Error:     je.Err.Error(),
		UpdatedAt: b.now(),
	}
}

// Update applies fn to a tracked job. Unknown IDs are ignored. A job in a
// terminal state keeps that state.
func (b *StatusBoard) Update(jobID string, fn func(*JobStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.jobs[jobID]
	if !ok {
		return
	}
	prev := st.State
	fn(st)
	if prev.Terminal() {
		st.State = prev
	}
	st.UpdatedAt = b.now()
}

// Snapshot returns all jobs ordered by configuration index.
func (b *StatusBoard) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := BoardSnapshot{
		RunID:  b.runID,
		Jobs:   make([]JobStatus, 0, len(b.jobs)),
		Counts: make(map[State]int),
	}
	for _, st := range b.jobs {
		snap.Jobs = append(snap.Jobs, *st)
		snap.Counts[st.State]++
	}
	sort.Slice(snap.Jobs, func(i, j int) bool { return snap.Jobs[i].Index < snap.Jobs[j].Index })
	return snap
}

// Get returns a copy of one job's status.
func (b *StatusBoard) Get(jobID string) (JobStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}
