package dvr

import "time"

// State is a job's position in its lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateValidated  State = "validated"
	StateSkipped    State = "skipped"
	StateQueued     State = "queued"
	StateDispatched State = "dispatched"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateRejected   State = "rejected"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateSkipped, StateCompleted, StateFailed, StateRejected:
		return true
	default:
		return false
	}
}

// Job is one validated recording window. Jobs are immutable once built.
type Job struct {
	ID string
	// Index is the position of the record in the configuration file.
	Index      int
	StreamURL  string
	Output     string
	OutputPath string
	Start      time.Time
	End        time.Time
}

// Duration is what is left of the window at now: End - max(now, Start).
func (j Job) Duration(now time.Time) time.Duration {
	from := j.Start
	if now.After(from) {
		from = now
	}
	return j.End.Sub(from)
}

// Started reports whether the window opened before now.
func (j Job) Started(now time.Time) bool {
	return now.After(j.Start)
}
