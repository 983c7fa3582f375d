// SPDX-License-Identifier: MIT

package dvr

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/renameio/v2"
)

// Report summarizes one Watch run.
type Report struct {
	RunID       string      `json:"run_id"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Concurrency int         `json:"concurrency"`
	StartPolicy string      `json:"start_policy"`
	Completed   int         `json:"completed"`
	Failed      int         `json:"failed"`
	Skipped     int         `json:"skipped"`
	Rejected    int         `json:"rejected"`
	Jobs        []JobStatus `json:"jobs"`

	// Errors holds rejected and failed jobs in configuration order.
	Errors []*JobError `json:"-"`
}

// OK reports whether no job failed and no record was rejected.
func (r Report) OK() bool {
	return r.Failed == 0 && r.Rejected == 0
}

// Err joins every job error, or returns nil.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, je := range r.Errors {
		errs[i] = je
	}
	return errors.Join(errs...)
}

func (s *Scheduler) buildReport(runID string, sched *Schedule, startedAt time.Time, failures []*JobError) Report {
	snap := s.board.Snapshot()
	r := Report{
		RunID:       runID,
		StartedAt:   startedAt,
		FinishedAt:  s.clock.Now(),
		Concurrency: sched.Concurrency,
		StartPolicy: sched.StartPolicy,
		Jobs:        snap.Jobs,
		Completed:   snap.Counts[StateCompleted],
		Failed:      snap.Counts[StateFailed],
		Skipped:     snap.Counts[StateSkipped],
		Rejected:    snap.Counts[StateRejected],
	}

	byIndex := make(map[int]*JobError, len(sched.Rejected)+len(failures))
	for _, je := range sched.Rejected {
		byIndex[je.Index] = je
	}
	for _, je := range failures {
		if je != nil {
			byIndex[je.Index] = je
		}
	}
	for _, st := range snap.Jobs {
		if je, ok := byIndex[st.Index]; ok {
			r.Errors = append(r.Errors, je)
		}
	}
	return r
}

// WriteReport stores r as indented JSON at path. The file is replaced
// atomically so readers never see a partial report.
func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending report: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}
