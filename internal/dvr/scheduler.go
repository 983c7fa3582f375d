package dvr

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/streamvcr/internal/config"
	xglog "github.com/ManuGH/streamvcr/internal/log"
	"github.com/ManuGH/streamvcr/internal/metrics"
	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
	"github.com/ManuGH/streamvcr/internal/recorder"
	"github.com/ManuGH/streamvcr/internal/telemetry"
)

// Recorder is the capture engine the scheduler dispatches to.
type Recorder interface {
	Record(ctx context.Context, req recorder.Request) (recorder.Result, error)
}

// Scheduler turns a Schedule into concurrently executed recordings.
type Scheduler struct {
	rec    Recorder
	clock  Clock
	board  *StatusBoard
	logger zerolog.Logger
	tracer trace.Tracer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewScheduler creates a scheduler dispatching to rec.
func NewScheduler(rec Recorder, opts ...Option) *Scheduler {
	s := &Scheduler{
		rec:    rec,
		clock:  RealClock{},
		logger: xglog.WithComponent("dvr.scheduler"),
		tracer: telemetry.Tracer("streamvcr/dvr"),
		board:  NewStatusBoard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Board returns the status board the scheduler writes to.
func (s *Scheduler) Board() *StatusBoard { return s.board }

type queuedJob struct {
	job      Job
	duration time.Duration
}

// Watch evaluates every job of sched once against the current time and
// records the ones whose window has not started yet. A job already started
// is skipped. Failures stay with their job. Watch returns when every
// dispatched recording has returned.
func (s *Scheduler) Watch(ctx context.Context, sched *Schedule) Report {
	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)
	ctx, span := s.tracer.Start(ctx, "dvr.watch",
		trace.WithAttributes(telemetry.ScheduleAttributes(len(sched.Jobs), len(sched.Rejected), sched.Concurrency)...))
	defer span.End()

	logger := xglog.WithContext(ctx, s.logger)
	startedAt := s.clock.Now()
	s.board.Reset(runID)

	logger.Info().
		Str(xglog.FieldEvent, "watch.started").
		Int("jobs", len(sched.Jobs)).
		Int("rejected", len(sched.Rejected)).
		Int("concurrency", sched.Concurrency).
		Str("start_policy", sched.StartPolicy).
		Msg("evaluating schedule")

	failures := make([]*JobError, len(sched.Jobs))
	for _, je := range sched.Rejected {
		s.board.TrackRejected(je)
		metrics.IncJob(string(StateRejected))
		logger.Warn().Err(je.Err).
			Str(xglog.FieldEvent, "job.rejected").
			Str(xglog.FieldJobID, je.JobID).
			Str(xglog.FieldOutputPath, je.Output).
			Str(xglog.FieldStreamURL, pnet.SanitizeURL(je.StreamURL)).
			Msg("record rejected")
	}

	// Evaluate against now, once.
	ready := make([]queuedJob, 0, len(sched.Jobs))
	for _, ev := range sched.Evaluate(s.clock.Now()) {
		job := ev.Job
		s.board.Track(job, StateValidated)
		if ev.State == StateSkipped {
			s.board.Update(job.ID, func(st *JobStatus) { st.State = StateSkipped })
			metrics.IncJob(string(StateSkipped))
			logger.Info().
				Str(xglog.FieldEvent, "job.skipped").
				Str(xglog.FieldJobID, job.ID).
				Str(xglog.FieldOutputPath, job.OutputPath).
				Time(xglog.FieldStart, job.Start).
				Msg("record start is in the past, skipping")
			continue
		}
		ready = append(ready, queuedJob{job: job, duration: ev.Duration})
		s.board.Update(job.ID, func(st *JobStatus) {
			st.State = StateQueued
			st.DurationSeconds = ev.Duration.Seconds()
		})
	}

	index := make(map[string]int, len(sched.Jobs))
	for i, job := range sched.Jobs {
		index[job.ID] = i
	}

	if sched.StartPolicy == config.StartPolicyWait {
		sort.SliceStable(ready, func(i, j int) bool { return ready[i].job.Start.Before(ready[j].job.Start) })
	}

	limit := sched.Concurrency
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for _, q := range ready {
		if sched.StartPolicy == config.StartPolicyWait {
			if err := sleepUntil(ctx, s.clock, q.job.Start); err != nil {
				failures[index[q.job.ID]] = s.fail(ctx, q.job, err)
				continue
			}
		}
		queuedAt := s.clock.Now()
		slot := index[q.job.ID]
		g.Go(func() error {
			failures[slot] = s.runJob(ctx, sched.StartPolicy, q, queuedAt)
			return nil
		})
	}
	_ = g.Wait()

	report := s.buildReport(runID, sched, startedAt, failures)
	if !report.OK() {
		span.SetStatus(codes.Error, "some jobs failed or were rejected")
	}
	logger.Info().
		Str(xglog.FieldEvent, "watch.finished").
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("rejected", report.Rejected).
		Msg("schedule done")
	return report
}

// runJob executes one recording and records its outcome.
func (s *Scheduler) runJob(ctx context.Context, policy string, q queuedJob, queuedAt time.Time) *JobError {
	job := q.job
	ctx = xglog.ContextWithJobID(ctx, job.ID)
	metrics.ObserveDispatchWait(s.clock.Now().Sub(queuedAt))

	if err := ctx.Err(); err != nil {
		return s.fail(ctx, job, err)
	}

	duration := q.duration
	if policy == config.StartPolicyWait {
		duration = job.Duration(s.clock.Now())
		if duration <= 0 {
			return s.fail(ctx, job, timingErrorf("window closed at %s before a worker was free", job.End.Format(time.RFC3339)))
		}
	}

	s.board.Update(job.ID, func(st *JobStatus) {
		st.State = StateDispatched
		st.DurationSeconds = duration.Seconds()
	})

	ctx, span := s.tracer.Start(ctx, "dvr.job",
		trace.WithAttributes(telemetry.JobAttributes(xglog.RunIDFromContext(ctx), job.ID, string(StateDispatched))...))
	defer span.End()

	res, err := s.rec.Record(ctx, recorder.Request{URL: job.StreamURL, Path: job.OutputPath, Duration: duration})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		je := s.fail(ctx, job, err)
		s.board.Update(job.ID, func(st *JobStatus) {
			st.Bytes = res.Bytes
			st.ElapsedSeconds = res.Elapsed.Seconds()
		})
		return je
	}

	s.board.Update(job.ID, func(st *JobStatus) {
		st.State = StateCompleted
		st.Bytes = res.Bytes
		st.ElapsedSeconds = res.Elapsed.Seconds()
		st.StopReason = string(res.StopReason)
	})
	metrics.IncJob(string(StateCompleted))
	return nil
}

// fail marks job failed and returns its error with identity attached.
func (s *Scheduler) fail(ctx context.Context, job Job, err error) *JobError {
	je := &JobError{
		JobID:     job.ID,
		Index:     job.Index,
		Output:    job.OutputPath,
		StreamURL: job.StreamURL,
		Err:       err,
	}
	s.board.Update(job.ID, func(st *JobStatus) {
		st.State = StateFailed
		st.Error = err.Error()
	})
	metrics.IncJob(string(StateFailed))

	logger := xglog.WithContext(xglog.ContextWithJobID(ctx, job.ID), s.logger)
	evt := logger.Error()
	if errors.Is(err, context.Canceled) {
		evt = logger.Warn()
	}
	evt.Err(err).
		Str(xglog.FieldEvent, "job.failed").
		Str(xglog.FieldOutputPath, job.OutputPath).
		Str(xglog.FieldStreamURL, pnet.SanitizeURL(job.StreamURL)).
		Msg("recording job failed")
	return je
}
