package dvr

import (
	"context"
	"strings"
	"time"

	xglog "github.com/ManuGH/streamvcr/internal/log"
	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
	"github.com/ManuGH/streamvcr/internal/recorder"
)

// OnceRequest is a single direct recording. Either Start and End, or
// Duration, must be set. Zero times mean absent. A zero Duration counts as
// given only when HasDuration is set.
type OnceRequest struct {
	StreamURL   string
	Output      string
	Start       time.Time
	End         time.Time
	Duration    time.Duration
	HasDuration bool
}

// RecordOnce validates req, waits for the window to open if needed and
// records it. Argument and timing errors are returned before any network
// activity.
func (s *Scheduler) RecordOnce(ctx context.Context, req OnceRequest) (recorder.Result, error) {
	duration, wait, err := s.resolveOnce(req)
	if err != nil {
		return recorder.Result{}, err
	}

	logger := xglog.WithContext(ctx, s.logger).With().
		Str(xglog.FieldStreamURL, pnet.SanitizeURL(req.StreamURL)).
		Str(xglog.FieldOutputPath, req.Output).
		Logger()

	if wait {
		delay := req.Start.Sub(s.clock.Now())
		logger.Info().
			Str(xglog.FieldEvent, "record.waiting").
			Time(xglog.FieldStart, req.Start).
			Dur("delay", delay).
			Msgf("the recording will start in %s", delay.Round(time.Second))
		if err := sleepUntil(ctx, s.clock, req.Start); err != nil {
			return recorder.Result{}, err
		}
	}

	return s.rec.Record(ctx, recorder.Request{URL: req.StreamURL, Path: req.Output, Duration: duration})
}

// resolveOnce applies the argument rules and returns the duration to record
// and whether the caller has to wait for Start first.
func (s *Scheduler) resolveOnce(req OnceRequest) (time.Duration, bool, error) {
	if strings.TrimSpace(req.StreamURL) == "" {
		return 0, false, argumentErrorf("a stream url is required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return 0, false, argumentErrorf("an output file is required")
	}

	hasStart, hasEnd := !req.Start.IsZero(), !req.End.IsZero()
	hasDuration := req.HasDuration || req.Duration != 0
	switch {
	case (hasStart || hasEnd) && hasDuration:
		return 0, false, argumentErrorf("give either a start/end window or a duration, not both")
	case hasStart != hasEnd:
		return 0, false, argumentErrorf("start and end must be given together")
	case !hasStart && !hasDuration:
		return 0, false, argumentErrorf("need either a start/end window or a duration")
	}

	if hasDuration {
		d := req.Duration.Truncate(time.Second)
		if d <= 0 {
			return 0, false, timingErrorf("duration %s is not a positive number of seconds", req.Duration)
		}
		return d, false, nil
	}

	if req.Start.Location().String() != req.End.Location().String() {
		return 0, false, argumentErrorf("start (%s) and end (%s) are in different time zones",
			req.Start.Location(), req.End.Location())
	}
	if !req.End.After(req.Start) {
		return 0, false, configErrorf("end %s is not after start %s",
			req.End.Format(time.RFC3339), req.Start.Format(time.RFC3339))
	}

	now := s.clock.Now()
	if !req.End.After(now) {
		return 0, false, timingErrorf("end time %s is in the past", req.End.Format(time.RFC3339))
	}
	job := Job{Start: req.Start, End: req.End}
	d := job.Duration(now)
	if d <= 0 {
		return 0, false, timingErrorf("nothing left to record before %s", req.End.Format(time.RFC3339))
	}
	return d, req.Start.After(now), nil
}
