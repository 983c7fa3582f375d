package dvr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamvcr/internal/config"
	"github.com/ManuGH/streamvcr/internal/recorder"
)

var watchNow = time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)

func testJob(t *testing.T, name string, start, end time.Time) Job {
	t.Helper()
	return Job{
		ID:         "job-" + name,
		StreamURL:  "http://radio.example/" + name,
		Output:     name + ".mp3",
		OutputPath: filepath.Join("/rec", name+".mp3"),
		Start:      start,
		End:        end,
	}
}

func testSchedule(concurrency int, policy string, jobs ...Job) *Schedule {
	for i := range jobs {
		jobs[i].Index = i
	}
	return &Schedule{Location: time.UTC, OutputDir: "/rec", Concurrency: concurrency, StartPolicy: policy, Jobs: jobs}
}

func TestWatch_SkipsStartedJobsAndComputesDurations(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("Record", mock.Anything, recorder.Request{URL: "http://radio.example/future", Path: "/rec/future.mp3", Duration: time.Minute}).
		Return(recorder.Result{Bytes: 10, StopReason: recorder.StopDeadline}, nil).Once()
	rec.On("Record", mock.Anything, recorder.Request{URL: "http://radio.example/now", Path: "/rec/now.mp3", Duration: 30 * time.Second}).
		Return(recorder.Result{Bytes: 20, StopReason: recorder.StopEOF}, nil).Once()

	sched := testSchedule(16, config.StartPolicyImmediate,
		testJob(t, "past", watchNow.Add(-time.Minute), watchNow.Add(time.Hour)),
		testJob(t, "future", watchNow.Add(time.Minute), watchNow.Add(2*time.Minute)),
		testJob(t, "now", watchNow, watchNow.Add(30*time.Second)),
	)

	s := NewScheduler(rec, WithClock(newFakeClock(watchNow)))
	report := s.Watch(context.Background(), sched)

	rec.AssertExpectations(t)
	rec.AssertNumberOfCalls(t, "Record", 2)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())

	require.Len(t, report.Jobs, 3)
	assert.Equal(t, StateSkipped, report.Jobs[0].State)
	assert.Equal(t, StateCompleted, report.Jobs[1].State)
	assert.Equal(t, int64(10), report.Jobs[1].Bytes)
	assert.Equal(t, "eof", report.Jobs[2].StopReason)
	assert.NotEmpty(t, report.RunID)
}

func TestWatch_ConcurrencyCeiling(t *testing.T) {
	var active, peak, calls atomic.Int32
	rec := recorderFunc(func(_ context.Context, _ recorder.Request) (recorder.Result, error) {
		calls.Add(1)
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return recorder.Result{StopReason: recorder.StopDeadline}, nil
	})

	jobs := make([]Job, 10)
	for i := range jobs {
		jobs[i] = testJob(t, fmt.Sprintf("j%d", i), watchNow.Add(time.Minute), watchNow.Add(time.Hour))
	}
	report := NewScheduler(rec, WithClock(newFakeClock(watchNow))).
		Watch(context.Background(), testSchedule(3, config.StartPolicyImmediate, jobs...))

	assert.Equal(t, int32(10), calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 10, report.Completed)
}

func TestWatch_DispatchesInInsertionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	rec := recorderFunc(func(_ context.Context, req recorder.Request) (recorder.Result, error) {
		mu.Lock()
		order = append(order, req.URL)
		mu.Unlock()
		return recorder.Result{}, nil
	})

	sched := testSchedule(1, config.StartPolicyImmediate,
		testJob(t, "late", watchNow.Add(3*time.Hour), watchNow.Add(4*time.Hour)),
		testJob(t, "early", watchNow.Add(time.Hour), watchNow.Add(2*time.Hour)),
		testJob(t, "middle", watchNow.Add(2*time.Hour), watchNow.Add(3*time.Hour)),
	)
	NewScheduler(rec, WithClock(newFakeClock(watchNow))).Watch(context.Background(), sched)

	assert.Equal(t, []string{
		"http://radio.example/late",
		"http://radio.example/early",
		"http://radio.example/middle",
	}, order)
}

func TestWatch_FailureIsIsolated(t *testing.T) {
	rec := recorderFunc(func(_ context.Context, req recorder.Request) (recorder.Result, error) {
		if req.URL == "http://radio.example/down" {
			return recorder.Result{}, &recorder.TransportError{URL: req.URL, StatusCode: 503}
		}
		return recorder.Result{Bytes: 1}, nil
	})

	sched := testSchedule(2, config.StartPolicyImmediate,
		testJob(t, "up1", watchNow.Add(time.Minute), watchNow.Add(time.Hour)),
		testJob(t, "down", watchNow.Add(time.Minute), watchNow.Add(time.Hour)),
		testJob(t, "up2", watchNow.Add(time.Minute), watchNow.Add(time.Hour)),
	)
	report := NewScheduler(rec, WithClock(newFakeClock(watchNow))).Watch(context.Background(), sched)

	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.OK())
	require.Len(t, report.Errors, 1)

	je := report.Errors[0]
	assert.Equal(t, "/rec/down.mp3", je.Output)
	assert.Equal(t, "http://radio.example/down", je.StreamURL)
	assert.ErrorIs(t, je, recorder.ErrTransport)
	assert.ErrorIs(t, report.Err(), recorder.ErrTransport)
	assert.Contains(t, report.Jobs[1].Error, "503")
}

func TestWatch_RejectedRecordsDoNotStopOthers(t *testing.T) {
	cfg := testConfig(t,
		config.RecordConfig{StreamURL: "http://radio.example/bad", Output: "bad.mp3", Start: "2030-01-01 11:00", End: "2030-01-01 10:00"},
		config.RecordConfig{StreamURL: "http://radio.example/good", Output: "good.mp3", Start: "2030-01-01 10:00", End: "2030-01-01 11:00"},
	)
	sched, err := BuildSchedule(cfg)
	require.NoError(t, err)

	rec := new(mockRecorder)
	rec.On("Record", mock.Anything, mock.MatchedBy(func(req recorder.Request) bool {
		return req.URL == "http://radio.example/good" && req.Duration == time.Hour
	})).Return(recorder.Result{Bytes: 5}, nil).Once()

	report := NewScheduler(rec, WithClock(newFakeClock(watchNow))).Watch(context.Background(), sched)

	rec.AssertExpectations(t)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Rejected)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], ErrConfiguration)
	require.Len(t, report.Jobs, 2)
	assert.Equal(t, StateRejected, report.Jobs[0].State)
	assert.Equal(t, StateCompleted, report.Jobs[1].State)
}

func TestWatch_WaitPolicyHoldsJobsUntilStart(t *testing.T) {
	clock := newFakeClock(watchNow)
	calls := make(chan recorder.Request, 4)
	rec := recorderFunc(func(_ context.Context, req recorder.Request) (recorder.Result, error) {
		calls <- req
		return recorder.Result{}, nil
	})

	sched := testSchedule(4, config.StartPolicyWait,
		testJob(t, "second", watchNow.Add(10*time.Second), watchNow.Add(20*time.Second)),
		testJob(t, "first", watchNow.Add(5*time.Second), watchNow.Add(20*time.Second)),
	)

	done := make(chan Report, 1)
	go func() { done <- NewScheduler(rec, WithClock(clock)).Watch(context.Background(), sched) }()

	assert.Equal(t, 5*time.Second, clock.waitTimer(t))
	assert.Empty(t, calls, "nothing is dispatched before its start")
	clock.Advance(5 * time.Second)

	first := <-calls
	assert.Equal(t, "http://radio.example/first", first.URL)
	assert.Equal(t, 15*time.Second, first.Duration)

	assert.Equal(t, 5*time.Second, clock.waitTimer(t))
	clock.Advance(5 * time.Second)

	second := <-calls
	assert.Equal(t, "http://radio.example/second", second.URL)
	assert.Equal(t, 10*time.Second, second.Duration)

	report := <-done
	assert.Equal(t, 2, report.Completed)
}

func TestWatch_WaitPolicyWindowClosedWhileQueued(t *testing.T) {
	clock := newFakeClock(watchNow)
	started := make(chan struct{})
	release := make(chan struct{})
	rec := recorderFunc(func(_ context.Context, req recorder.Request) (recorder.Result, error) {
		if req.URL == "http://radio.example/long" {
			close(started)
			<-release
		}
		return recorder.Result{}, nil
	})

	sched := testSchedule(1, config.StartPolicyWait,
		testJob(t, "long", watchNow.Add(time.Second), watchNow.Add(time.Hour)),
		testJob(t, "short", watchNow.Add(time.Second), watchNow.Add(2*time.Second)),
	)

	done := make(chan Report, 1)
	go func() { done <- NewScheduler(rec, WithClock(clock)).Watch(context.Background(), sched) }()

	clock.waitTimer(t)
	clock.Advance(time.Second)
	<-started
	clock.Advance(5 * time.Second)
	close(release)

	report := <-done
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], ErrTiming)
	assert.Equal(t, "/rec/short.mp3", report.Errors[0].Output)
}

func TestWatch_CancelledContextFailsWithoutRecording(t *testing.T) {
	rec := new(mockRecorder)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := testSchedule(2, config.StartPolicyImmediate,
		testJob(t, "a", watchNow.Add(time.Minute), watchNow.Add(time.Hour)),
		testJob(t, "b", watchNow.Add(time.Minute), watchNow.Add(time.Hour)),
	)
	report := NewScheduler(rec, WithClock(newFakeClock(watchNow))).Watch(ctx, sched)

	rec.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	assert.Equal(t, 2, report.Failed)
	for _, je := range report.Errors {
		assert.True(t, errors.Is(je, context.Canceled))
	}
}

func TestWatch_PublishesToStatusBoard(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})
	rec := recorderFunc(func(_ context.Context, _ recorder.Request) (recorder.Result, error) {
		close(inFlight)
		<-release
		return recorder.Result{Bytes: 42, StopReason: recorder.StopDeadline}, nil
	})

	sched := testSchedule(1, config.StartPolicyImmediate,
		testJob(t, "live", watchNow.Add(time.Minute), watchNow.Add(time.Hour)))
	s := NewScheduler(rec, WithClock(newFakeClock(watchNow)))
	board := s.Board()

	done := make(chan Report, 1)
	go func() { done <- s.Watch(context.Background(), sched) }()

	<-inFlight
	st, ok := board.Get("job-live")
	require.True(t, ok)
	assert.Equal(t, StateDispatched, st.State)
	assert.Equal(t, (59 * time.Minute).Seconds(), st.DurationSeconds)
	close(release)

	report := <-done
	st, _ = board.Get("job-live")
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, int64(42), st.Bytes)
	assert.Equal(t, report.RunID, board.Snapshot().RunID)
}
