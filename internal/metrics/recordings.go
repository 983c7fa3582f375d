// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for recordings and the
// batch scheduler.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvcr_jobs_total",
		Help: "Scheduled jobs by terminal state",
	}, []string{"state"})

	recordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvcr_recordings_total",
		Help: "Finished recorder invocations by outcome and stop reason",
	}, []string{"outcome", "stop_reason"})

	recordedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvcr_recorded_bytes_total",
		Help: "Bytes written to recording sinks",
	})

	recordingsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamvcr_recordings_active",
		Help: "Recorder invocations currently running",
	})

	recordingDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamvcr_recording_duration_seconds",
		Help:    "Wall-clock duration of recorder invocations",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
	})

	queueWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamvcr_dispatch_wait_seconds",
		Help:    "Time a queued job waited for a free worker slot",
		Buckets: prometheus.ExponentialBuckets(0.001, 10, 8),
	})
)

// IncJob counts a job reaching a terminal state.
// state ∈ {completed,failed,skipped,rejected}; anything else is "unknown".
func IncJob(state string) {
	jobsTotal.WithLabelValues(normalizeJobStateLabel(state)).Inc()
}

// RecordingStarted marks one recorder invocation as active.
func RecordingStarted() {
	recordingsActive.Inc()
}

// RecordingFinished records the outcome of one recorder invocation.
// outcome ∈ {success,transport_error,write_error,error}
// stop_reason ∈ {deadline,eof,none}; forced to "none" unless outcome is "success".
func RecordingFinished(outcome, stopReason string, bytes int64, elapsed time.Duration) {
	recordingsActive.Dec()
	o := normalizeOutcomeLabel(outcome)
	recordingsTotal.WithLabelValues(o, normalizeStopReasonLabel(o, stopReason)).Inc()
	if bytes > 0 {
		recordedBytesTotal.Add(float64(bytes))
	}
	recordingDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveDispatchWait records how long a job waited for a pool slot.
func ObserveDispatchWait(d time.Duration) {
	queueWaitSeconds.Observe(d.Seconds())
}

func normalizeJobStateLabel(state string) string {
	switch s := strings.ToLower(strings.TrimSpace(state)); s {
	case "completed", "failed", "skipped", "rejected":
		return s
	default:
		return "unknown"
	}
}

func normalizeOutcomeLabel(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "success", "transport_error", "write_error":
		return o
	default:
		return "error"
	}
}

func normalizeStopReasonLabel(outcome, reason string) string {
	if outcome != "success" {
		return "none"
	}
	switch r := strings.ToLower(strings.TrimSpace(reason)); r {
	case "deadline", "eof":
		return r
	default:
		return "none"
	}
}
