// SPDX-License-Identifier: MIT

package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by recorder and scheduler spans.
const (
	StreamURLKey      = "stream.url"
	OutputPathKey     = "output.path"
	RecordDurationKey = "record.duration_ms"
	RecordBytesKey    = "record.bytes"
	RecordStopKey     = "record.stop_reason"
	HTTPStatusCodeKey = "http.status_code"

	JobIDKey    = "job.id"
	JobStateKey = "job.state"
	RunIDKey    = "run.id"

	ScheduleJobsKey        = "schedule.jobs"
	ScheduleRejectedKey    = "schedule.rejected"
	ScheduleConcurrencyKey = "schedule.concurrency"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RecordingAttributes describes one recorder invocation.
func RecordingAttributes(streamURL, outputPath string, d time.Duration) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StreamURLKey, streamURL),
		attribute.String(OutputPathKey, outputPath),
		attribute.Int64(RecordDurationKey, d.Milliseconds()),
	}
}

// ResultAttributes describes what a recorder invocation produced.
func ResultAttributes(bytes int64, stopReason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(RecordBytesKey, bytes),
		attribute.String(RecordStopKey, stopReason),
	}
}

// JobAttributes creates job-related span attributes. Empty values are omitted.
func JobAttributes(runID, jobID, state string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if runID != "" {
		attrs = append(attrs, attribute.String(RunIDKey, runID))
	}
	if jobID != "" {
		attrs = append(attrs, attribute.String(JobIDKey, jobID))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(JobStateKey, state))
	}
	return attrs
}

// ScheduleAttributes describes a batch run.
func ScheduleAttributes(jobs, rejected, concurrency int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ScheduleJobsKey, jobs),
		attribute.Int(ScheduleRejectedKey, rejected),
		attribute.Int(ScheduleConcurrencyKey, concurrency),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
