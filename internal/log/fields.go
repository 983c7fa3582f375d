package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID = "run_id"
	FieldJobID = "job_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldState     = "state"

	// Recording fields
	FieldStreamURL  = "stream_url"
	FieldOutputPath = "output_path"
	FieldBytes      = "bytes"
	FieldDuration   = "duration"
	FieldElapsed    = "elapsed"
	FieldStart      = "start"
	FieldEnd        = "end"
	FieldStopReason = "stop_reason"
	FieldStatusCode = "status_code"
)
