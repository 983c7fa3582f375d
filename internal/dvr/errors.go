package dvr

import (
	"errors"
	"fmt"

	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
)

var (
	// ErrConfiguration marks a malformed job or schedule, e.g. an end not after its start.
	ErrConfiguration = errors.New("configuration error")
	// ErrTiming marks a window that is already over or leaves nothing to record.
	ErrTiming = errors.New("timing error")
	// ErrInvalidArguments marks a direct record request with a bad argument combination.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// JobError ties a failure to the job it belongs to.
type JobError struct {
	JobID string
	// Index is the position of the record in the configuration file.
	Index     int
	Output    string
	StreamURL string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s (%s from %s): %v", e.JobID, e.Output, pnet.SanitizeURL(e.StreamURL), e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func timingErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTiming, fmt.Sprintf(format, args...))
}

func argumentErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
}
