package recorder

import (
	"errors"
	"fmt"

	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
)

var (
	// ErrTransport marks failures reaching or reading the stream endpoint.
	ErrTransport = errors.New("transport error")
	// ErrWrite marks failures opening or writing the sink.
	ErrWrite = errors.New("write error")
	// ErrInvalidDuration is returned for a non-positive recording duration.
	ErrInvalidDuration = errors.New("recording duration must be positive")
	// ErrInvalidURL is returned for endpoints that are not http or https URLs.
	ErrInvalidURL = errors.New("invalid stream url")
)

// TransportError describes a failed GET or an interrupted body read.
// StatusCode is set when the server answered with a non-2xx status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	u := pnet.SanitizeURL(e.URL)
	if e.StatusCode != 0 {
		return fmt.Sprintf("stream %s: unexpected status %d", u, e.StatusCode)
	}
	return fmt.Sprintf("stream %s: %v", u, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// WriteError describes a sink that could not be opened or written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrWrite}
	}
	return []error{ErrWrite, e.Err}
}
