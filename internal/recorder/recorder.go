// SPDX-License-Identifier: MIT

// Package recorder captures an HTTP stream into a file for a bounded duration.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/streamvcr/internal/log"
	"github.com/ManuGH/streamvcr/internal/metrics"
	"github.com/ManuGH/streamvcr/internal/platform/fs"
	"github.com/ManuGH/streamvcr/internal/platform/httpx"
	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
	"github.com/ManuGH/streamvcr/internal/telemetry"
)

const (
	// DefaultChunkSize is the read granularity of the capture loop.
	DefaultChunkSize = 1024
	// DefaultStallGrace bounds how long a silent source may hold a recording past its duration.
	DefaultStallGrace = 30 * time.Second

	progressInterval = 30 * time.Second
)

// StopReason tells why a successful recording ended.
type StopReason string

const (
	StopDeadline StopReason = "deadline"
	StopEOF      StopReason = "eof"
)

// Request describes a single capture.
type Request struct {
	URL      string
	Path     string
	Duration time.Duration
}

// Result is what a capture produced. It is also returned, partially filled,
// alongside errors.
type Result struct {
	Bytes      int64
	Elapsed    time.Duration
	StopReason StopReason
}

// Recorder pulls streams over HTTP. It is safe for concurrent use.
type Recorder struct {
	client     *http.Client
	chunkSize  int
	stallGrace time.Duration
	now        func() time.Time
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClient sets the HTTP client used for GET requests.
func WithClient(c *http.Client) Option {
	return func(r *Recorder) {
		if c != nil {
			r.client = c
		}
	}
}

// WithChunkSize overrides the read buffer size.
func WithChunkSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithStallGrace overrides the time allowed past the duration before a
// silent source is abandoned.
func WithStallGrace(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.stallGrace = d
		}
	}
}

// WithNow overrides the wall clock used to measure elapsed time.
func WithNow(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a Recorder with a stream client from httpx unless WithClient is given.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		chunkSize:  DefaultChunkSize,
		stallGrace: DefaultStallGrace,
		now:        time.Now,
		logger:     xglog.WithComponent("recorder"),
		tracer:     telemetry.Tracer("streamvcr/recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = httpx.NewStreamClient(0)
	}
	return r
}

// Record captures req.URL into req.Path until req.Duration has elapsed or the
// source ends. The sink is truncated before the request is issued and partial
// output is left in place on failure.
func (r *Recorder) Record(ctx context.Context, req Request) (res Result, err error) {
	if req.Duration <= 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidDuration, req.Duration)
	}
	if _, perr := pnet.ParseStreamURL(req.URL); perr != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidURL, perr)
	}

	ctx, span := r.tracer.Start(ctx, "recorder.record",
		trace.WithAttributes(telemetry.RecordingAttributes(pnet.SanitizeURL(req.URL), req.Path, req.Duration)...))
	defer span.End()

	logger := xglog.WithContext(ctx, r.logger).With().
		Str(xglog.FieldStreamURL, pnet.SanitizeURL(req.URL)).
		Str(xglog.FieldOutputPath, req.Path).
		Logger()

	metrics.RecordingStarted()
	defer func() {
		metrics.RecordingFinished(outcomeOf(err), string(res.StopReason), res.Bytes, res.Elapsed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(telemetry.ErrorAttributes(outcomeOf(err))...)
			logger.Error().Err(err).
				Str(xglog.FieldEvent, "recording.failed").
				Int64(xglog.FieldBytes, res.Bytes).
				Dur(xglog.FieldElapsed, res.Elapsed).
				Msg("recording failed")
			return
		}
		span.SetAttributes(telemetry.ResultAttributes(res.Bytes, string(res.StopReason))...)
		logger.Info().
			Str(xglog.FieldEvent, "recording.finished").
			Int64(xglog.FieldBytes, res.Bytes).
			Dur(xglog.FieldElapsed, res.Elapsed).
			Str(xglog.FieldStopReason, string(res.StopReason)).
			Msgf("recorded %d bytes, saved in %s", res.Bytes, req.Path)
	}()

	started := r.now()
	logger.Info().
		Str(xglog.FieldEvent, "recording.started").
		Dur(xglog.FieldDuration, req.Duration).
		Msgf("recording for %s", req.Duration)

	if err := fs.EnsureParent(req.Path); err != nil {
		return res, &WriteError{Path: req.Path, Err: err}
	}
	// #nosec G304 -- path is confined by the caller
	f, err := os.OpenFile(req.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return res, &WriteError{Path: req.Path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: req.Path, Err: cerr}
		}
	}()

	// A source that goes silent is abandoned StallGrace after the duration.
	reqCtx, cancel := context.WithTimeout(ctx, req.Duration+r.stallGrace)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return res, &TransportError{URL: req.URL, Err: err}
	}
	resp, err := r.client.Do(httpReq)
	if err != nil {
		res.Elapsed = r.now().Sub(started)
		return res, &TransportError{URL: req.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Elapsed = r.now().Sub(started)
		return res, &TransportError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	err = r.copyUntil(resp.Body, f, req, started, &res, logger)
	return res, err
}

// copyUntil is the capture loop. Every non-empty chunk is written before
// the elapsed time is checked, so the last chunk read is never dropped.
func (r *Recorder) copyUntil(src io.Reader, dst io.Writer, req Request, started time.Time, res *Result, logger zerolog.Logger) error {
	buf := make([]byte, r.chunkSize)
	progress := rate.Sometimes{Interval: progressInterval}

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				res.Elapsed = r.now().Sub(started)
				return &WriteError{Path: req.Path, Err: werr}
			}
			res.Bytes += int64(n)
		}

		res.Elapsed = r.now().Sub(started)
		if res.Elapsed >= req.Duration {
			res.StopReason = StopDeadline
			return nil
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				res.StopReason = StopEOF
				return nil
			}
			return &TransportError{URL: req.URL, Err: rerr}
		}

		progress.Do(func() {
			logger.Debug().
				Str(xglog.FieldEvent, "recording.progress").
				Int64(xglog.FieldBytes, res.Bytes).
				Dur(xglog.FieldElapsed, res.Elapsed).
				Msg("recording in progress")
		})
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrWrite):
		return "write_error"
	default:
		return "error"
	}
}
