package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamvcr/internal/dvr"
)

type recordOptions struct {
	url      string
	output   string
	start    string
	end      string
	duration string
	timezone string

	durationSet bool
}

func newRecordCmd(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	opts := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record --url URL --output FILE (--start TIME --end TIME | --duration SECONDS)",
		Short: "Record a stream once",
		Long: `Record a stream into a file, either for a fixed duration or within a
start/end window. When the window starts in the future the command waits for
it. Date-times are free-form and read in --timezone (or STREAMVCR_TIMEZONE)
unless they carry an offset; start and end must agree on which.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig("", flags, stderr)
			if err != nil {
				return err
			}
			if opts.timezone != "" {
				cfg.Timezone = opts.timezone
			}
			loc, err := cfg.Location()
			if err != nil {
				return usageError(fmt.Errorf("timezone %q: %w", cfg.Timezone, err))
			}

			opts.durationSet = cmd.Flags().Changed("duration")
			req, err := opts.request(loc)
			if err != nil {
				return usageError(err)
			}

			res, err := dvr.NewScheduler(newRecorder(cfg)).RecordOnce(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Recorded %d bytes, saved in: %s\n", res.Bytes, req.Output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.url, "url", "u", "", "stream URL")
	f.StringVarP(&opts.output, "output", "o", "", "output file")
	f.StringVarP(&opts.start, "start", "s", "", "record start date-time")
	f.StringVarP(&opts.end, "end", "e", "", "record end date-time")
	f.StringVarP(&opts.duration, "duration", "d", "", "record duration in seconds, or a Go duration such as 1h30m")
	f.StringVar(&opts.timezone, "timezone", "", "IANA time zone used to read --start and --end")
	return cmd
}

// request converts flag values; the combination rules are left to RecordOnce.
// Start and end keep an explicit offset so RecordOnce can reject a window
// that mixes zones.
func (o *recordOptions) request(loc *time.Location) (dvr.OnceRequest, error) {
	req := dvr.OnceRequest{StreamURL: o.url, Output: o.output}
	var err error
	if o.start != "" {
		if req.Start, err = dvr.ParseTimeZone(o.start, loc); err != nil {
			return req, fmt.Errorf("%w: --start: %v", dvr.ErrInvalidArguments, err)
		}
	}
	if o.end != "" {
		if req.End, err = dvr.ParseTimeZone(o.end, loc); err != nil {
			return req, fmt.Errorf("%w: --end: %v", dvr.ErrInvalidArguments, err)
		}
	}
	if o.durationSet || o.duration != "" {
		req.HasDuration = true
		if req.Duration, err = parseDuration(o.duration); err != nil {
			return req, fmt.Errorf("%w: --duration: %v", dvr.ErrInvalidArguments, err)
		}
	}
	return req, nil
}

// parseDuration accepts a plain number of seconds or a Go duration string.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
