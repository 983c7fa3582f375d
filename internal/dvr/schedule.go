package dvr

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/streamvcr/internal/config"
	xglog "github.com/ManuGH/streamvcr/internal/log"
	pfs "github.com/ManuGH/streamvcr/internal/platform/fs"
	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
)

// Schedule is the in-memory result of loading one configuration. It is built
// once per watch and never persisted.
type Schedule struct {
	Location    *time.Location
	OutputDir   string
	Concurrency int
	StartPolicy string
	// Jobs holds the valid records in configuration order.
	Jobs []Job
	// Rejected holds one ConfigurationError per invalid record.
	Rejected []*JobError
}

// BuildSchedule parses and validates every record of cfg. An invalid record
// is rejected on its own; only schedule-wide problems return an error.
func BuildSchedule(cfg config.AppConfig) (*Schedule, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, configErrorf("timezone %q: %v", cfg.Timezone, err)
	}
	if strings.TrimSpace(cfg.OutputDirectory) == "" {
		return nil, configErrorf("output_directory is required")
	}

	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = config.DefaultConcurrency
	}
	if concurrency < 0 {
		return nil, configErrorf("concurrency must be positive, got %d", concurrency)
	}

	policy := cfg.StartPolicy
	switch policy {
	case "":
		policy = config.StartPolicyImmediate
	case config.StartPolicyImmediate, config.StartPolicyWait:
	default:
		return nil, configErrorf("unknown start_policy %q", policy)
	}

	s := &Schedule{
		Location:    loc,
		OutputDir:   cfg.OutputDirectory,
		Concurrency: concurrency,
		StartPolicy: policy,
	}

	logger := xglog.WithComponent("dvr.schedule")
	claimed := make(map[string]string, len(cfg.Records))
	for i, rc := range cfg.Records {
		id := uuid.NewString()
		job, err := buildJob(i, id, rc, loc, cfg.OutputDirectory)
		if err != nil {
			s.Rejected = append(s.Rejected, &JobError{
				JobID:     id,
				Index:     i,
				Output:    rc.Output,
				StreamURL: rc.StreamURL,
				Err:       err,
			})
			continue
		}
		if other, ok := claimed[job.OutputPath]; ok {
			logger.Warn().
				Str(xglog.FieldEvent, "schedule.output_shared").
				Str(xglog.FieldJobID, job.ID).
				Str("other_job_id", other).
				Str(xglog.FieldOutputPath, job.OutputPath).
				Msg("two records write the same output file")
		} else {
			claimed[job.OutputPath] = job.ID
		}
		s.Jobs = append(s.Jobs, job)
	}
	return s, nil
}

func buildJob(index int, id string, rc config.RecordConfig, loc *time.Location, outputDir string) (Job, error) {
	if _, err := pnet.ParseStreamURL(rc.StreamURL); err != nil {
		return Job{}, configErrorf("stream_url: %v", err)
	}
	outPath, err := pfs.ConfineRelPath(outputDir, rc.Output)
	if err != nil {
		return Job{}, configErrorf("output: %v", err)
	}
	start, err := ParseTime(rc.Start, loc)
	if err != nil {
		return Job{}, configErrorf("start: %v", err)
	}
	end, err := ParseTime(rc.End, loc)
	if err != nil {
		return Job{}, configErrorf("end: %v", err)
	}
	if !end.After(start) {
		return Job{}, configErrorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Job{
		ID:         id,
		Index:      index,
		StreamURL:  strings.TrimSpace(rc.StreamURL),
		Output:     rc.Output,
		OutputPath: outPath,
		Start:      start,
		End:        end,
	}, nil
}

// Evaluation is the outcome of checking one job against a point in time.
type Evaluation struct {
	Job   Job
	State State
	// Duration is the recording length the job would get; zero when skipped.
	Duration time.Duration
}

// Evaluate checks every job against now, in configuration order. A job whose
// start is already past is skipped; every other job is queued with
// End - max(now, Start) to record.
func (s *Schedule) Evaluate(now time.Time) []Evaluation {
	out := make([]Evaluation, 0, len(s.Jobs))
	for _, job := range s.Jobs {
		if job.Started(now) {
			out = append(out, Evaluation{Job: job, State: StateSkipped})
			continue
		}
		out = append(out, Evaluation{Job: job, State: StateQueued, Duration: job.Duration(now)})
	}
	return out
}
