// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamvcr/internal/dvr"
	pnet "github.com/ManuGH/streamvcr/internal/platform/net"
)

func newValidateCmd(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate CONFIGURATION",
		Short: "Check a schedule file and show what watch would do now",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0], flags, stderr)
			if err != nil {
				return err
			}
			sched, err := dvr.BuildSchedule(cfg)
			if err != nil {
				return usageError(err)
			}
			return printEvaluation(stdout, sched, time.Now())
		},
	}
}

// printEvaluation writes one line per record in configuration order.
func printEvaluation(w io.Writer, sched *dvr.Schedule, now time.Time) error {
	type row struct {
		index int
		line  string
	}
	rows := make([]row, 0, len(sched.Jobs)+len(sched.Rejected))
	for _, ev := range sched.Evaluate(now) {
		j := ev.Job
		dur := "-"
		if ev.State == dvr.StateQueued {
			dur = ev.Duration.String()
		}
		rows = append(rows, row{j.Index, fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%s",
			j.Index, ev.State, j.Start.Format(time.RFC3339), j.End.Format(time.RFC3339), dur, j.OutputPath, pnet.SanitizeURL(j.StreamURL))})
	}
	for _, je := range sched.Rejected {
		rows = append(rows, row{je.Index, fmt.Sprintf("%d\t%s\t-\t-\t-\t%s\t%v",
			je.Index, dvr.StateRejected, je.Output, je.Err)})
	}
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].index < rows[b].index })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tSTATE\tSTART\tEND\tDURATION\tOUTPUT\tSTREAM / ERROR")
	for _, r := range rows {
		_, _ = fmt.Fprintln(tw, r.line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(sched.Rejected) > 0 {
		return failure(fmt.Errorf("%d of %d records rejected", len(sched.Rejected), len(sched.Jobs)+len(sched.Rejected)))
	}
	return nil
}
