package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

func newTasksCmd(a *app) *cobra.Command {
	var (
		count    int
		maxDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Submit slow tasks, close the pool and join it",
		Long: `tasks submits --count jobs that each sleep for a random time, closes the pool
and joins it. With --backend process every job reports the pid of the worker that ran it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}
			return a.runTasks(cmd.Context(), cmd.OutOrStdout(), count, maxDelay)
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "number of jobs")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", 3*time.Second, "upper bound of each job's sleep")
	return cmd
}

func (a *app) runTasks(ctx context.Context, w io.Writer, count int, maxDelay time.Duration) error {
	p, err := newPool[workload.Job, workload.Report](a, "tasks")
	if err != nil {
		return err
	}
	defer p.Terminate()

	_, _ = bold.Fprintf(w, "Parent process %d\n", os.Getpid())

	futures := make([]*pool.Future[workload.Report], 0, count)
	for i := range count {
		f, err := p.SubmitContext(ctx, workload.LongTask, workload.Job{Name: fmt.Sprint(i), MaxDelay: maxDelay})
		if err != nil {
			return err
		}
		futures = append(futures, f)
	}

	_, _ = fmt.Fprintln(w, "Waiting for all jobs to finish...")
	start := time.Now()
	p.Close()
	if err := p.JoinContext(ctx); err != nil {
		return err
	}
	_, _ = green.Fprintf(w, "All jobs finished in %s\n", formatDuration(time.Since(start)))

	table := newTable(w, "Job", "PID", "Slept", "State")
	for _, f := range futures {
		r, err := f.Get()
		if err != nil {
			_ = table.Append(fmt.Sprint(f.ID()), "-", red.Sprint(err.Error()), coloredState(f.State()))
			continue
		}
		_ = table.Append(r.Name, fmt.Sprint(r.PID), formatDuration(r.Elapsed), coloredState(f.State()))
	}
	renderTable(w, table)
	return nil
}
