package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

func newStreamCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Print gcd results in completion order",
		Example: `  poolme stream
  poolme stream --timeout 2s --backend process`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStream(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), workload.DefaultPairs, timeout, quiet)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop streaming after this long (0 = no limit)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "hide the progress bar")
	return cmd
}

func (a *app) runStream(ctx context.Context, w, progress io.Writer, pairs []workload.Pair, timeout time.Duration, quiet bool) error {
	p, err := newPool[workload.Pair, int64](a, "stream")
	if err != nil {
		return err
	}
	defer p.Terminate()

	start := time.Now()
	futures, err := p.SubmitAll(ctx, workload.GCD, pairs)
	if err != nil {
		return err
	}
	byID := make(map[int64]workload.Pair, len(futures))
	for i, f := range futures {
		byID[f.ID()] = pairs[i]
	}

	streamCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	bar := newBar(progress, len(futures), "gcd", quiet)
	table := newTable(w, "Order", "Future", "Pair", "Result", "At")

	order := 0
	var streamErr error
	for f, err := range pool.AsCompleted(streamCtx, futures) {
		if err != nil {
			streamErr = err
			break
		}
		order++
		v, ferr := f.Get()
		result := fmt.Sprint(v)
		if ferr != nil {
			result = red.Sprint(ferr.Error())
		}
		_ = table.Append(fmt.Sprint(order), fmt.Sprint(f.ID()), byID[f.ID()].String(), result, formatDuration(time.Since(start)))
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	printSection(w, "Results in completion order")
	renderTable(w, table)

	if streamErr != nil {
		if errors.Is(streamErr, pool.ErrTimeout) {
			_, _ = yellow.Fprintf(w, "Timed out: %v\n", streamErr)
			return nil
		}
		return streamErr
	}
	return nil
}
