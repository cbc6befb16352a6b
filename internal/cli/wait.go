package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

func newWaitCmd(a *app) *cobra.Command {
	var (
		policyName string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Submit the gcd batch and wait on it with a wait policy",
		Long: `wait submits every gcd pair, prints whether each future is running or done,
waits according to --policy and prints the futures that finished.`,
		Example: `  poolme wait --policy first_completed --timeout 2s
  poolme wait --policy all_completed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			policy, ok := pool.ParseWaitPolicy(policyName)
			if !ok {
				return fmt.Errorf("unknown wait policy %q", policyName)
			}
			return a.runWait(cmd.Context(), cmd.OutOrStdout(), workload.DefaultPairs, policy, timeout)
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", pool.FirstCompleted.String(),
		"wait policy: first_completed, first_exception or all_completed")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "give up waiting after this long (0 = no limit)")
	return cmd
}

func (a *app) runWait(ctx context.Context, w io.Writer, pairs []workload.Pair, policy pool.WaitPolicy, timeout time.Duration) error {
	p, err := newPool[workload.Pair, int64](a, "wait")
	if err != nil {
		return err
	}
	defer p.Terminate()

	futures, err := p.SubmitAll(ctx, workload.GCD, pairs)
	if err != nil {
		return err
	}

	printSection(w, "Before waiting")
	printStates(w, pairs, futures)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	done, notDone := pool.Wait(waitCtx, futures, policy)
	elapsed := time.Since(start)

	printSection(w, fmt.Sprintf("Wait %s returned after %s", policy, formatDuration(elapsed)),
		fmt.Sprintf("%d done, %d not done", len(done), len(notDone)))

	table := newTable(w, "Future", "State", "Result")
	for _, f := range done {
		v, err := f.Get()
		result := fmt.Sprint(v)
		if err != nil {
			result = red.Sprint(err.Error())
		}
		_ = table.Append(fmt.Sprint(f.ID()), coloredState(f.State()), result)
	}
	renderTable(w, table)

	printSection(w, "After waiting")
	printStates(w, pairs, futures)

	// Futures left running still finish before the command returns.
	p.Close()
	return p.JoinContext(ctx)
}

func printStates(w io.Writer, pairs []workload.Pair, futures []*pool.Future[int64]) {
	table := newTable(w, "Future", "Pair", "Running", "Done", "State")
	for i, f := range futures {
		_ = table.Append(
			fmt.Sprint(f.ID()),
			pairs[i].String(),
			strconv.FormatBool(f.IsRunning()),
			strconv.FormatBool(f.IsDone()),
			coloredState(f.State()),
		)
	}
	renderTable(w, table)
}
