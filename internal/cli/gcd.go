package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

const (
	modeMap    = "map"
	modeSubmit = "submit"
)

func newGCDCmd(a *app) *cobra.Command {
	var (
		pairsFile string
		mode      string
		noSerial  bool
	)

	cmd := &cobra.Command{
		Use:   "gcd",
		Short: "Compute brute-force gcds serially and on the pool",
		Example: `  poolme gcd
  poolme gcd --mode submit --backend process --workers 4
  poolme gcd --pairs pairs.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != modeMap && mode != modeSubmit {
				return fmt.Errorf("unknown mode %q, want %s or %s", mode, modeMap, modeSubmit)
			}

			pairs := workload.DefaultPairs
			if pairsFile != "" {
				loaded, err := workload.LoadPairs(pairsFile)
				if err != nil {
					return err
				}
				pairs = loaded
			}
			return a.runGCD(cmd.Context(), cmd.OutOrStdout(), pairs, mode, !noSerial)
		},
	}

	cmd.Flags().StringVar(&pairsFile, "pairs", "", "YAML file with gcd pairs")
	cmd.Flags().StringVar(&mode, "mode", modeMap, "how to hand work to the pool: map or submit")
	cmd.Flags().BoolVar(&noSerial, "no-serial", false, "skip the serial baseline")
	return cmd
}

func (a *app) runGCD(ctx context.Context, w io.Writer, pairs []workload.Pair, mode string, serial bool) error {
	var serialTime time.Duration
	if serial {
		start := time.Now()
		for _, p := range pairs {
			if _, err := workload.GCD(ctx, p); err != nil {
				return err
			}
		}
		serialTime = time.Since(start)
	}

	p, err := newPool[workload.Pair, int64](a, "gcd")
	if err != nil {
		return err
	}
	defer p.Terminate()

	start := time.Now()
	var results []int64
	switch mode {
	case modeMap:
		results, err = p.Map(ctx, workload.GCD, pairs)
	case modeSubmit:
		results, err = submitAndCollect(ctx, p, pairs)
	}
	if err != nil {
		return err
	}
	poolTime := time.Since(start)

	p.Close()
	if err := p.JoinContext(ctx); err != nil {
		return err
	}

	printSection(w, fmt.Sprintf("GCD (%s, %d %s workers)", mode, p.Workers(), a.settings.Backend))
	table := newTable(w, "#", "Pair", "GCD")
	for i, pair := range pairs {
		_ = table.Append(fmt.Sprint(i+1), pair.String(), fmt.Sprint(results[i]))
	}
	renderTable(w, table)

	timing := newTable(w, "Run", "Time", "Speedup")
	if serial {
		_ = timing.Append("serial", formatDuration(serialTime), "baseline")
		_ = timing.Append("pool", formatDuration(poolTime), speedup(serialTime, poolTime))
	} else {
		_ = timing.Append("pool", formatDuration(poolTime), "-")
	}
	renderTable(w, timing)
	return nil
}

// submitAndCollect submits every pair on its own and reads the results back in
// submission order.
func submitAndCollect(ctx context.Context, p *pool.Pool[workload.Pair, int64], pairs []workload.Pair) ([]int64, error) {
	futures := make([]*pool.Future[int64], 0, len(pairs))
	for _, pair := range pairs {
		f, err := p.SubmitContext(ctx, workload.GCD, pair)
		if err != nil {
			return nil, err
		}
		futures = append(futures, f)
	}

	results := make([]int64, len(futures))
	for i, f := range futures {
		v, err := f.GetWithContext(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}
