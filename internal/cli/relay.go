package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

func newRelayCmd(a *app) *cobra.Command {
	var (
		values   []string
		maxPause time.Duration
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a producer and an endless consumer, then terminate the pool",
		Long: `relay runs a producer task and a consumer task that share a channel. The consumer
never returns on its own, so once the producer is done the pool is terminated and the
consumer's future ends cancelled. Both tasks are closures and always run on goroutines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRelay(cmd.Context(), cmd.OutOrStdout(), values, maxPause)
		},
	}

	cmd.Flags().StringSliceVar(&values, "values", []string{"A", "B", "C"}, "values the producer sends")
	cmd.Flags().DurationVar(&maxPause, "max-pause", time.Second, "upper bound of the producer's pause between values")
	return cmd
}

func (a *app) runRelay(ctx context.Context, w io.Writer, values []string, maxPause time.Duration) error {
	// The consumer and producer share memory, so they cannot move to worker processes.
	p, err := pool.New[[]string, int](
		pool.WithName("relay"),
		pool.WithLogger(a.logger),
		pool.WithWorkerCount(2),
	)
	if err != nil {
		return err
	}
	defer p.Terminate()

	relay := workload.NewRelay(len(values), maxPause)

	var mu sync.Mutex
	seen := make([]string, 0, len(values))

	consumer, err := p.SubmitContext(ctx, func(ctx context.Context, _ []string) (int, error) {
		return relay.Consume(ctx, func(v string) {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
			_, _ = fmt.Fprintf(w, "Get %s from queue.\n", v)
		})
	}, nil)
	if err != nil {
		return err
	}

	producer, err := p.SubmitContext(ctx, func(ctx context.Context, vs []string) (int, error) {
		return relay.Produce(ctx, vs)
	}, values)
	if err != nil {
		return err
	}

	sent, err := producer.GetWithContext(ctx)
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	// Give the consumer a moment to drain the channel before terminating it.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= sent {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	p.Terminate()
	if err := p.JoinContext(ctx); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	printSection(w, "Relay finished",
		fmt.Sprintf("producer: %s, sent %d", coloredState(producer.State()), sent),
		fmt.Sprintf("consumer: %s, received %s", coloredState(consumer.State()), strings.Join(seen, ",")))
	return nil
}
