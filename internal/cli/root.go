// Package cli implements the poolme command line: gcd, wait, stream, tasks and relay
// demos running on a futurepool.Pool.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/utkarsh5026/futurepool/pool"
)

// app is the state shared by every subcommand once flags and config are loaded.
type app struct {
	v        *viper.Viper
	cfgFile  string
	settings Settings
	logger   *zap.Logger
	registry *pool.Registry
}

// NewRootCmd builds the poolme command tree. reg must be the registry the binary
// hands to pool.ServeWorker so that process workers know the same functions.
func NewRootCmd(reg *pool.Registry) *cobra.Command {
	a := &app{v: viper.New(), registry: reg}

	root := &cobra.Command{
		Use:   "poolme",
		Short: "Run demo workloads on a worker pool",
		Long: `poolme runs CPU and sleep bound demo workloads on a futurepool worker pool,
either on goroutines or on re-executed worker processes.

Settings come from flags, POOLME_* environment variables and an optional YAML config file,
in that order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	addSettingsFlags(flags)
	_ = a.v.BindPFlags(flags)

	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newGCDCmd(a),
		newWaitCmd(a),
		newStreamCmd(a),
		newTasksCmd(a),
		newRelayCmd(a),
	)
	return root
}

// Execute runs the command tree until it finishes or the process is interrupted.
func Execute(reg *pool.Registry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd(reg).ExecuteContext(ctx)
}

func (a *app) load(*cobra.Command, []string) error {
	s, err := loadSettings(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}

	a.settings = s
	a.logger = logger
	return nil
}

// poolOptions turns the loaded settings into pool options for a pool called name.
func (a *app) poolOptions(name string) []pool.Option {
	s := a.settings
	opts := []pool.Option{
		pool.WithName(name),
		pool.WithLogger(a.logger),
		pool.WithRetryPolicy(s.Retries, s.RetryDelay),
	}
	if s.Workers > 0 {
		opts = append(opts, pool.WithWorkerCount(s.Workers))
	}
	if s.QueueCapacity > 0 {
		opts = append(opts, pool.WithQueueCapacity(s.QueueCapacity))
	}
	if s.RateLimit > 0 {
		opts = append(opts, pool.WithRateLimit(s.RateLimit, s.Burst))
	}
	if s.Backend == backendProcess {
		opts = append(opts, pool.WithProcessBackend(a.registry))
	}
	return opts
}

func newPool[T any, R any](a *app, name string, extra ...pool.Option) (*pool.Pool[T, R], error) {
	p, err := pool.New[T, R](append(a.poolOptions(name), extra...)...)
	if err != nil {
		return nil, fmt.Errorf("start %s pool: %w", a.settings.Backend, err)
	}
	return p, nil
}
