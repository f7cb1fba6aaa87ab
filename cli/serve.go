package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/habitly/habitd/routes"
	"github.com/habitly/habitd/tasks"
	"github.com/habitly/habitd/utils"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	NoJobs bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the decay and reminder jobs",
		Long: `Run the HTTP API. Unless --no-jobs is set the process also runs the
daily streak decay, the per-minute reminder dispatch and the reminder
delivery workers.

Example:
  habitd serve
  habitd serve --no-jobs`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoJobs, "no-jobs", false, "serve HTTP only; run jobs elsewhere")

	return cmd
}

func runServe(opts *ServeOptions) error {
	e, err := bootstrap(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var onStop []func()
	if !opts.NoJobs {
		queue, _, err := startQueue(ctx, e, true)
		if err != nil {
			return err
		}
		scheduler := tasks.NewScheduler(newLocker(), e.loc, e.log, decayJob(e), dispatchJob(e, queue))
		scheduler.Start(ctx)
		onStop = append(onStop, scheduler.Stop, queue.Close)
	}

	r := routes.SetupRouter(routes.NewDeps(e.db, e.loc, e.log))
	addr := ":" + e.cfg.AppPort

	if e.cfg.TLSCertFile != "" && e.cfg.TLSKeyFile != "" {
		e.log.Info("starting server (tls, graceful)", zap.String("addr", addr), zap.Bool("jobs", !opts.NoJobs))
		err = utils.GraceServerTLS(addr, e.cfg.TLSCertFile, e.cfg.TLSKeyFile, r, onStop...)
	} else {
		e.log.Info("starting server (graceful)", zap.String("addr", addr), zap.Bool("jobs", !opts.NoJobs))
		err = utils.GraceServer(addr, r, onStop...)
	}
	if err != nil {
		e.log.Error("server stopped with error", zap.Error(err))
		for _, f := range onStop {
			f()
		}
		return err
	}
	e.log.Info("server stopped")
	return nil
}
