package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/habitly/habitd/services"
)

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		at      string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Queue reminders due at the given minute",
		Long: `Queue a notification for every reminder whose time matches the
current hour and minute. With the memory backend the command delivers the
queued notifications before it exits; with AMQP it only publishes them.

Example:
  habitd dispatch
  habitd dispatch --at 2024-03-01T08:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer e.log.Sync() //nolint:errcheck

			now, err := parseAt(at, e.loc)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			queue, memory, err := startQueue(ctx, e, false)
			if err != nil {
				return err
			}
			defer queue.Close()

			n, err := services.NewReminderDispatcher(e.db, queue, e.loc, e.log).DispatchDueReminders(ctx, now)
			if err != nil {
				return err
			}
			if memory != nil && n > 0 {
				if timeout <= 0 {
					timeout = deliveryWait(e)
				}
				wctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				if err := memory.Wait(wctx); err != nil {
					e.log.Warn("gave up waiting for reminder delivery", zap.Error(err))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d reminder(s) for %s\n", n, now.Format("15:04"))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "match reminders as of this RFC3339 time (default now)")
	cmd.Flags().DurationVar(&timeout, "wait", 0, "how long to wait for in-process delivery (default: the full retry budget)")

	return cmd
}

// deliveryWait covers every retry of the configured policy plus time for the
// sends themselves. Anything still queued when it runs out is dead-lettered.
func deliveryWait(e *env) time.Duration {
	return retryPolicy(e).Budget() + time.Minute
}
