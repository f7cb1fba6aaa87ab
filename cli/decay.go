package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

// NewDecayCommand creates the decay command, a one-shot streak sweep for
// deployments that schedule it externally.
func NewDecayCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Reset streaks of goals that missed the previous period",
		Long: `Run one streak decay sweep and print the report as JSON.

Example:
  habitd decay
  habitd decay --at 2024-03-01T00:05:00Z`,
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

			unlock, ok, err := newLocker().TryLock(ctx, decayJobName, time.Hour)
			if err != nil {
				return err
			}
			if !ok {
				e.log.Warn("decay sweep already running elsewhere, skipping")
				return nil
			}
			defer unlock()

			report, err := services.NewDecaySweeper(e.db, e.loc, e.log).DecayInactiveGoals(ctx, now)
			if err != nil {
				return err
			}
			if report.Reset > 0 {
				utils.InvalidateByPrefix(ctx, utils.DashboardCachePrefix)
			}
			e.log.Info("decay sweep finished", zap.Time("at", now), zap.Int("reset", report.Reset))
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this RFC3339 time (default now)")

	return cmd
}
