package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/config"
	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/utils"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the habitd command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "habitd",
		Short: "Habit tracking service",
		Long:  "habitd serves the habit tracking API and runs the streak decay and reminder jobs.",
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDecayCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs once configuration is loaded.
type env struct {
	cfg config.AppConfig
	db  *gorm.DB
	loc *time.Location
	log *zap.Logger
}

func bootstrap(opts *RootOptions) (*env, error) {
	cfg := config.Load()
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := utils.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	db := config.InitDatabase(models.All()...)
	return &env{cfg: cfg, db: db, loc: loc, log: utils.Logger}, nil
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update the database schema",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer e.log.Sync() //nolint:errcheck
			e.log.Info("schema migrated", zap.String("driver", e.cfg.DBDriver))
			return nil
		},
	}
}
