// Package cmd contains all Cobra commands for paiCortex.
//
// The root command launches the TUI. Login happens inside the TUI unless
// the configuration (or SNOWFLAKE_* environment) already carries complete
// credentials. The subcommands are non-interactive and need those
// credentials up front.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/applog"
	"github.com/DachengChen/paiCortex/config"
	"github.com/DachengChen/paiCortex/transcript"
	"github.com/DachengChen/paiCortex/tui"
	"github.com/DachengChen/paiCortex/warehouse"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	modelFlag  string
	loginForm  bool

	// cfg is loaded before any command runs.
	cfg        *config.Config
	logCleanup = func() error { return nil }

	// Swapped in tests.
	openSession = warehouse.Open
	newAnalyst  = analyst.New
)

var rootCmd = &cobra.Command{
	Use:   "paicortex",
	Short: "Chat with Snowflake Cortex Analyst from the terminal",
	Long: `paiCortex is a terminal front-end for Snowflake Cortex Analyst:
  • Ask questions in natural language against a semantic view
  • Generated SQL runs in the warehouse and shows as a table or chart
  • Suggested follow-up questions and verified-query badges
  • Conversations are archived locally

Run 'paicortex' to start the TUI with a login screen.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded

		// The TUI owns the terminal; everything else also logs to stderr.
		_, cleanup := applog.Setup(cfg.Log.File, applog.ParseLevel(cfg.Log.Level), cmd != cmd.Root())
		logCleanup = cleanup
		slog.Debug("config loaded", "command", cmd.Name(), "driver", cfg.Warehouse.Driver, "analyst", cfg.Analyst.Mode)
		return nil
	},
	// Running with no subcommand launches the TUI.
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := config.NewProfileStore()
		if err != nil {
			slog.Warn("profiles unavailable", "error", err)
		}

		var store *transcript.Store
		if cfg.Transcripts.Enabled {
			if store, err = transcript.Open(cfg.Transcripts.Path); err != nil {
				slog.Warn("transcripts disabled", "error", err)
				store = nil
			} else {
				defer store.Close()
			}
		}

		return tui.Start(tui.Options{
			Config:      cfg,
			Profiles:    profiles,
			Transcripts: store,
			Model:       modelFlag,
			LoginForm:   loginForm,
		})
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.paicortex/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	flags.StringVarP(&modelFlag, "model", "m", "", "semantic view to use (DB.SCHEMA.VIEW)")
	rootCmd.Flags().BoolVar(&loginForm, "login-form", false, "always show the login form")

	rootCmd.AddCommand(askCmd, modelsCmd, historyCmd, initCmd)
}

// Execute runs the root command. Ctrl+C cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer func() { _ = logCleanup() }()
	return rootCmd.ExecuteContext(ctx)
}

// connect opens a session from the configuration alone.
func connect(ctx context.Context) (warehouse.Session, error) {
	if !cfg.Implicit() {
		return nil, fmt.Errorf("no credentials configured: set SNOWFLAKE_ACCOUNT, SNOWFLAKE_USER and SNOWFLAKE_PASSWORD, or run paicortex to log in")
	}
	s, err := openSession(ctx, cfg.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return s, nil
}
