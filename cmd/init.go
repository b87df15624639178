package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/DachengChen/paiCortex/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the current settings to a config file",
	Long: `Write the effective settings (defaults, config file and SNOWFLAKE_* /
PAICORTEX_* environment) to a YAML config file. Passwords are never written.`,
	Example: `  SNOWFLAKE_ACCOUNT=myorg-acct SNOWFLAKE_USER=alice paicortex init
  paicortex init ./paicortex.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}
