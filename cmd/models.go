package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the semantic views visible to the configured role",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := connect(ctx)
		if err != nil {
			return err
		}
		defer closeSession(sess)

		models, err := sess.ListModels(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(models) == 0 {
			fmt.Fprintln(out, "No semantic views found.")
			return nil
		}
		for _, m := range models {
			fmt.Fprintln(out, m)
		}
		return nil
	},
}
