package cmd

import (
	"errors"
	"fmt"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/transcript"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List archived conversations, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Transcripts.Enabled {
			return errors.New("transcripts are disabled (transcripts.enabled)")
		}
		store, err := transcript.Open(cfg.Transcripts.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			r, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("transcript %s: %w", args[0], err)
			}
			fmt.Fprintf(out, "%s · %s · %s\n", r.Model, r.User, r.StartedAt.Local().Format("2006-01-02 15:04"))
			for _, m := range r.Messages {
				if m.Role == analyst.RoleUser {
					fmt.Fprintf(out, "\n> %s\n", m.PlainText())
					continue
				}
				fmt.Fprintln(out)
				printMessage(out, m)
			}
			return nil
		}

		records, err := store.List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No archived conversations.")
			return nil
		}
		tbl := table.New().
			Border(lipgloss.HiddenBorder()).
			Headers("ID", "UPDATED", "MODEL", "MESSAGES", "TITLE")
		for _, r := range records {
			tbl.Row(r.ID, r.UpdatedAt.Local().Format("2006-01-02 15:04"), r.Model, fmt.Sprint(len(r.Messages)), r.Title())
		}
		fmt.Fprintln(out, tbl.String())
		return nil
	},
}
