package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/conversation"
	"github.com/DachengChen/paiCortex/query"
	"github.com/DachengChen/paiCortex/transcript"
	"github.com/DachengChen/paiCortex/warehouse"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	askRun     bool
	askMaxRows int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask Cortex Analyst one question and print the answer",
	Example: `  paicortex ask -m SALES.PUBLIC.REVENUE "What was revenue by region last quarter?"
  paicortex ask --run "How many orders were placed yesterday?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return conversation.ErrEmptyPrompt
		}

		sess, err := connect(ctx)
		if err != nil {
			return err
		}
		defer closeSession(sess)

		model, err := resolveModel(ctx, sess)
		if err != nil {
			return err
		}
		an, err := newAnalyst(cfg.Analyst, sess)
		if err != nil {
			return err
		}

		opts := []conversation.Option{conversation.WithModel(model)}
		if cfg.Transcripts.Enabled {
			store, err := transcript.Open(cfg.Transcripts.Path)
			if err != nil {
				slog.Warn("transcripts disabled", "error", err)
			} else {
				defer store.Close()
				opts = append(opts, conversation.WithRecorder(store.Recorder(sess.Info().User)))
			}
		}
		conv := conversation.New(an, opts...)

		reply, err := conv.Submit(ctx, question)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printMessage(out, reply)
		for _, w := range conv.Snapshot().Warnings {
			fmt.Fprintf(out, "⚠ %s\n", w.Message)
		}
		if conv.TakeErrorNotification() {
			return errors.New("analyst request failed")
		}
		if !askRun {
			return nil
		}

		bridge, err := query.New(sess, 0)
		if err != nil {
			return err
		}
		for _, item := range reply.Content {
			sql, ok := item.(analyst.SQL)
			if !ok {
				continue
			}
			t, err := bridge.Execute(ctx, sql.Statement)
			if err != nil {
				fmt.Fprintf(out, "\nSQL Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out)
			printTable(out, t, askMaxRows)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askRun, "run", false, "execute the generated SQL and print the result")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 50, "rows to print per result")
}

// resolveModel picks the --model flag, then analyst.semantic_view, then
// the only discoverable semantic view.
func resolveModel(ctx context.Context, sess warehouse.Session) (string, error) {
	if modelFlag != "" {
		return modelFlag, nil
	}
	if cfg.Analyst.SemanticView != "" {
		return cfg.Analyst.SemanticView, nil
	}
	models, err := sess.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("discover semantic views: %w", err)
	}
	switch len(models) {
	case 0:
		return "", errors.New("no semantic views found")
	case 1:
		return models[0], nil
	default:
		return "", fmt.Errorf("%d semantic views found, choose one with --model: %s", len(models), strings.Join(models, ", "))
	}
}

func closeSession(s warehouse.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		slog.Warn("close session", "error", err)
	}
}

func printMessage(w io.Writer, m analyst.Message) {
	for _, item := range m.Content {
		switch v := item.(type) {
		case analyst.Text:
			fmt.Fprintln(w, v.Text)
		case analyst.Suggestions:
			for i, s := range v.Suggestions {
				fmt.Fprintf(w, "  [%d] %s\n", i+1, s)
			}
		case analyst.SQL:
			fmt.Fprintln(w)
			if v.Confidence != nil && v.Confidence.VerifiedQueryUsed != nil {
				fmt.Fprintf(w, "-- verified query: %s\n", v.Confidence.VerifiedQueryUsed.Name)
			}
			fmt.Fprintln(w, strings.TrimRight(v.Statement, "\n"))
		}
	}
	if m.RequestID != "" {
		fmt.Fprintf(w, "\nrequest id: %s\n", m.RequestID)
	}
}

func printTable(w io.Writer, t *warehouse.Table, maxRows int) {
	if t.Empty() {
		fmt.Fprintln(w, "No data returned.")
		return
	}
	rows := t.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(t.Columns...).
		Rows(rows...)
	fmt.Fprintln(w, tbl.String())
	fmt.Fprintln(w, t.Status())
}
