package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fchimpan/paddle-pilot/internal/scene"
)

func newHistoryCmd(st *rootState) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "history",
		Short: "Show recent rounds and training runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(st, limit)
		},
	}
	c.Flags().IntVarP(&limit, "limit", "l", 10, "rows to show per table")
	return c
}

var styleHeader = lipgloss.NewStyle().Bold(true)

func runHistory(st *rootState, limit int) error {
	if st.deps.OpenLedger == nil {
		return fmt.Errorf("deps.OpenLedger is nil")
	}
	if limit <= 0 {
		return fmt.Errorf("--limit must be > 0")
	}
	l, err := st.deps.OpenLedger(st.cfg.Paths.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	totals, err := l.Totals()
	if err != nil {
		return err
	}
	episodes, err := l.RecentEpisodes(limit)
	if err != nil {
		return err
	}
	runs, err := l.RecentTrainRuns(limit)
	if err != nil {
		return err
	}

	out := st.deps.Stdout
	fmt.Fprintf(out, "rounds: %d passed, %d over\n\n",
		totals[scene.StatusGamePass], totals[scene.StatusGameOver])

	et := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(headerStyle).
		Headers("ENDED", "STATUS", "FRAMES", "RECORDED")
	for _, e := range episodes {
		rec := "-"
		if e.File != "" {
			rec = fmt.Sprintf("%d obs", e.Observations)
		}
		et.Row(e.EndedAt.Local().Format(time.DateTime), string(e.Status), fmt.Sprint(e.Frames), rec)
	}
	fmt.Fprintln(out, et.String())

	rt := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(headerStyle).
		Headers("STARTED", "SOURCES", "ROWS", "ACCURACY", "MODEL")
	for _, r := range runs {
		acc := "n/a"
		if r.Accuracy != nil {
			acc = fmt.Sprintf("%.4f", *r.Accuracy)
		}
		model := r.ModelPath
		if !r.Saved {
			model = "not saved: " + r.Reason
		}
		rt.Row(r.StartedAt.Local().Format(time.DateTime), strings.Join(r.Sources, ","),
			fmt.Sprintf("%d/%d", r.TrainRows, r.TestRows), acc, model)
	}
	fmt.Fprintln(out, rt.String())
	return nil
}

func headerStyle(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return styleHeader
	}
	return lipgloss.NewStyle()
}
