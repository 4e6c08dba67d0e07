package cmd

import (
	"context"
	"errors"
	"fmt"

	"fortio.org/log"
	"github.com/spf13/cobra"

	"github.com/fchimpan/paddle-pilot/internal/runlog"
	"github.com/fchimpan/paddle-pilot/internal/train"
)

func newTrainCmd(st *rootState) *cobra.Command {
	var dataDir, model, plotPath string
	c := &cobra.Command{
		Use:   "train",
		Short: "Fit the classifier from recorded episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("model") {
				st.cfg.Paths.Model = model
			}
			return runTrain(cmd.Context(), st, dataDir, plotPath)
		},
	}
	c.Flags().StringVarP(&dataDir, "data-dir", "d", "", `episode directory, or "all" for every configured directory (default: paths.data_dirs)`)
	c.Flags().StringVarP(&model, "model", "m", "", "where to save the classifier")
	c.Flags().StringVar(&plotPath, "plot", "", "also save a PNG scatter of the held-out rows")
	return c
}

// dataDirs resolves --data-dir: a path, "all" for the configured data
// directories plus the collection directory, or empty for the data
// directories alone.
func dataDirs(flag string, configured []string, collectDir string) []string {
	switch flag {
	case "":
		return configured
	case "all":
		out := append([]string(nil), configured...)
		seen := make(map[string]bool, len(out))
		for _, d := range out {
			seen[d] = true
		}
		if collectDir != "" && !seen[collectDir] {
			out = append(out, collectDir)
		}
		return out
	default:
		return []string{flag}
	}
}

func runTrain(ctx context.Context, st *rootState, dataDir, plotPath string) error {
	deps := st.deps
	if deps.Train == nil {
		return fmt.Errorf("deps.Train is nil")
	}
	if deps.Now == nil {
		return fmt.Errorf("deps.Now is nil")
	}
	cfg := st.cfg
	dirs := dataDirs(dataDir, cfg.Paths.DataDirs, cfg.Paths.CollectDir)
	started := deps.Now()

	res, err := deps.Train(ctx, train.Config{
		Dirs:      dirs,
		ModelPath: cfg.Paths.Model,
		PlotPath:  plotPath,
		Options: train.Options{
			Neighbors:    cfg.Train.Neighbors,
			TestFraction: cfg.Train.TestFraction,
			Seed:         cfg.Train.Seed,
		},
	})

	run := runlog.TrainRun{
		StartedAt: started,
		Sources:   dirs,
		Files:     res.Files,
		Rows:      res.Rows,
		TrainRows: res.Train.Len(),
		TestRows:  res.Test.Len(),
		ModelPath: cfg.Paths.Model,
		Saved:     res.Saved,
	}
	if res.HasAccuracy {
		acc := res.Accuracy
		run.Accuracy = &acc
	}
	switch {
	case err != nil:
		run.Reason = err.Error()
	case res.SaveErr != nil:
		run.Reason = res.SaveErr.Error()
	}
	if l := st.ledger(); l != nil {
		if _, lerr := l.RecordTrainRun(run); lerr != nil {
			log.Warnf("failed to log training run: %v", lerr)
		}
		if cerr := l.Close(); cerr != nil {
			log.Warnf("close ledger: %v", cerr)
		}
	}

	if err != nil {
		if errors.Is(err, train.ErrNoData) {
			fmt.Fprintln(deps.Stderr, "hint: record episodes first: `paddle-pilot play --record`")
		}
		return fmt.Errorf("train: %w", err)
	}

	out := deps.Stdout
	fmt.Fprintf(out, "rows: %d (train %d, test %d) from %d files", res.Rows, res.Train.Len(), res.Test.Len(), res.Files)
	if res.Skipped > 0 {
		fmt.Fprintf(out, ", %d skipped", res.Skipped)
	}
	fmt.Fprintln(out)
	if res.HasAccuracy {
		fmt.Fprintf(out, "accuracy: %.4f\n", res.Accuracy)
	} else {
		fmt.Fprintln(out, "accuracy: n/a (no held-out rows)")
	}
	if res.Saved {
		fmt.Fprintf(out, "model saved to %s\n", cfg.Paths.Model)
	} else {
		fmt.Fprintf(deps.Stderr, "warning: model not saved: %v\n", res.SaveErr)
	}
	return nil
}
