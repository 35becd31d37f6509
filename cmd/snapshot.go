package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/opslens/internal/model"
)

var snapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <project-id>",
	Short: "Collect and analyze metrics for one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "snapshot")
		if err != nil {
			return err
		}
		defer env.Close()

		es, err := env.Engine.GetSnapshot(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "snapshot")
		}

		out := cmd.OutOrStdout()
		if snapshotJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(es)
		}
		printSnapshot(out, es)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the enriched snapshot as JSON")
	rootCmd.AddCommand(snapshotCmd)
}

// printSnapshot writes a short per-platform summary.
func printSnapshot(w io.Writer, es *model.EnrichedSnapshot) {
	fmt.Fprintf(w, "%s (%s) captured %s in %s\n",
		es.Project.Name, es.Project.ID,
		es.Snapshot.CapturedAt.Format("2006-01-02 15:04:05 MST"), es.Snapshot.Duration.Round(time.Millisecond))

	platforms := make([]string, 0, len(es.Snapshot.Results))
	for p := range es.Snapshot.Results {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)
	if len(platforms) == 0 {
		fmt.Fprintln(w, "  no integrations enabled")
	}
	for _, p := range platforms {
		r := es.Snapshot.Results[model.Platform(p)]
		if r.IsOK() {
			fmt.Fprintf(w, "  %-8s ok      %s\n", p, r.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "  %-8s failed  %s: %s\n", p, r.Failure.Kind, r.Failure.Message)
	}

	ins := es.Insights
	if ins == nil {
		return
	}
	switch {
	case ins.Status != model.StatusOK && ins.Failure != nil:
		fmt.Fprintf(w, "cost insights unavailable (%s): %s\n", ins.Failure.Kind, ins.Failure.Message)
	case ins.Status == model.StatusOK:
		fmt.Fprintf(w, "AWS %d-day spend $%s (avg $%s/day, %s)\n",
			ins.Days, ins.Total.StringFixed(2), ins.Trend.DailyAverage.StringFixed(2), ins.Trend.Direction)
	}
	for _, rec := range ins.Recommendations {
		fmt.Fprintf(w, "  [%s] %s\n", rec.Priority, rec.Text)
	}
}
