package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyOperator string
	historyLimit    int
	historyClear    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear an operator's conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		op := operatorID(historyOperator)
		out := cmd.OutOrStdout()

		if historyClear {
			if err := env.Engine.ClearHistory(ctx, op); err != nil {
				return err
			}
			fmt.Fprintf(out, "History cleared for %s\n", op)
			return nil
		}

		turns, err := env.Engine.GetHistory(ctx, op, historyLimit)
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			fmt.Fprintf(out, "No history for %s\n", op)
			return nil
		}
		for _, t := range turns {
			fmt.Fprintf(out, "[%s] %s  (%s, %.2f)\nQ: %s\nA: %s\n\n",
				t.Timestamp.Local().Format("2006-01-02 15:04"), t.ProjectID, t.Intent, t.Confidence, t.Question, t.Answer)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyOperator, "operator", "", "operator id (default: current user)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of turns to show, 0 for all")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete the operator's history")
	rootCmd.AddCommand(historyCmd)
}
