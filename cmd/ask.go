package main

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var askOperator string

var askCmd = &cobra.Command{
	Use:   "ask <project-id> <question...>",
	Short: "Ask a question about a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		ans, err := env.Engine.Ask(ctx, operatorID(askOperator), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ans.Text)
		fmt.Fprintf(out, "\n(%s, confidence %.2f, sources: %s)\n",
			ans.Strategy, ans.Confidence, strings.Join(ans.Sources, ", "))
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askOperator, "operator", "", "operator id (default: current user)")
	rootCmd.AddCommand(askCmd)
}

// operatorID falls back to the OS user so CLI turns land in one history.
func operatorID(flag string) string {
	if flag != "" {
		return flag
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "cli"
}
