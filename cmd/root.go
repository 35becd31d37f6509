package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "opslens",
	Short: "Operational metrics and Q&A across client projects",
	Long:  "Aggregates GitHub, Jira, AWS, Railway and OpenAI metrics per project, analyzes AWS spend and answers natural-language questions about the results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
