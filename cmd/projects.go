package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/project"
)

var projectsArchived bool

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List configured projects and their integrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := project.NewFileProvider(cfg.Projects.Dir, cfg.Projects.ArchivedDir)
		projects, err := provider.List(cmd.Context(), projectsArchived)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tINTEGRATIONS")
		for _, p := range projects {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, integrationList(p))
		}
		return tw.Flush()
	},
}

func init() {
	projectsCmd.Flags().BoolVar(&projectsArchived, "archived", false, "include archived projects")
	rootCmd.AddCommand(projectsCmd)
}

func integrationList(p model.ProjectConfig) string {
	enabled := p.EnabledPlatforms()
	if len(enabled) == 0 {
		return "-"
	}
	names := make([]string, len(enabled))
	for i, pl := range enabled {
		names[i] = string(pl)
	}
	return strings.Join(names, ",")
}
