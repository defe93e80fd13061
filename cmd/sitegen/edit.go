// ABOUTME: The edit command: submits a batch of pending visual-editor changes as a new version.
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389-research/sitegen/merge"
	"github.com/2389-research/sitegen/persist"
)

func newEditCmd(g *globalFlags) *cobra.Command {
	var (
		cf      clientFlags
		project string
	)
	cmd := &cobra.Command{
		Use:   "edit <changes.json>",
		Short: "Apply a JSON array of pending changes to a project's latest version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := cf.resolve(cfg); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			changes, err := merge.ParseChanges(data)
			if err != nil {
				return err
			}

			var res persist.EditResult
			body := map[string]any{"projectId": project, "changes": changes}
			if err := newAPIClient(&cf).do(cmd.Context(), http.MethodPost, "/api/projects/"+url.PathEscape(project)+"/edits", body, &res); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version %d created: %d applied, %d skipped\n", res.VersionNumber, res.Applied, res.Skipped)
			for _, id := range res.SkippedIDs {
				fmt.Fprintf(out, "  skipped %s\n", id)
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVar(&project, "project", "", "project ID")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
