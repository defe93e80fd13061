// ABOUTME: The generate command: starts a generation through the background manager and follows it.
// ABOUTME: Renders progress in the terminal UI, or as plain log lines with --plain.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389-research/sitegen/bgmanager"
	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/pipeline"
	"github.com/2389-research/sitegen/tui"
)

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var (
		cf      clientFlags
		project string
		plain   bool
	)
	cmd := &cobra.Command{
		Use:   "generate <site.yaml>",
		Short: "Generate a site for a project from a business description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := cf.resolve(cfg); err != nil {
				return err
			}
			site, err := readSiteConfig(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := bgmanager.New(&bgmanager.HTTPTransport{BaseURL: cf.server, Token: cf.token})
			var final bgmanager.State
			if plain {
				final, err = followPlain(ctx, cmd.OutOrStdout(), m, project, site)
			} else {
				final, err = followTUI(ctx, m, project, site)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d files for project %s\n", len(final.Files), project)
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVar(&project, "project", "", "project ID")
	cmd.Flags().BoolVar(&plain, "plain", false, "print events instead of the terminal UI")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// readSiteConfig loads a generation config from YAML.
func readSiteConfig(path string) (pipeline.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Config{}, err
	}
	var site pipeline.Config
	if err := yaml.Unmarshal(data, &site); err != nil {
		return pipeline.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return site.Assemble()
}

func followTUI(ctx context.Context, m *bgmanager.Manager, projectID string, site pipeline.Config) (bgmanager.State, error) {
	// Log lines would tear the UI; the manager's logs are dropped while it runs.
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(tui.NewAppModel(projectID, func() { m.Cancel(projectID) }), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge := tui.NewBridge(program.Send)
	go bridge.Follow(ctx, m, projectID, site)

	out, err := program.Run()
	if err != nil {
		return bgmanager.State{}, fmt.Errorf("terminal UI: %w", err)
	}
	model := out.(tui.AppModel)
	if !model.Done() {
		return bgmanager.State{}, fmt.Errorf("generation for %s abandoned", projectID)
	}
	return model.Result()
}

func followPlain(ctx context.Context, w io.Writer, m *bgmanager.Manager, projectID string, site pipeline.Config) (bgmanager.State, error) {
	run, started := m.Start(ctx, projectID, site, func(e genevent.Event) {
		switch ev := e.(type) {
		case genevent.StageStart:
			fmt.Fprintf(w, "stage %s\n", ev.Stage)
		case genevent.ComponentComplete:
			fmt.Fprintf(w, "  [%d/%d] %s\n", ev.CompletedFiles, ev.TotalFiles, ev.File.Path)
		case genevent.Error:
			fmt.Fprintf(w, "error in %s: %s\n", ev.Stage, ev.Message)
		}
	})
	if !started {
		return bgmanager.State{}, fmt.Errorf("project %s is already generating", projectID)
	}

	st, err := run.Wait(ctx)
	if err != nil {
		m.Cancel(projectID)
		return st, err
	}
	if st.Status == bgmanager.StatusFailed {
		return st, fmt.Errorf("generation failed at %s: %s", st.Stage, st.Error)
	}
	return st, nil
}
