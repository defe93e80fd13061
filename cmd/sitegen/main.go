// ABOUTME: CLI entrypoint for sitegen: the API server, and client commands for generating and editing sites.
// ABOUTME: Global flags pick the config file and .env; client commands talk to a running server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389-research/sitegen/config"
)

var version = "dev"

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "sitegen",
		Short:         "sitegen generates business websites and serves them over an HTTP API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (default: $SITEGEN_CONFIG)")
	root.PersistentFlags().StringVar(&g.envFile, "env", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(g),
		newGenerateCmd(g),
		newEditCmd(g),
		newUserCmd(g),
		newProjectCmd(g),
	)
	return root
}

// load reads .env and then the configuration.
func (g *globalFlags) load() (*config.Config, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
