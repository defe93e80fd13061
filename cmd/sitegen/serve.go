// ABOUTME: The serve command: opens the datastore, builds the generator, and runs the HTTP API until signalled.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389-research/sitegen/artifact"
	"github.com/2389-research/sitegen/config"
	"github.com/2389-research/sitegen/llm"
	"github.com/2389-research/sitegen/persist"
	"github.com/2389-research/sitegen/pipeline"
	"github.com/2389-research/sitegen/server"
	"github.com/2389-research/sitegen/store"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sitegen HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Bind = bind
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
		return fmt.Errorf("create home %s: %w", cfg.Home, err)
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	client, provider, err := llm.Setup(ctx, cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		return fmt.Errorf("generation provider: %w", err)
	}
	runner := pipeline.NewRunner(pipeline.NewLLMGenerator(client, provider.Model))

	var publisher persist.Publisher
	if cfg.Artifact.Enabled {
		p, err := artifact.NewS3Publisher(cfg.Artifact.S3())
		if err != nil {
			return fmt.Errorf("artifact publisher: %w", err)
		}
		publisher = p
		log.Printf("component=cli action=artifact_publishing endpoint=%s bucket=%s", cfg.Artifact.Endpoint, cfg.Artifact.Bucket)
	}

	srv, err := server.New(server.Config{
		Addr:          cfg.Bind,
		Store:         st,
		Runner:        runner,
		Keepalive:     cfg.Keepalive,
		Stylesheet:    cfg.Stylesheet,
		FileCacheSize: cfg.FileCacheSize,
		Publisher:     publisher,
	})
	if err != nil {
		return err
	}
	log.Printf("component=cli action=serve bind=%s driver=%s provider=%s public_url=%s",
		cfg.Bind, st.Driver(), provider.Name, cfg.PublicBaseURL)
	return srv.ListenAndServe(ctx)
}
