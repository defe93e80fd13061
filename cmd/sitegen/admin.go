// ABOUTME: user and project commands. Users are created directly in the datastore;
// ABOUTME: projects are created and listed through the API with the user's token.
package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/2389-research/sitegen/store"
)

func newUserCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users in the local datastore",
	}

	var (
		name    string
		credits int
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print its API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("credits") {
				credits = cfg.DefaultCredits
			}
			if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer st.Close()

			u, token, err := st.CreateUser(cmd.Context(), name, credits)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user %s (%s) created with %d credits\n", u.Name, u.ID, u.Credits)
			fmt.Fprintf(out, "token: %s\n", token)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "user name")
	create.Flags().IntVar(&credits, "credits", 0, "generation credits (default: config defaultCredits)")
	_ = create.MarkFlagRequired("name")

	var (
		userID string
		delta  int
	)
	grant := &cobra.Command{
		Use:   "credit",
		Short: "Add (or with a negative amount, remove) generation credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer st.Close()

			balance, err := st.AddCredits(cmd.Context(), userID, delta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s now has %d credits\n", userID, balance)
			return nil
		},
	}
	grant.Flags().StringVar(&userID, "user", "", "user ID")
	grant.Flags().IntVar(&delta, "amount", 0, "credits to add")
	_ = grant.MarkFlagRequired("user")
	_ = grant.MarkFlagRequired("amount")

	cmd.AddCommand(create, grant)
	return cmd
}

func newProjectCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and list projects through the API",
	}

	var (
		createFlags clientFlags
		name        string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := createFlags.resolve(cfg); err != nil {
				return err
			}
			var p store.Project
			if err := newAPIClient(&createFlags).do(cmd.Context(), http.MethodPost, "/api/projects", map[string]string{"name": name}, &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project %s created: %s\n", p.Name, p.ID)
			return nil
		},
	}
	createFlags.register(create)
	create.Flags().StringVar(&name, "name", "", "project name")
	_ = create.MarkFlagRequired("name")

	var listFlags clientFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List your projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := listFlags.resolve(cfg); err != nil {
				return err
			}
			var projects []store.Project
			if err := newAPIClient(&listFlags).do(cmd.Context(), http.MethodGet, "/api/projects", nil, &projects); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Status)
			}
			return tw.Flush()
		},
	}
	listFlags.register(list)

	cmd.AddCommand(create, list)
	return cmd
}
