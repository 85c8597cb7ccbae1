package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venuepass/internal/app"
	"venuepass/internal/engine"
	"venuepass/internal/server"
)

func backendCmd() *cobra.Command {
	b := &cobra.Command{
		Use:   "backend",
		Short: "Run and seed the local registration backend",
	}
	flags := b.PersistentFlags()
	flags.String("workspace", "", "directory holding .venuepass/venuepass.db (overrides backend.workspace)")
	_ = viper.BindPFlag("backend.workspace", flags.Lookup("workspace"))
	b.AddCommand(backendServeCmd())
	b.AddCommand(backendSeedCmd())
	b.AddCommand(backendActivityCmd())
	return b
}

func backendServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the landing/registration API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, closeDB, err := a.OpenEngine(ctx)
				if err != nil {
					return err
				}
				defer closeDB()
				handler, err := server.New(server.Config{Engine: e, BasePath: a.Config.Backend.BasePath, Logger: a.Logger})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Serving venuepass API on http://%s%s (OpenAPI at %s/openapi.json)\n",
					a.Config.Backend.Addr, a.Config.Backend.BasePath, a.Config.Backend.BasePath)
				return server.Run(ctx, a.Config.Backend.Addr, handler, a.Logger)
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides backend.addr)")
	cmd.Flags().String("base-path", "", "API base path (overrides backend.base_path)")
	_ = viper.BindPFlag("backend.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("backend.base_path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func backendSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load events and users from a YAML fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			fixtures, err := engine.ParseFixtures(data)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, closeDB, err := a.OpenEngine(ctx)
				if err != nil {
					return err
				}
				defer closeDB()
				res, err := e.Seed(ctx, fixtures)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d events and %d users\n", res.Events, res.Users)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file")
	return cmd
}

func backendActivityCmd() *cobra.Command {
	var (
		limit      int
		entityKind string
		entityID   string
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the newest backend journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, closeDB, err := a.OpenEngine(ctx)
				if err != nil {
					return err
				}
				defer closeDB()
				items, err := e.ActivityLog(ctx, limit, 0, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Payload"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.TS, it.Type, it.EntityKind + ":" + it.EntityID, it.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries to show")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "event or user")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}
