package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smallbiznis/crmfeed/internal/config"
	syncservice "github.com/smallbiznis/crmfeed/internal/crmsync/service"
	"github.com/smallbiznis/crmfeed/internal/feed/document"
	feedservice "github.com/smallbiznis/crmfeed/internal/feed/service"
	"github.com/smallbiznis/crmfeed/internal/migration"
	"github.com/smallbiznis/crmfeed/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func serveCmd(feedConfig *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed, the about page and the sync API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infrastructure(*feedConfig),
				domains(),
				migration.Module,
				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}

func migrateCmd(feedConfig *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn *gorm.DB
				cfg  config.Config
			)
			stop, err := oneShot(cmd.Context(), infrastructure(*feedConfig), fx.Populate(&conn, &cfg))
			if err != nil {
				return err
			}
			defer stop()

			if err := migration.Run(conn, cfg.DBType); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func renderCmd(feedConfig *string) *cobra.Command {
	var (
		verify bool
		out    string
	)

	cmd := &cobra.Command{
		Use:   "render <all|id,id,...>",
		Short: "Render a feed to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var feeds *feedservice.Service
			stop, err := oneShot(cmd.Context(), infrastructure(*feedConfig), domains(), fx.Populate(&feeds))
			if err != nil {
				return err
			}
			defer stop()

			result, err := feeds.Build(cmd.Context(), feedQuery(args[0]))
			if err != nil {
				return err
			}
			if verify {
				if err := feedservice.Verify(result); err != nil {
					return fmt.Errorf("integrity check failed: %w", err)
				}
			}
			body, err := document.Encode(result.Document)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, body)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Recompute every order total from the rendered rows")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file, - for stdout")
	return cmd
}

func syncCmd(feedConfig *string) *cobra.Command {
	var (
		all       bool
		test      bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "sync [id,id,...]",
		Short: "Ask the CRM to download the feed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass either a project list or --all")
			}

			var syncer *syncservice.Service
			stop, err := oneShot(cmd.Context(), infrastructure(*feedConfig), domains(), fx.Populate(&syncer))
			if err != nil {
				return err
			}
			defer stop()

			if all {
				synced, err := syncer.SyncAll(cmd.Context(), test, batchSize)
				fmt.Fprintf(cmd.OutOrStdout(), "%d projects synced\n", synced)
				return err
			}

			entry, err := syncer.Sync(cmd.Context(), args[0], test)
			if entry != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "sync %d: %s (HTTP %d, %d ms)\n", entry.ID, entry.Result, entry.HTTPStatus, entry.DurationMs)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Sync every project in batches")
	cmd.Flags().BoolVar(&test, "test", false, "Use the CRM test server")
	cmd.Flags().IntVar(&batchSize, "batch-size", syncservice.BatchSize, "Projects per trigger with --all")
	return cmd
}

// feedQuery accepts "all" as well as "all.xml".
func feedQuery(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasSuffix(arg, ".xml") {
		return arg
	}
	return arg + ".xml"
}

func writeOutput(stdout io.Writer, path string, body []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
