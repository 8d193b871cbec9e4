package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crmfeed/internal/clock"
	"github.com/smallbiznis/crmfeed/internal/config"
	"github.com/smallbiznis/crmfeed/internal/crmsync"
	"github.com/smallbiznis/crmfeed/internal/feed"
	"github.com/smallbiznis/crmfeed/internal/observability"
	"github.com/smallbiznis/crmfeed/internal/order"
	"github.com/smallbiznis/crmfeed/internal/ratelimit"
	"github.com/smallbiznis/crmfeed/internal/tax"
	"github.com/smallbiznis/crmfeed/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var feedConfig string

	cmd := &cobra.Command{
		Use:   "crmfeed",
		Short: "Order feed for the MiniCRM webshop integration",
		Long: `crmfeed renders shop orders as the MiniCRM project feed, serves it to
the CRM behind an address and secret check, and asks the CRM to pull it.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&feedConfig, "feed-config", "", "feed.yml path (default: /etc/crmfeed or the working directory)")

	cmd.AddCommand(
		serveCmd(&feedConfig),
		migrateCmd(&feedConfig),
		renderCmd(&feedConfig),
		syncCmd(&feedConfig),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "crmfeed %s\n", version)
			},
		},
	)
	return cmd
}

// infrastructure is shared by every command.
func infrastructure(feedConfig string) fx.Option {
	return fx.Options(
		fx.Supply(config.FeedConfigPath(feedConfig)),
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
	)
}

func domains() fx.Option {
	return fx.Options(
		order.Module,
		tax.Module,
		feed.Module,
		ratelimit.Module,
		crmsync.Module,
	)
}

// oneShot starts a short-lived app whose logs go to stderr so stdout
// stays free for command output.
func oneShot(ctx context.Context, opts ...fx.Option) (stop func(), err error) {
	app := fx.New(
		fx.NopLogger,
		fx.Decorate(func(cfg observability.Config) observability.Config {
			cfg.LogOutput = "stderr"
			return cfg
		}),
		fx.Options(opts...),
	)
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}, nil
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
