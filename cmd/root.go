package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/app"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/publish"
)

// runner is what the crawl command needs from a CrawlContext. Tests swap
// newRunner for a fake.
type runner interface {
	Run(ctx context.Context) (publish.CatalogPublished, error)
	Close()
}

// newRunner is the application factory. It's a variable so tests can
// replace it.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (runner, error) {
	cc, err := app.New(ctx, cfg, logger, app.Overrides{})
	if err != nil {
		return nil, err
	}
	return cc, nil
}

type rootOptions struct {
	configFile string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "catalog-crawler",
		Short: "Builds educational content catalogs from a website or a manifest.",
		Long: `catalog-crawler walks a source website (or reads a static manifest),
classifies every content page as a video or an HTML5 app and publishes the
resulting channel tree as a JSON document.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml or json)")
	cmd.AddCommand(newCrawlCmd(opts))
	return cmd
}

// Execute is the main entry point. It cancels the run on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.NewWithOptions(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
