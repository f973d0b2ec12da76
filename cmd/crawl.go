// Package cmd defines the CLI commands of the catalog-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/telemetry"
)

const serviceName = "catalog-crawler"

type crawlOptions struct {
	language     string
	source       string
	manifest     string
	forceRefresh bool
	materialize  bool
}

// newCrawlCmd creates the 'crawl' subcommand, which builds one channel and
// publishes it.
func newCrawlCmd(root *rootOptions) *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Build and publish one channel",
		Long: `Builds the channel for one language from the configured source and
writes the catalog document to the configured output. Pages already in the
cache are not downloaded again unless --force-refresh is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, root, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.language, "language", "", "channel language (required when several are configured)")
	flags.StringVar(&opts.source, "source", "", "catalog source: site or manifest")
	flags.StringVar(&opts.manifest, "manifest", "", "path to a manifest file (implies --source=manifest)")
	flags.BoolVar(&opts.forceRefresh, "force-refresh", false, "revalidate cached pages and redo post-processing")
	flags.BoolVar(&opts.materialize, "materialize", false, "download and watermark every video before publishing (implies postprocess.enabled)")
	return cmd
}

// overrides maps the flags the user actually set onto config keys.
func (o *crawlOptions) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("language") {
		out["channel.language"] = o.language
	}
	if flags.Changed("source") {
		out["source"] = o.source
	}
	if flags.Changed("manifest") {
		out["manifest.path"] = o.manifest
		if !flags.Changed("source") {
			out["source"] = config.SourceManifest
		}
	}
	if flags.Changed("force-refresh") {
		out["fetch.force_refresh"] = o.forceRefresh
	}
	if flags.Changed("materialize") {
		out["postprocess.materialize"] = o.materialize
		if o.materialize {
			out["postprocess.enabled"] = true
		}
	}
	return out
}

func runCrawl(cmd *cobra.Command, root *rootOptions, opts *crawlOptions) error {
	cfg, err := config.Load(root.configFile, opts.overrides(cmd))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	tp, err := telemetry.InitTracerProvider(ctx, serviceName, logger.Named("trace"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer r.Close()

	event, err := r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Warn("Crawl interrupted")
		return err
	}
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Info("Crawl command finished.",
		zap.String("run_id", event.RunID),
		zap.String("uri", event.URI),
		zap.Int("topics", event.Stats.Topics),
		zap.Int("items", event.Stats.Items),
	)
	fmt.Fprintln(cmd.OutOrStdout(), event.URI)
	return nil
}
