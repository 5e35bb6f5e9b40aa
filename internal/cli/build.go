package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/crateindex/pkg/fetch"
	"github.com/matzehuels/crateindex/pkg/pipeline"
)

// buildFlags are the flags shared by build and update.
type buildFlags struct {
	archive    string
	out        string
	redisAddr  string
	s3Endpoint string
	s3Bucket   string

	withArchive bool
}

func (f *buildFlags) register(cmd *cobra.Command, withArchive bool) {
	f.withArchive = withArchive
	if withArchive {
		cmd.Flags().StringVar(&f.archive, "archive", "", "db dump archive to read")
		cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory")
	}
	cmd.Flags().StringVar(&f.redisAddr, "redis", "", "also publish to the Redis server at this address")
	cmd.Flags().StringVar(&f.s3Endpoint, "s3", "", "also publish to this S3-compatible endpoint")
	cmd.Flags().StringVar(&f.s3Bucket, "s3-bucket", "", "bucket for --s3")
}

func (f *buildFlags) apply(cmd *cobra.Command, cfg *Config) {
	if f.withArchive {
		override(cmd, "archive", &cfg.Source.Archive, f.archive)
		override(cmd, "out", &cfg.Output.Dir, f.out)
	}
	override(cmd, "redis", &cfg.Redis.Addr, f.redisAddr)
	override(cmd, "s3", &cfg.S3.Endpoint, f.s3Endpoint)
	override(cmd, "s3-bucket", &cfg.S3.Bucket, f.s3Bucket)
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rank a db dump and write the index",
		Long: `Read a crates.io db dump archive, count dependents through each crate's most
recent version, rank libraries, and write the dump, keywords and categories
artifacts to the output directory and any configured Redis or S3 sinks.`,
		Example: `  crateindex build --archive db-dump.tar.gz --out ./index
  crateindex build --redis localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)

			ctx := withLogger(cmd.Context(), c.Logger)
			lastUpdated := ""
			if t := fetch.ReadLastUpdated(cfg.LastUpdatedPath()); !t.IsZero() {
				lastUpdated = fetch.FormatLastUpdated(t)
			}
			_, err = buildIndex(ctx, cfg, lastUpdated)
			return err
		},
	}

	flags.register(cmd, true)
	return cmd
}

// buildIndex runs the pipeline over the configured archive and publishes to
// every configured sink.
func buildIndex(ctx context.Context, cfg Config, lastUpdated string) (*pipeline.Result, error) {
	logger := loggerFromContext(ctx)

	sinks, closeSinks, err := cfg.Sinks()
	if err != nil {
		return nil, err
	}
	defer closeSinks()

	spinner := newSpinnerWithContext(ctx, "Building index from "+cfg.Source.Archive+"...")
	spinner.Start()

	res, err := pipeline.NewRunner(logger).Run(ctx, pipeline.Options{
		Source:      pipeline.ArchiveSource{Path: cfg.Source.Archive, Logger: logger},
		Sinks:       sinks,
		LastUpdated: lastUpdated,
	})
	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
		} else {
			spinner.StopWithError("Build failed")
		}
		return nil, err
	}
	spinner.StopWithSuccess("Index built")

	printStats(res.Stats)
	printFile(cfg.Output.Dir)
	if cfg.Redis.Addr != "" {
		printDetail("published to redis %s", cfg.Redis.Addr)
	}
	if cfg.S3.Endpoint != "" {
		printDetail("published to s3 %s/%s", cfg.S3.Endpoint, cfg.S3.Bucket)
	}
	return res, nil
}
