package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/crateindex/pkg/buildinfo"
	errs "github.com/matzehuels/crateindex/pkg/errors"
	"github.com/matzehuels/crateindex/pkg/fetch"
	cio "github.com/matzehuels/crateindex/pkg/io"
)

// fetchFlags are the flags shared by fetch and update.
type fetchFlags struct {
	url     string
	archive string
	out     string
	since   string
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "snapshot URL (default "+fetch.DefaultURL+")")
	cmd.Flags().StringVar(&f.archive, "archive", "", "where to store the downloaded archive")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory holding last_updated")
	cmd.Flags().StringVar(&f.since, "since", "", "RFC 2822 date to compare against instead of last_updated")
}

func (f *fetchFlags) apply(cmd *cobra.Command, cfg *Config) {
	override(cmd, "url", &cfg.Source.URL, f.url)
	override(cmd, "archive", &cfg.Source.Archive, f.archive)
	override(cmd, "out", &cfg.Output.Dir, f.out)
}

// fetchCommand creates the fetch command.
func (c *CLI) fetchCommand() *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the crates.io db dump if it changed",
		Long: `Download the crates.io db dump when the server reports a Last-Modified time
newer than the one recorded in last_updated.

Exits with status 20 when the local copy is current and 21 when the server
sends no Last-Modified header.`,
		Example: `  crateindex fetch
  crateindex fetch --archive /tmp/db-dump.tar.gz --since "Mon, 03 Jun 2024 02:00:46 +0000"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)

			ctx := withLogger(cmd.Context(), c.Logger)
			res, err := fetchSnapshot(ctx, cfg, flags.since)
			if err != nil {
				return err
			}
			if err := writeMarker(cfg.LastUpdatedPath(), res.LastUpdated()); err != nil {
				return err
			}

			printSuccess("Downloaded snapshot (%s)", formatBytes(res.Bytes))
			printKeyValue("Modified", res.LastUpdated())
			printFile(cfg.Source.Archive)
			printNewline()
			printNextStep("Build the index", "crateindex build")
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// fetchSnapshot downloads the archive when the remote copy is newer than
// since, or than the last_updated marker when since is empty.
func fetchSnapshot(ctx context.Context, cfg Config, since string) (fetch.Result, error) {
	logger := loggerFromContext(ctx)
	if err := errs.ValidateURL(cfg.Source.URL); err != nil {
		return fetch.Result{}, err
	}

	var after time.Time
	if since != "" {
		t, err := fetch.ParseLastUpdated(since)
		if err != nil {
			return fetch.Result{}, errs.Wrap(errs.ErrCodeInvalidInput, err, "--since")
		}
		after = t
	} else {
		after = fetch.ReadLastUpdated(cfg.LastUpdatedPath())
	}
	if after.IsZero() {
		logger.Debug("no previous snapshot recorded")
	} else {
		logger.Debug("previous snapshot", "modified", fetch.FormatLastUpdated(after))
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Source.Archive), 0o755); err != nil {
		return fetch.Result{}, errs.Wrap(errs.ErrCodeInvalidConfig, err, "archive directory")
	}

	f := fetch.NewFetcher(
		fetch.WithLogger(logger),
		fetch.WithUserAgent(buildinfo.UserAgent()),
	)

	prog := newProgress(logger)
	res, err := f.FetchIfUpdated(ctx, cfg.Source.URL, cfg.Source.Archive, after)
	if err != nil {
		return fetch.Result{}, err
	}
	prog.done("Downloaded " + formatBytes(res.Bytes))
	return res, nil
}

func writeMarker(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return cio.WriteFileAtomic(path, []byte(value+"\n"))
}

// override copies v into dst when the named flag was set on the command line.
func override[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}
