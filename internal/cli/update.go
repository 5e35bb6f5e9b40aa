package cli

import (
	"github.com/spf13/cobra"
)

// updateCommand creates the update command: fetch followed by build.
func (c *CLI) updateCommand() *cobra.Command {
	var (
		fetchF fetchFlags
		buildF buildFlags
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download the db dump if it changed and rebuild the index",
		Long: `Download the crates.io db dump when it is newer than the published index,
then rebuild and publish the index. last_updated is written together with the
other artifacts, so a failed build is retried by the next update.

Exits with status 20 when the index is current and 21 when the server sends
no Last-Modified header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fetchF.apply(cmd, &cfg)
			buildF.apply(cmd, &cfg)

			ctx := withLogger(cmd.Context(), c.Logger)
			res, err := fetchSnapshot(ctx, cfg, fetchF.since)
			if err != nil {
				return err
			}
			printSuccess("Downloaded snapshot modified %s", res.LastUpdated())

			_, err = buildIndex(ctx, cfg, res.LastUpdated())
			return err
		},
	}

	fetchF.register(cmd)
	buildF.register(cmd, false)
	return cmd
}
