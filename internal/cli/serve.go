package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/crateindex/internal/api"
)

const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		src       sourceFlags
		addr      string
		cacheSize int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a published index over HTTP",
		Long: `Serve a published index as a read-only JSON API.

Routes:
  GET /healthz
  GET /packages?offset=&limit=
  GET /packages/{name}
  GET /keywords
  GET /categories`,
		Example: `  crateindex serve --addr :8080 --dir ./index`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			idx, cfg, err := c.openIndex(ctx, cmd, src)
			if err != nil {
				return err
			}
			override(cmd, "addr", &cfg.Serve.Addr, addr)
			override(cmd, "cache-size", &cfg.Serve.CacheSize, cacheSize)

			srv, err := api.New(idx,
				api.WithCacheSize(cfg.Serve.CacheSize),
				api.WithLogger(c.Logger),
			)
			if err != nil {
				return err
			}

			printInfo("Serving %d packages on %s", idx.Packages.Len(), StyleHighlight.Render(cfg.Serve.Addr))
			return listenAndServe(ctx, &http.Server{
				Addr:              cfg.Serve.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 0, "decoded records kept in memory")
	return cmd
}

// listenAndServe runs hs until ctx is cancelled, then shuts it down
// gracefully. A shutdown caused by ctx is not an error.
func listenAndServe(ctx context.Context, hs *http.Server) error {
	logger := loggerFromContext(ctx)
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
