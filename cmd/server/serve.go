package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GomuGomuu/ope-ope/internal/card"
	"github.com/GomuGomuu/ope-ope/internal/log"
	"github.com/GomuGomuu/ope-ope/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the cache and serve matches over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.load(ctx, false); err != nil {
		return err
	}

	if a.cfg.Catalog.Watch {
		go a.watchCatalog(ctx)
	}

	return server.New(a.matcher, a.cfg.Server).Run(ctx)
}

// watchCatalog reloads the matcher whenever the catalog file changes.
func (a *app) watchCatalog(ctx context.Context) {
	w, err := card.NewWatcher(a.cfg.Catalog.Path, a.cfg.Catalog.WatchDebounce)
	if err != nil {
		log.ErrorLogger.Error().Err(err).Msg("🔥 Could not create catalog watcher")
		return
	}
	err = w.Start(ctx, func() {
		catalog, err := card.LoadCatalog(a.cfg.Catalog.Path)
		if err != nil {
			log.ErrorLogger.Error().Err(err).Msg("⚠️ Catalog changed but could not be loaded; keeping the current one")
			return
		}
		log.InfoLogger.Info().Msgf("🔄 Catalog changed, reloading %d cards", catalog.Len())
		if err := a.matcher.Reload(ctx, catalog); err != nil {
			log.ErrorLogger.Error().Err(err).Msg("⚠️ Catalog reload failed")
		}
	})
	if err != nil {
		log.ErrorLogger.Error().Err(err).Msg("🔥 Catalog watcher stopped")
	}
}
