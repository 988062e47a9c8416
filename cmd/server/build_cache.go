package main

import (
	"github.com/spf13/cobra"

	"github.com/GomuGomuu/ope-ope/internal/log"
)

var buildCacheCmd = &cobra.Command{
	Use:   "build-cache",
	Short: "Embed every missing catalog card, persist the cache and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.load(cmd.Context(), true); err != nil {
			return err
		}
		stats, _ := a.matcher.Stats()
		log.InfoLogger.Info().Msgf("✅ Cache holds %d embeddings for model %s", stats.Entries, stats.ModelID)
		return nil
	},
}
