package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GomuGomuu/ope-ope/internal/cache"
	"github.com/GomuGomuu/ope-ope/internal/card"
	"github.com/GomuGomuu/ope-ope/internal/config"
	"github.com/GomuGomuu/ope-ope/internal/embedder"
	"github.com/GomuGomuu/ope-ope/internal/log"
	"github.com/GomuGomuu/ope-ope/internal/matcher"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "ope-ope",
	Short: "Match scanned trading cards against the reference catalog",
	Long: `ope-ope embeds every card of the reference catalog once, caches the vectors,
and ranks extracted card records against them by cosine similarity.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, buildCacheCmd, matchCmd)
}

// app holds the components every command wires together.
type app struct {
	cfg     *config.Config
	store   cache.Store
	matcher *matcher.Matcher
}

// loadConfig reads the configuration and applies the log level.
// Variables from the dotenv file never override ones already set in the environment.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return cfg, nil
}

// newApp loads the catalog, connects the embedder and opens the cache store.
// The matcher is returned unloaded.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	catalog, err := card.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	log.InfoLogger.Info().Msgf("📚 Loaded %d cards from %s", catalog.Len(), cfg.Catalog.Path)

	// Create embedder factory and embedder
	e, err := embedder.NewFactory(cfg.Embedding).Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if err := embedder.Validate(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to validate embedder connection: %w", err)
	}
	log.InfoLogger.Info().Msgf("📏 Using embedding dimensions: %d", e.Dimensions())

	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	manager := cache.NewManager(store, e, cfg.Cache.Invalidation)
	m := matcher.New(catalog, e, manager, matcher.WithDefaultTopN(cfg.Matcher.DefaultTopN))
	return &app{cfg: cfg, store: store, matcher: m}, nil
}

// load runs the blocking cache build. A persistence failure is logged and tolerated
// unless strict is set.
func (a *app) load(ctx context.Context, strict bool) error {
	err := a.matcher.Load(ctx)
	if errors.Is(err, cache.ErrPersistence) && !strict {
		log.ErrorLogger.Warn().Err(err).Msg("⚠️ Cache built but not persisted; it will be rebuilt on restart")
		return nil
	}
	return err
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.ErrorLogger.Error().Err(err).Msg("Failed to close cache store")
	}
}
