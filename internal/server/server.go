package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GomuGomuu/ope-ope/internal/cache"
	"github.com/GomuGomuu/ope-ope/internal/card"
	"github.com/GomuGomuu/ope-ope/internal/config"
	"github.com/GomuGomuu/ope-ope/internal/log"
	"github.com/GomuGomuu/ope-ope/internal/matcher"
)

// CardMatcher is the matching surface the HTTP handlers need.
type CardMatcher interface {
	FindClosestCard(ctx context.Context, rec card.ExtractedRecord) (matcher.Result, error)
	FindClosestCards(ctx context.Context, rec card.ExtractedRecord, topN int) ([]matcher.Result, error)
	Rebuild(ctx context.Context) error
	Stats() (matcher.Stats, bool)
	DefaultTopN() int
}

// Server exposes a CardMatcher over HTTP.
type Server struct {
	router  *gin.Engine
	matcher CardMatcher
	cfg     config.ServerConfig
}

// matchRequest is an extracted record plus an optional result count.
type matchRequest struct {
	card.ExtractedRecord
	TopN *int `json:"top_n,omitempty"`
}

// New builds the router.
func New(m CardMatcher, cfg config.ServerConfig) *Server {
	s := &Server{
		router:  gin.New(),
		matcher: m,
		cfg:     cfg,
	}
	s.router.Use(gin.Recovery(), requestID(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	// Simple health check endpoint
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Card matcher is running!",
		})
	})
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	cards := s.router.Group("/card", requestTimeout(s.cfg.RequestTimeout))
	cards.POST("/match", s.handleMatch)
	cards.POST("/closest", s.handleClosest)

	s.router.POST("/cache/rebuild", s.handleRebuild)
	s.router.GET("/cache/stats", s.handleStats)
}

// Handler returns the HTTP handler, for tests and embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoLogger.Info().Msgf("🚀 Starting server on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.InfoLogger.Info().Msg("🛑 Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	topN := s.matcher.DefaultTopN()
	if req.TopN != nil {
		topN = *req.TopN
	}

	results, err := s.matcher.FindClosestCards(c.Request.Context(), req.ExtractedRecord, topN)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"possible_cards": results})
}

func (s *Server) handleClosest(c *gin.Context) {
	var rec card.ExtractedRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.matcher.FindClosestCard(c.Request.Context(), rec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": result})
}

func (s *Server) handleRebuild(c *gin.Context) {
	log.InfoLogger.Info().Msg("♻️ Cache rebuild requested")
	err := s.matcher.Rebuild(c.Request.Context())
	stats, _ := s.matcher.Stats()

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Cache rebuilt", "stats": stats})
	case errors.Is(err, cache.ErrPersistence):
		log.ErrorLogger.Error().Err(err).Msg("⚠️ Cache rebuilt but not persisted")
		c.JSON(http.StatusOK, gin.H{"message": "Cache rebuilt but not persisted", "warning": err.Error(), "stats": stats})
	default:
		writeError(c, err)
	}
}

func (s *Server) handleStats(c *gin.Context) {
	stats, ok := s.matcher.Stats()
	if !ok {
		writeError(c, matcher.ErrNotReady)
		return
	}
	c.JSON(http.StatusOK, stats)
}
