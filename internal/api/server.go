package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/watchqueue/internal/api/handlers"
	"github.com/amaumene/watchqueue/internal/api/middleware"
	"github.com/amaumene/watchqueue/internal/config"
	"github.com/amaumene/watchqueue/internal/controllers"
	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/stats"
	"github.com/amaumene/watchqueue/internal/timeline"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	items *controllers.ItemController,
	aggregator *stats.Aggregator,
	grouper *timeline.Grouper,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		addr:   ":" + cfg.ServerPort,
		logger: logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "watchqueue",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	s.app.Use(recover.New())
	s.app.Use(middleware.Logging(logger))

	s.setupRoutes(items, aggregator, grouper, m)
	return s
}

// App exposes the fiber application, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(items *controllers.ItemController, aggregator *stats.Aggregator, grouper *timeline.Grouper, m *metrics.Metrics) {
	// Health check
	healthHandler := handlers.NewHealthHandler()
	s.app.Get("/health", healthHandler.Get)

	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	api := s.app.Group("/api", middleware.Owner())

	itemHandler := handlers.NewItemHandler(items, grouper, s.logger)
	api.Get("/items", itemHandler.List)
	api.Post("/items", itemHandler.Create)
	api.Post("/items/batch", itemHandler.CreateBatch)
	api.Get("/items/suggest", itemHandler.Suggest)
	api.Put("/items/order", itemHandler.Reorder)
	api.Put("/items/:id/watch", itemHandler.SetWatchStatus)
	api.Put("/items/:id/favorite", itemHandler.SetFavorite)
	api.Put("/items/:id/like", itemHandler.SetLikeStatus)
	api.Put("/items/:id/priority", itemHandler.SetPriority)
	api.Post("/items/:id/tags", itemHandler.AddTags)
	api.Delete("/items/:id/tags", itemHandler.RemoveTags)
	api.Post("/items/:id/restore", itemHandler.Restore)
	api.Post("/items/:id/move-to-beginning", itemHandler.MoveToBeginning)
	api.Post("/items/:id/move-to-end", itemHandler.MoveToEnd)
	api.Get("/items/:id/timestamps", itemHandler.Timestamps)
	api.Get("/items/:id/history", itemHandler.History)
	api.Delete("/items/:id/purge", itemHandler.Purge)
	api.Delete("/items/:id", itemHandler.Delete)

	statsHandler := handlers.NewStatsHandler(aggregator, s.logger)
	api.Get("/stats", statsHandler.Get)
}

// handleError maps domain errors onto HTTP status codes
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.Is(err, utils.ErrNotFound):
		code = fiber.StatusNotFound
		message = err.Error()
	case errors.Is(err, utils.ErrValidation):
		code = fiber.StatusBadRequest
		message = err.Error()
	case errors.Is(err, utils.ErrInvariantViolation):
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("Ordering invariant violated")
	default:
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

// Start starts the HTTP server and blocks until ctx is cancelled or it fails
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("port", s.addr).Msg("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}
