// Package server exposes the cookbook over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-cookbook/internal/app"
)

// maxBodyBytes bounds request bodies, including backup imports.
const maxBodyBytes = 10 << 20

// Server is the HTTP front end of the App.
type Server struct {
	app    *app.App
	logger *slog.Logger
	router chi.Router
	now    func() time.Time
}

// New creates a server for a.
func New(a *app.App, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:    a,
		logger: logger,
		now:    time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", s.handleListRecipes)
			r.Post("/", s.handleAddRecipe)
			r.Get("/categories", s.handleCategories)
			r.Get("/random", s.handleRandomRecipe)
			r.Route("/{recipeID}", func(r chi.Router) {
				r.Get("/", s.handleGetRecipe)
				r.Put("/", s.handleUpdateRecipe)
				r.Delete("/", s.handleDeleteRecipe)
				r.Post("/favorite", s.handleToggleFavorite)
				r.Post("/shopping-list", s.handleAddRecipeToShoppingList)
			})
		})

		r.Route("/meal-plan", func(r chi.Router) {
			r.Get("/", s.handleGetMealPlan)
			r.Put("/", s.handleReplaceMealPlan)
			r.Get("/recipe-ids", s.handleAssignedRecipeIDs)
			r.Delete("/{day}", s.handleClearDay)
			r.Get("/{day}/{slot}", s.handleGetSlot)
			r.Put("/{day}/{slot}", s.handleAssign)
			r.Delete("/{day}/{slot}", s.handleUnassign)
		})

		r.Route("/shopping-list", func(r chi.Router) {
			r.Get("/", s.handleListShopping)
			r.Post("/", s.handleAddShoppingItems)
			r.Put("/", s.handleReplaceShopping)
			r.Delete("/", s.handleClearShopping)
			r.Post("/generate", s.handleGenerateShopping)
			r.Get("/export", s.handleExportShopping)
			r.Delete("/checked", s.handleClearChecked)
			r.Post("/{itemID}/toggle", s.handleToggleItem)
			r.Delete("/{itemID}", s.handleRemoveItem)
		})

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", s.handleListCollections)
			r.Post("/", s.handleCreateCollection)
			r.Get("/{collectionID}", s.handleGetCollection)
			r.Delete("/{collectionID}", s.handleDeleteCollection)
			r.Put("/{collectionID}/recipes/{recipeID}", s.handleCollectionAddRecipe)
			r.Delete("/{collectionID}/recipes/{recipeID}", s.handleCollectionRemoveRecipe)
		})

		r.Route("/discover", func(r chi.Router) {
			r.Get("/search", s.handleDiscoverSearch)
			r.Get("/categories", s.handleDiscoverCategories)
			r.Get("/categories/{category}", s.handleDiscoverCategory)
			r.Get("/random", s.handleDiscoverRandom)
			r.Get("/meals/{mealID}", s.handleDiscoverMeal)
			r.Post("/meals/{mealID}/import", s.handleImportMeal)
		})

		r.Post("/clip", s.handleClip)

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Delete("/data", s.handleClearAll)
	})

	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Health())
}
