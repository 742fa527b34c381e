// Package app wires the cookbook components together and hosts the
// operations that span more than one of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"golang.org/x/time/rate"

	"smart-cookbook/internal/backup"
	"smart-cookbook/internal/clipper"
	"smart-cookbook/internal/collection"
	"smart-cookbook/internal/config"
	"smart-cookbook/internal/database"
	"smart-cookbook/internal/fetch"
	"smart-cookbook/internal/mealdb"
	"smart-cookbook/internal/metrics"
	"smart-cookbook/internal/planner"
	"smart-cookbook/internal/recipe"
	"smart-cookbook/internal/shopping"
	"smart-cookbook/internal/storage"
)

var (
	// ErrMealNotFound is returned when TheMealDB has no meal with the given id.
	ErrMealNotFound = errors.New("meal not found")
	// ErrNotImportable is returned for external recipes missing a title,
	// ingredients or steps.
	ErrNotImportable = errors.New("recipe is missing a title, ingredients or steps")
)

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	gw     *storage.Gateway

	Recipes     *recipe.Repository
	MealPlan    *planner.Manager
	Shopping    *shopping.Manager
	Collections *collection.Repository
	Backup      *backup.Service
	MealDB      *mealdb.Client
	Clipper     *clipper.Clipper
}

// NewApp creates an App over an existing gateway and external clients.
func NewApp(cfg *config.Config, gw *storage.Gateway, mealDB *mealdb.Client, clip *clipper.Clipper, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:         cfg,
		logger:      logger,
		gw:          gw,
		Recipes:     recipe.NewRepository(gw, recipe.WithLogger(logger)),
		MealPlan:    planner.NewManager(gw, logger),
		Shopping:    shopping.NewManager(gw, logger),
		Collections: collection.NewRepository(gw, logger),
		Backup:      backup.NewService(gw, logger),
		MealDB:      mealDB,
		Clipper:     clip,
	}
}

// New builds the full application from configuration and loads persisted
// state. A backend that fails to open leaves the app running on an
// unavailable gateway.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) *App {
	backend, err := OpenBackend(cfg, logger)
	if err != nil {
		logger.Error("storage unavailable, changes will not be saved", slog.String("backend", cfg.StorageBackend), slog.String("error", err.Error()))
		backend = nil
	}
	gw := storage.NewGateway(backend, storage.WithLogger(logger), storage.WithMaxValueBytes(cfg.MaxValueBytes))

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	httpFetcher := fetch.NewHTTPFetcher(&http.Client{Timeout: cfg.RequestTimeout}, cfg.RequestTimeout, rate.NewLimiter(limit, 1))
	retry := fetch.RetryConfig{MaxAttempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}

	jsonRetry := retry
	jsonRetry.Check = fetch.CheckJSON
	mealDB := mealdb.NewClient(cfg.MealDBBaseURL, fetch.NewRetryingFetcher(httpFetcher, jsonRetry, logger), logger)
	clip := clipper.NewClipper(fetch.NewRetryingFetcher(httpFetcher, retry, logger))

	a := NewApp(cfg, gw, mealDB, clip, logger)
	a.Load(ctx)
	return a
}

// OpenBackend opens the storage backend named by the configuration.
func OpenBackend(cfg *config.Config, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil
	case config.BackendFile:
		return storage.NewFileBackend(cfg.DataDir)
	case config.BackendSQLite:
		db, err := database.NewDB(filepath.Join(cfg.DataDir, "cookbook.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return db, nil
	case config.BackendBadger:
		return storage.OpenBadger(storage.BadgerConfig{
			Path:       filepath.Join(cfg.DataDir, "badger"),
			SyncWrites: true,
			Logger:     logger.With(slog.String("component", "badger")),
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Load reads every persisted document into memory.
func (a *App) Load(ctx context.Context) {
	a.Recipes.Load(ctx)
	a.MealPlan.Load(ctx)
	a.Shopping.Load(ctx)
	a.Collections.Load(ctx)
	a.logger.Info("cookbook loaded",
		slog.Int("recipes", len(a.Recipes.List())),
		slog.Int("shopping_items", len(a.Shopping.Items())),
		slog.Int("collections", len(a.Collections.List())),
		slog.Bool("persistent", a.gw.Available()),
	)
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.gw.Close()
}

// GenerateShoppingList appends the ingredients of every planned recipe to the
// shopping list and returns the added items.
func (a *App) GenerateShoppingList(ctx context.Context) []shopping.Item {
	recipes := recipe.NewSet(a.Recipes.List())
	ingredients := shopping.GenerateFromMealPlan(a.MealPlan.Plan(), recipes)
	added := a.Shopping.AddItems(ctx, ingredients, "")
	a.logger.Info("shopping list generated from meal plan", slog.Int("items", len(added)))
	return added
}

// AddRecipeToShoppingList appends one recipe's ingredients, tagged with its id.
func (a *App) AddRecipeToShoppingList(ctx context.Context, recipeID string) ([]shopping.Item, error) {
	rec, ok := a.Recipes.Get(recipeID)
	if !ok {
		return nil, recipe.ErrNotFound
	}
	return a.Shopping.AddItems(ctx, rec.Ingredients, rec.ID), nil
}

// ImportMeal looks up a TheMealDB meal and adds it to the recipe collection.
func (a *App) ImportMeal(ctx context.Context, mealID string) (recipe.Recipe, error) {
	meal, ok := a.MealDB.Lookup(ctx, mealID)
	if !ok {
		return recipe.Recipe{}, ErrMealNotFound
	}
	return a.importDraft(ctx, mealdb.ConvertToDraft(meal), "mealdb")
}

// ClipURL extracts the recipe published on a web page and adds it to the
// collection.
func (a *App) ClipURL(ctx context.Context, url string) (recipe.Recipe, error) {
	draft, err := a.Clipper.Clip(ctx, url)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to clip %s: %w", url, err)
	}
	return a.importDraft(ctx, draft, "web")
}

func (a *App) importDraft(ctx context.Context, d recipe.Draft, source string) (recipe.Recipe, error) {
	if !mealdb.IsImportable(d) {
		return recipe.Recipe{}, ErrNotImportable
	}
	rec, err := a.Recipes.Add(ctx, d)
	if err != nil {
		return recipe.Recipe{}, err
	}
	a.logger.Info("recipe imported", slog.String("source", source), slog.String("id", rec.ID), slog.String("title", rec.Title))
	return rec, nil
}

// RandomRecipe picks one recipe from the collection.
func (a *App) RandomRecipe() (recipe.Recipe, bool) {
	return a.Recipes.Random()
}

// Export returns the full backup document.
func (a *App) Export(ctx context.Context) ([]byte, error) {
	return a.Backup.ExportAll(ctx)
}

// Import restores a backup document. Each well-formed field replaces the
// matching component's state and is persisted once; components keep the
// imported state in memory when storage rejects the write.
func (a *App) Import(ctx context.Context, data []byte) bool {
	imp, ok := a.Backup.Decode(data)
	if !ok {
		return false
	}
	if imp.Recipes != nil {
		a.Recipes.Replace(ctx, *imp.Recipes)
	}
	if imp.MealPlan != nil {
		a.MealPlan.Replace(ctx, *imp.MealPlan)
	}
	if imp.ShoppingList != nil {
		a.Shopping.Replace(ctx, *imp.ShoppingList)
	}
	if imp.Collections != nil {
		a.Collections.Replace(ctx, *imp.Collections)
	}
	a.logger.Info("backup imported")
	return true
}

// ClearAll deletes all persisted data and reloads every component.
func (a *App) ClearAll(ctx context.Context) {
	a.Backup.ClearAll(ctx)
	a.Load(ctx)
}

// Health reports process and storage statistics.
func (a *App) Health() metrics.SysHealth {
	backend, dataDir := "unavailable", ""
	if a.gw.Available() {
		backend = a.cfg.StorageBackend
		if backend != config.BackendMemory {
			dataDir = a.cfg.DataDir
		}
	}
	return metrics.GetSysHealth(backend, dataDir)
}
