// Package collection groups recipes into named, user-defined sets.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"smart-cookbook/internal/metrics"
	"smart-cookbook/internal/recipe"
	"smart-cookbook/internal/storage"
)

var (
	ErrNotFound  = errors.New("collection not found")
	ErrBlankName = errors.New("collection name is required")
)

// Collection is a named list of recipe ids. Ids may refer to deleted recipes.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"notblank"`
	Description string    `json:"description,omitempty"`
	RecipeIDs   []string  `json:"recipeIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (c Collection) clone() Collection {
	c.RecipeIDs = slices.Clone(c.RecipeIDs)
	return c
}

// Repository owns the collections and persists them through the gateway.
type Repository struct {
	mu          sync.RWMutex
	gw          *storage.Gateway
	logger      *slog.Logger
	now         func() time.Time
	collections []Collection
}

// NewRepository creates an empty repository.
func NewRepository(gw *storage.Gateway, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		gw:     gw,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Load replaces the in-memory collections with the persisted ones.
func (r *Repository) Load(ctx context.Context) {
	cs := storage.Read[[]Collection](ctx, r.gw, storage.KeyCollections, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections = cs
}

// Create adds a new empty collection.
func (r *Repository) Create(ctx context.Context, name, description string) (Collection, error) {
	c := Collection{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		RecipeIDs:   []string{},
	}
	if err := recipe.Validator().Struct(c); err != nil {
		return Collection{}, fmt.Errorf("%w: %v", ErrBlankName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = recipe.NewID()
	c.CreatedAt = r.now()
	next := append(slices.Clone(r.collections), c)
	r.commit(ctx, next, "create")
	return c.clone(), nil
}

// Delete removes a collection. Its recipes are untouched.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(r.collections), idx, idx+1)
	r.commit(ctx, next, "delete")
	return true
}

// AddRecipe adds a recipe id to a collection. Adding an id already present
// changes nothing.
func (r *Repository) AddRecipe(ctx context.Context, id, recipeID string) (Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return Collection{}, ErrNotFound
	}
	c := r.collections[idx]
	if slices.Contains(c.RecipeIDs, recipeID) {
		return c.clone(), nil
	}

	c = c.clone()
	c.RecipeIDs = append(c.RecipeIDs, recipeID)
	next := slices.Clone(r.collections)
	next[idx] = c
	r.commit(ctx, next, "add_recipe")
	return c.clone(), nil
}

// RemoveRecipe removes a recipe id from a collection.
func (r *Repository) RemoveRecipe(ctx context.Context, id, recipeID string) (Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return Collection{}, ErrNotFound
	}
	c := r.collections[idx]
	pos := slices.Index(c.RecipeIDs, recipeID)
	if pos < 0 {
		return c.clone(), nil
	}

	c = c.clone()
	c.RecipeIDs = slices.Delete(c.RecipeIDs, pos, pos+1)
	next := slices.Clone(r.collections)
	next[idx] = c
	r.commit(ctx, next, "remove_recipe")
	return c.clone(), nil
}

// Get returns the collection with the given id.
func (r *Repository) Get(id string) (Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return Collection{}, false
	}
	return r.collections[idx].clone(), true
}

// Replace swaps in every collection at once.
func (r *Repository) Replace(ctx context.Context, cs []Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Collection, len(cs))
	for i, c := range cs {
		next[i] = c.clone()
	}
	r.commit(ctx, next, "replace")
}

// List returns every collection in creation order.
func (r *Repository) List() []Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Collection, len(r.collections))
	for i, c := range r.collections {
		out[i] = c.clone()
	}
	return out
}

func (r *Repository) indexOf(id string) int {
	return slices.IndexFunc(r.collections, func(c Collection) bool { return c.ID == id })
}

func (r *Repository) commit(ctx context.Context, next []Collection, op string) {
	r.collections = next
	metrics.RecordMutation("collection", op)
	if !r.gw.Write(ctx, storage.KeyCollections, next) {
		r.logger.Warn("collections kept in memory only", slog.Int("count", len(next)))
	}
}
