package recipe

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smart-cookbook/internal/metrics"
	"smart-cookbook/internal/storage"
)

// Repository owns the recipe collection and persists it through the gateway.
type Repository struct {
	mu      sync.RWMutex
	gw      *storage.Gateway
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	recipes []Recipe
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) { r.newID = gen }
}

// WithLogger sets the repository logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRepository creates an empty repository. Call Load to read persisted state.
func NewRepository(gw *storage.Gateway, opts ...Option) *Repository {
	r := &Repository{
		gw:     gw,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID returns a time-ordered UUIDv7, falling back to a random UUID.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory collection with the persisted one.
func (r *Repository) Load(ctx context.Context) {
	recipes := storage.Read[[]Recipe](ctx, r.gw, storage.KeyRecipes, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipes = recipes
	r.logger.Debug("recipes loaded", slog.Int("count", len(recipes)))
}

// Add validates the draft and stores it as a new recipe at the front of the
// collection.
func (r *Repository) Add(ctx context.Context, d Draft) (Recipe, error) {
	if err := d.Validate(); err != nil {
		return Recipe{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rec := Recipe{
		ID:        r.newID(),
		Draft:     d.clone().withEmptySequences(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := make([]Recipe, 0, len(r.recipes)+1)
	next = append(next, rec)
	next = append(next, r.recipes...)
	r.commit(ctx, next)
	metrics.RecordMutation("recipe", "add")

	return rec.clone(), nil
}

// Update replaces every draft field of the recipe with the given id. The id and
// createdAt are preserved.
func (r *Repository) Update(ctx context.Context, id string, d Draft) (Recipe, error) {
	if err := d.Validate(); err != nil {
		return Recipe{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return Recipe{}, ErrNotFound
	}

	next := r.copyAll()
	rec := next[idx]
	rec.Draft = d.clone().withEmptySequences()
	rec.UpdatedAt = r.touch(rec.CreatedAt)
	next[idx] = rec
	r.commit(ctx, next)
	metrics.RecordMutation("recipe", "update")

	return rec.clone(), nil
}

// Delete removes the recipe with the given id. It reports whether a recipe was
// removed; meal plans and collections referencing it are left alone.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return false
	}

	next := make([]Recipe, 0, len(r.recipes)-1)
	next = append(next, r.recipes[:idx]...)
	next = append(next, r.recipes[idx+1:]...)
	r.commit(ctx, next)
	metrics.RecordMutation("recipe", "delete")
	return true
}

// ToggleFavorite flips the favorite flag of the recipe with the given id.
func (r *Repository) ToggleFavorite(ctx context.Context, id string) (Recipe, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return Recipe{}, false
	}

	next := r.copyAll()
	rec := next[idx]
	rec.IsFavorite = !rec.IsFavorite
	rec.UpdatedAt = r.touch(rec.CreatedAt)
	next[idx] = rec
	r.commit(ctx, next)
	metrics.RecordMutation("recipe", "toggle_favorite")

	return rec.clone(), true
}

// Replace swaps in a whole collection, as restored from a backup.
func (r *Repository) Replace(ctx context.Context, recipes []Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Recipe, len(recipes))
	for i, rec := range recipes {
		rec.Draft = rec.Draft.clone().withEmptySequences()
		next[i] = rec
	}
	r.commit(ctx, next)
	metrics.RecordMutation("recipe", "replace")
}

// Get returns the recipe with the given id.
func (r *Repository) Get(id string) (Recipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return Recipe{}, false
	}
	return r.recipes[idx].clone(), true
}

// List returns a copy of the whole collection in stored order.
func (r *Repository) List() []Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyAll()
}

// Random returns a uniformly chosen recipe.
func (r *Repository) Random() (Recipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.recipes) == 0 {
		return Recipe{}, false
	}
	return r.recipes[rand.IntN(len(r.recipes))].clone(), true
}

// Filter returns the recipes matching every criterion of f, in stored order.
func (r *Repository) Filter(f Filter) []Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return f.Apply(r.recipes)
}

// Categories returns "all" followed by each distinct category in first-seen
// order.
func (r *Repository) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Categories(r.recipes)
}

// touch returns the next updatedAt, never earlier than createdAt.
func (r *Repository) touch(createdAt time.Time) time.Time {
	now := r.now()
	if now.Before(createdAt) {
		return createdAt
	}
	return now
}

func (r *Repository) indexOf(id string) int {
	for i := range r.recipes {
		if r.recipes[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) copyAll() []Recipe {
	out := make([]Recipe, len(r.recipes))
	for i, rec := range r.recipes {
		out[i] = rec.clone()
	}
	return out
}

// commit swaps in the new collection and writes it once. A failed write keeps
// the in-memory state; the gateway has already logged the cause.
func (r *Repository) commit(ctx context.Context, next []Recipe) {
	r.recipes = next
	if !r.gw.Write(ctx, storage.KeyRecipes, next) {
		r.logger.Warn("recipes kept in memory only", slog.Int("count", len(next)))
	}
}

// Filter narrows a recipe list. Empty or "all" category and difficulty values
// match everything.
type Filter struct {
	Search        string `json:"search"`
	Category      string `json:"category"`
	Difficulty    string `json:"difficulty"`
	FavoritesOnly bool   `json:"favoritesOnly"`
}

// Apply returns copies of the recipes matching f, preserving order.
func (f Filter) Apply(recipes []Recipe) []Recipe {
	needle := strings.ToLower(f.Search)
	out := make([]Recipe, 0, len(recipes))
	for _, rec := range recipes {
		if needle != "" && !matchesSearch(rec, needle) {
			continue
		}
		if !isAll(f.Category) && rec.Category != f.Category {
			continue
		}
		if !isAll(f.Difficulty) && string(rec.Difficulty) != f.Difficulty {
			continue
		}
		if f.FavoritesOnly && !rec.IsFavorite {
			continue
		}
		out = append(out, rec.clone())
	}
	return out
}

func isAll(v string) bool {
	return v == "" || v == FilterAll
}

func matchesSearch(rec Recipe, needle string) bool {
	if strings.Contains(strings.ToLower(rec.Title), needle) {
		return true
	}
	for _, ing := range rec.Ingredients {
		if strings.Contains(strings.ToLower(ing), needle) {
			return true
		}
	}
	for _, tag := range rec.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Categories returns "all" followed by the distinct categories of recipes in
// first-seen order.
func Categories(recipes []Recipe) []string {
	seen := make(map[string]struct{}, len(recipes))
	out := []string{FilterAll}
	for _, rec := range recipes {
		if _, ok := seen[rec.Category]; ok {
			continue
		}
		seen[rec.Category] = struct{}{}
		out = append(out, rec.Category)
	}
	return out
}
