package shopping

import (
	"context"
	"log/slog"
	"sync"

	"smart-cookbook/internal/metrics"
	"smart-cookbook/internal/storage"
)

// Manager owns the persisted shopping list.
type Manager struct {
	mu     sync.RWMutex
	gw     *storage.Gateway
	logger *slog.Logger
	items  []Item
}

// NewManager creates a manager with an empty list.
func NewManager(gw *storage.Gateway, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{gw: gw, logger: logger, items: []Item{}}
}

// Load replaces the in-memory list with the persisted one.
func (m *Manager) Load(ctx context.Context) {
	items := storage.Read(ctx, m.gw, storage.KeyShoppingList, []Item{})
	if items == nil {
		items = []Item{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// Items returns a copy of the list.
func (m *Manager) Items() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Item{}, m.items...)
}

// Counts tallies the current list.
func (m *Manager) Counts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Count(m.items)
}

// AddItem appends a single manually entered ingredient.
func (m *Manager) AddItem(ctx context.Context, ingredient string) Item {
	added := m.AddItems(ctx, []string{ingredient}, "")
	return added[0]
}

// AddItems appends one item per ingredient and returns the new items. An empty
// ingredient list changes nothing.
func (m *Manager) AddItems(ctx context.Context, ingredients []string, recipeID string) []Item {
	if len(ingredients) == 0 {
		return []Item{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := Append(m.items, ingredients, recipeID)
	m.commit(ctx, next, "add")
	return append([]Item{}, next[len(next)-len(ingredients):]...)
}

// Toggle flips the checked state of an item. It reports whether the item
// exists.
func (m *Manager) Toggle(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.has(id) {
		return false
	}
	m.commit(ctx, Toggle(m.items, id), "toggle")
	return true
}

// Remove deletes an item. It reports whether the item existed.
func (m *Manager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.has(id) {
		return false
	}
	m.commit(ctx, Remove(m.items, id), "remove")
	return true
}

// ClearChecked drops every checked item and returns how many were removed.
func (m *Manager) ClearChecked(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := ClearChecked(m.items)
	removed := len(m.items) - len(next)
	m.commit(ctx, next, "clear_checked")
	return removed
}

// ClearAll empties the list.
func (m *Manager) ClearAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commit(ctx, ClearAll(m.items), "clear_all")
}

// Replace swaps in a whole list.
func (m *Manager) Replace(ctx context.Context, items []Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commit(ctx, append([]Item{}, items...), "replace")
}

func (m *Manager) has(id string) bool {
	for _, it := range m.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (m *Manager) commit(ctx context.Context, next []Item, op string) {
	m.items = next
	metrics.RecordMutation("shopping_item", op)
	if !m.gw.Write(ctx, storage.KeyShoppingList, next) {
		m.logger.Warn("shopping list kept in memory only", slog.Int("items", len(next)))
	}
}
