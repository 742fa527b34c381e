// Package planner holds the weekly meal plan and the manager that edits and
// persists it.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"smart-cookbook/internal/metrics"
	"smart-cookbook/internal/storage"
)

// Manager owns the meal plan. Every mutation writes the plan once.
type Manager struct {
	mu     sync.RWMutex
	gw     *storage.Gateway
	logger *slog.Logger
	plan   MealPlan
}

// NewManager creates a manager with an empty plan.
func NewManager(gw *storage.Gateway, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{gw: gw, logger: logger, plan: MealPlan{}}
}

// Load replaces the in-memory plan with the persisted one.
func (m *Manager) Load(ctx context.Context) {
	plan := storage.Read(ctx, m.gw, storage.KeyMealPlan, MealPlan{})
	if plan == nil {
		plan = MealPlan{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.plan = plan
}

// Assign sets the recipe for a day and slot, replacing any previous one.
func (m *Manager) Assign(ctx context.Context, day Day, slot Slot, recipeID string) error {
	if !day.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	if recipeID == "" {
		return ErrMissingRecipeID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.plan.Clone()
	if next[day] == nil {
		next[day] = make(map[Slot]string)
	}
	next[day][slot] = recipeID
	m.commit(ctx, next)
	metrics.RecordMutation("meal_plan", "assign")
	return nil
}

// Unassign clears a single slot. It reports whether anything was removed.
func (m *Manager) Unassign(ctx context.Context, day Day, slot Slot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plan[day][slot]; !ok {
		return false
	}

	next := m.plan.Clone()
	delete(next[day], slot)
	if len(next[day]) == 0 {
		delete(next, day)
	}
	m.commit(ctx, next)
	metrics.RecordMutation("meal_plan", "unassign")
	return true
}

// ClearDay removes every slot of a day. It reports whether the day had any.
func (m *Manager) ClearDay(ctx context.Context, day Day) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plan[day]; !ok {
		return false
	}

	next := m.plan.Clone()
	delete(next, day)
	m.commit(ctx, next)
	metrics.RecordMutation("meal_plan", "clear_day")
	return true
}

// Replace swaps in a whole plan.
func (m *Manager) Replace(ctx context.Context, plan MealPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := plan.Clone()
	m.commit(ctx, next)
	metrics.RecordMutation("meal_plan", "replace")
}

// Get returns the recipe id planned for a day and slot.
func (m *Manager) Get(day Day, slot Slot) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan.Get(day, slot)
}

// Plan returns a copy of the current plan.
func (m *Manager) Plan() MealPlan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan.Clone()
}

// AllAssignedRecipeIDs returns the distinct planned recipe ids in weekday then
// slot order.
func (m *Manager) AllAssignedRecipeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan.RecipeIDs()
}

func (m *Manager) commit(ctx context.Context, next MealPlan) {
	m.plan = next
	if !m.gw.Write(ctx, storage.KeyMealPlan, next) {
		m.logger.Warn("meal plan kept in memory only")
	}
}
