// Package backup exports, imports and clears every persisted document at once.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"smart-cookbook/internal/collection"
	"smart-cookbook/internal/planner"
	"smart-cookbook/internal/recipe"
	"smart-cookbook/internal/shopping"
	"smart-cookbook/internal/storage"
)

// Snapshot is the interchange document of a full export.
type Snapshot struct {
	Recipes      []recipe.Recipe         `json:"recipes"`
	MealPlan     planner.MealPlan        `json:"mealPlan"`
	ShoppingList []shopping.Item         `json:"shoppingList"`
	Collections  []collection.Collection `json:"collections"`
	ExportedAt   time.Time               `json:"exportedAt"`
}

// Service runs bulk operations against the gateway.
type Service struct {
	gw     *storage.Gateway
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a backup service.
func NewService(gw *storage.Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gw:     gw,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot reads the four documents, substituting empty values for missing
// ones.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		Recipes:      storage.Read(ctx, s.gw, storage.KeyRecipes, []recipe.Recipe{}),
		MealPlan:     storage.Read(ctx, s.gw, storage.KeyMealPlan, planner.MealPlan{}),
		ShoppingList: storage.Read(ctx, s.gw, storage.KeyShoppingList, []shopping.Item{}),
		Collections:  storage.Read(ctx, s.gw, storage.KeyCollections, []collection.Collection{}),
		ExportedAt:   s.now(),
	}
	if snap.Recipes == nil {
		snap.Recipes = []recipe.Recipe{}
	}
	if snap.MealPlan == nil {
		snap.MealPlan = planner.MealPlan{}
	}
	if snap.ShoppingList == nil {
		snap.ShoppingList = []shopping.Item{}
	}
	if snap.Collections == nil {
		snap.Collections = []collection.Collection{}
	}
	return snap
}

// ExportAll renders the current state as indented JSON.
func (s *Service) ExportAll(ctx context.Context) ([]byte, error) {
	data, err := json.MarshalIndent(s.Snapshot(ctx), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// Import holds the well-formed fields of an exported document. A nil field
// was absent, null or malformed.
type Import struct {
	Recipes      *[]recipe.Recipe
	MealPlan     *planner.MealPlan
	ShoppingList *[]shopping.Item
	Collections  *[]collection.Collection
}

// Decode parses an exported document without writing anything. It returns
// false when data is not a JSON object. Wrongly shaped fields are logged and
// left nil.
func (s *Service) Decode(data []byte) (Import, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		s.logger.Error("failed to import data", slog.String("error", errString(err)))
		return Import{}, false
	}

	return Import{
		Recipes:      decodeField[[]recipe.Recipe](s, fields, "recipes"),
		MealPlan:     decodeField[planner.MealPlan](s, fields, "mealPlan"),
		ShoppingList: decodeField[[]shopping.Item](s, fields, "shoppingList"),
		Collections:  decodeField[[]collection.Collection](s, fields, "collections"),
	}, true
}

// ImportAll writes each well-formed field of an exported document. It returns
// false, writing nothing, when data is not a JSON object. Missing, null and
// wrongly shaped fields are skipped individually.
func (s *Service) ImportAll(ctx context.Context, data []byte) bool {
	imp, ok := s.Decode(data)
	if !ok {
		return false
	}
	if imp.Recipes != nil {
		s.gw.Write(ctx, storage.KeyRecipes, *imp.Recipes)
	}
	if imp.MealPlan != nil {
		s.gw.Write(ctx, storage.KeyMealPlan, *imp.MealPlan)
	}
	if imp.ShoppingList != nil {
		s.gw.Write(ctx, storage.KeyShoppingList, *imp.ShoppingList)
	}
	if imp.Collections != nil {
		s.gw.Write(ctx, storage.KeyCollections, *imp.Collections)
	}
	return true
}

// ClearAll removes every persisted document.
func (s *Service) ClearAll(ctx context.Context) {
	for _, key := range storage.AllKeys {
		s.gw.Remove(ctx, key)
	}
	s.logger.Info("all stored data cleared")
}

func decodeField[T any](s *Service, fields map[string]json.RawMessage, name string) *T {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("skipping malformed import field", slog.String("field", name), slog.String("error", err.Error()))
		return nil
	}
	return &v
}

func errString(err error) string {
	if err == nil {
		return "not a JSON object"
	}
	return err.Error()
}
