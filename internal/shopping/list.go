// Package shopping derives shopping lists from meal plans and manages the
// persisted list.
//
// The list functions in this file are pure: they never modify their input and
// always return a new slice.
package shopping

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"smart-cookbook/internal/planner"
	"smart-cookbook/internal/recipe"
)

const (
	markChecked   = "✓"
	markUnchecked = "○"
)

// RecipeFinder looks up recipes by id.
type RecipeFinder interface {
	Get(id string) (recipe.Recipe, bool)
}

// GenerateFromMealPlan collects the ingredients of every planned recipe that
// still exists, in plan order. Duplicates are kept and dangling ids skipped.
func GenerateFromMealPlan(plan planner.MealPlan, recipes RecipeFinder) []string {
	var out []string
	for _, id := range plan.RecipeIDs() {
		rec, ok := recipes.Get(id)
		if !ok {
			continue
		}
		out = append(out, rec.Ingredients...)
	}
	return out
}

// Append adds one unchecked item per ingredient, tagged with recipeID when it
// is not empty.
func Append(list []Item, ingredients []string, recipeID string) []Item {
	out := make([]Item, 0, len(list)+len(ingredients))
	out = append(out, list...)
	for _, ing := range ingredients {
		out = append(out, Item{
			ID:         uuid.NewString(),
			Ingredient: ing,
			RecipeID:   recipeID,
		})
	}
	return out
}

// Toggle flips the checked state of the item with the given id.
func Toggle(list []Item, id string) []Item {
	out := make([]Item, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == id {
			out[i].Checked = !out[i].Checked
		}
	}
	return out
}

// Remove drops the item with the given id.
func Remove(list []Item, id string) []Item {
	return keep(list, func(it Item) bool { return it.ID != id })
}

// ClearChecked drops every checked item.
func ClearChecked(list []Item) []Item {
	return keep(list, func(it Item) bool { return !it.Checked })
}

// ClearAll returns an empty list.
func ClearAll([]Item) []Item {
	return []Item{}
}

func keep(list []Item, pred func(Item) bool) []Item {
	out := make([]Item, 0, len(list))
	for _, it := range list {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// ExportAsText renders one line per item, prefixed with a check mark for
// checked items and an open circle otherwise.
func ExportAsText(list []Item) string {
	lines := make([]string, len(list))
	for i, it := range list {
		mark := markUnchecked
		if it.Checked {
			mark = markChecked
		}
		lines[i] = mark + " " + it.Ingredient
	}
	return strings.Join(lines, "\n")
}

// ExportFileName is the download name for a text export made at t.
func ExportFileName(t time.Time) string {
	return "shopping-list-" + t.Format(time.DateOnly) + ".txt"
}

// Count tallies checked and unchecked items.
func Count(list []Item) Counts {
	var c Counts
	for _, it := range list {
		if it.Checked {
			c.Checked++
		} else {
			c.Unchecked++
		}
	}
	return c
}
