package mealdb

import (
	"regexp"
	"strings"

	"smart-cookbook/internal/recipe"
)

const (
	defaultTitle    = "Untitled Recipe"
	defaultCategory = "other"
)

var stepHeading = regexp.MustCompile(`(?i)^STEP \d+$`)

// ConvertToDraft maps a meal onto a recipe draft.
func ConvertToDraft(m Meal) recipe.Draft {
	d := recipe.Draft{
		Title:       m.Name,
		Ingredients: []string{},
		Steps:       []string{},
		Tags:        []string{},
		Category:    strings.ToLower(m.Category),
		Image:       m.Thumbnail,
	}
	if d.Title == "" {
		d.Title = defaultTitle
	}
	if d.Category == "" {
		d.Category = defaultCategory
	}

	for i := 0; i < MaxIngredients; i++ {
		ing := strings.TrimSpace(m.Ingredients[i])
		if ing == "" {
			continue
		}
		if measure := strings.TrimSpace(m.Measures[i]); measure != "" {
			ing = measure + " " + ing
		}
		d.Ingredients = append(d.Ingredients, ing)
	}

	for _, line := range strings.Split(m.Instructions, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || stepHeading.MatchString(line) {
			continue
		}
		d.Steps = append(d.Steps, line)
	}

	for _, tag := range strings.Split(m.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			d.Tags = append(d.Tags, tag)
		}
	}
	return d
}

// IsImportable reports whether a draft has a title, an ingredient and a step.
func IsImportable(d recipe.Draft) bool {
	return strings.TrimSpace(d.Title) != "" && len(d.Ingredients) > 0 && len(d.Steps) > 0
}
