package mealdb

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxIngredients is the number of ingredient slots in a meal record.
const MaxIngredients = 20

// Meal is a TheMealDB meal record. Filter results carry only ID, Name and
// Thumbnail.
type Meal struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Category     string                 `json:"category,omitempty"`
	Area         string                 `json:"area,omitempty"`
	Instructions string                 `json:"instructions,omitempty"`
	Thumbnail    string                 `json:"thumbnail,omitempty"`
	Tags         string                 `json:"tags,omitempty"`
	Ingredients  [MaxIngredients]string `json:"-"`
	Measures     [MaxIngredients]string `json:"-"`
}

// UnmarshalJSON decodes TheMealDB's flat wire format, where ingredient slots
// are numbered keys and any field may be null.
func (m *Meal) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode meal: %w", err)
	}

	str := func(key string) string {
		switch v := raw[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return ""
		}
	}

	*m = Meal{
		ID:           str("idMeal"),
		Name:         str("strMeal"),
		Category:     str("strCategory"),
		Area:         str("strArea"),
		Instructions: str("strInstructions"),
		Thumbnail:    str("strMealThumb"),
		Tags:         str("strTags"),
	}
	for i := 0; i < MaxIngredients; i++ {
		m.Ingredients[i] = str(fmt.Sprintf("strIngredient%d", i+1))
		m.Measures[i] = str(fmt.Sprintf("strMeasure%d", i+1))
	}
	return nil
}

type mealsResponse struct {
	Meals []Meal `json:"meals"`
}

type categoriesResponse struct {
	Categories []struct {
		Name string `json:"strCategory"`
	} `json:"categories"`
	// list.php?c=list answers under "meals".
	Meals []struct {
		Name string `json:"strCategory"`
	} `json:"meals"`
}
