package shopping

// Item is one line of the shopping list.
type Item struct {
	ID         string `json:"id"`
	Ingredient string `json:"ingredient"`
	Checked    bool   `json:"checked"`
	RecipeID   string `json:"recipeId,omitempty"`
}

// Counts summarizes a list.
type Counts struct {
	Unchecked int `json:"unchecked"`
	Checked   int `json:"checked"`
}
