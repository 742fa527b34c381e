package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"smart-cookbook/internal/app"
	"smart-cookbook/internal/collection"
	"smart-cookbook/internal/planner"
	"smart-cookbook/internal/recipe"
	"smart-cookbook/internal/shopping"
)

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps core errors onto status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *recipe.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid recipe", Fields: verr.Fields})
	case errors.Is(err, recipe.ErrNotFound),
		errors.Is(err, collection.ErrNotFound),
		errors.Is(err, app.ErrMealNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrInvalidDay),
		errors.Is(err, planner.ErrInvalidSlot),
		errors.Is(err, planner.ErrMissingRecipeID),
		errors.Is(err, collection.ErrBlankName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotImportable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// --- Recipes ---

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	favorites, _ := strconv.ParseBool(q.Get("favorites"))
	writeJSON(w, http.StatusOK, s.app.Recipes.Filter(recipe.Filter{
		Search:        q.Get("search"),
		Category:      q.Get("category"),
		Difficulty:    q.Get("difficulty"),
		FavoritesOnly: favorites,
	}))
}

func (s *Server) handleAddRecipe(w http.ResponseWriter, r *http.Request) {
	var d recipe.Draft
	if !decode(w, r, &d) {
		return
	}
	rec, err := s.app.Recipes.Add(r.Context(), d)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Recipes.Categories())
}

func (s *Server) handleRandomRecipe(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.app.RandomRecipe()
	if !ok {
		writeError(w, http.StatusNotFound, "no recipes yet")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.app.Recipes.Get(chi.URLParam(r, "recipeID"))
	if !ok {
		writeDomainError(w, recipe.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	var d recipe.Draft
	if !decode(w, r, &d) {
		return
	}
	rec, err := s.app.Recipes.Update(r.Context(), chi.URLParam(r, "recipeID"), d)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	s.app.Recipes.Delete(r.Context(), chi.URLParam(r, "recipeID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.app.Recipes.ToggleFavorite(r.Context(), chi.URLParam(r, "recipeID"))
	if !ok {
		writeDomainError(w, recipe.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAddRecipeToShoppingList(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.AddRecipeToShoppingList(r.Context(), chi.URLParam(r, "recipeID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, items)
}

// --- Meal plan ---

func (s *Server) handleGetMealPlan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.MealPlan.Plan())
}

func (s *Server) handleReplaceMealPlan(w http.ResponseWriter, r *http.Request) {
	var plan planner.MealPlan
	if !decode(w, r, &plan) {
		return
	}
	s.app.MealPlan.Replace(r.Context(), plan)
	writeJSON(w, http.StatusOK, s.app.MealPlan.Plan())
}

func (s *Server) handleAssignedRecipeIDs(w http.ResponseWriter, r *http.Request) {
	ids := s.app.MealPlan.AllAssignedRecipeIDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.app.MealPlan.Get(daySlot(r))
	if !ok {
		writeError(w, http.StatusNotFound, "nothing planned")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recipeId": id})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipeID string `json:"recipeId"`
	}
	if !decode(w, r, &req) {
		return
	}
	day, slot := daySlot(r)
	if err := s.app.MealPlan.Assign(r.Context(), day, slot, req.RecipeID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.MealPlan.Plan())
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	day, slot := daySlot(r)
	s.app.MealPlan.Unassign(r.Context(), day, slot)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearDay(w http.ResponseWriter, r *http.Request) {
	s.app.MealPlan.ClearDay(r.Context(), planner.Day(chi.URLParam(r, "day")))
	w.WriteHeader(http.StatusNoContent)
}

func daySlot(r *http.Request) (planner.Day, planner.Slot) {
	return planner.Day(chi.URLParam(r, "day")), planner.Slot(chi.URLParam(r, "slot"))
}

// --- Shopping list ---

type shoppingListResponse struct {
	Items  []shopping.Item `json:"items"`
	Counts shopping.Counts `json:"counts"`
}

func (s *Server) shoppingList() shoppingListResponse {
	return shoppingListResponse{Items: s.app.Shopping.Items(), Counts: s.app.Shopping.Counts()}
}

func (s *Server) handleListShopping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shoppingList())
}

func (s *Server) handleAddShoppingItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ingredient  string   `json:"ingredient"`
		Ingredients []string `json:"ingredients"`
		RecipeID    string   `json:"recipeId"`
	}
	if !decode(w, r, &req) {
		return
	}
	ingredients := req.Ingredients
	if req.Ingredient != "" {
		ingredients = append([]string{req.Ingredient}, ingredients...)
	}
	if len(ingredients) == 0 {
		writeError(w, http.StatusBadRequest, "ingredient is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.app.Shopping.AddItems(r.Context(), ingredients, req.RecipeID))
}

func (s *Server) handleReplaceShopping(w http.ResponseWriter, r *http.Request) {
	var items []shopping.Item
	if !decode(w, r, &items) {
		return
	}
	s.app.Shopping.Replace(r.Context(), items)
	writeJSON(w, http.StatusOK, s.shoppingList())
}

func (s *Server) handleClearShopping(w http.ResponseWriter, r *http.Request) {
	s.app.Shopping.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerateShopping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.app.GenerateShoppingList(r.Context()))
}

func (s *Server) handleExportShopping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", shopping.ExportFileName(s.now())))
	_, _ = io.WriteString(w, shopping.ExportAsText(s.app.Shopping.Items()))
}

func (s *Server) handleClearChecked(w http.ResponseWriter, r *http.Request) {
	removed := s.app.Shopping.ClearChecked(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	if !s.app.Shopping.Toggle(r.Context(), chi.URLParam(r, "itemID")) {
		writeError(w, http.StatusNotFound, "shopping item not found")
		return
	}
	writeJSON(w, http.StatusOK, s.shoppingList())
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.app.Shopping.Remove(r.Context(), chi.URLParam(r, "itemID"))
	w.WriteHeader(http.StatusNoContent)
}

// --- Collections ---

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Collections.List())
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := s.app.Collections.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.app.Collections.Get(chi.URLParam(r, "collectionID"))
	if !ok {
		writeDomainError(w, collection.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	s.app.Collections.Delete(r.Context(), chi.URLParam(r, "collectionID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCollectionAddRecipe(w http.ResponseWriter, r *http.Request) {
	c, err := s.app.Collections.AddRecipe(r.Context(), chi.URLParam(r, "collectionID"), chi.URLParam(r, "recipeID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCollectionRemoveRecipe(w http.ResponseWriter, r *http.Request) {
	c, err := s.app.Collections.RemoveRecipe(r.Context(), chi.URLParam(r, "collectionID"), chi.URLParam(r, "recipeID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Discover (TheMealDB) ---

func (s *Server) handleDiscoverSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.MealDB.SearchByName(r.Context(), r.URL.Query().Get("q")))
}

func (s *Server) handleDiscoverCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.MealDB.Categories(r.Context()))
}

func (s *Server) handleDiscoverCategory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.MealDB.FilterByCategory(r.Context(), chi.URLParam(r, "category")))
}

func (s *Server) handleDiscoverRandom(w http.ResponseWriter, r *http.Request) {
	meal, ok := s.app.MealDB.Random(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "no meal available")
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (s *Server) handleDiscoverMeal(w http.ResponseWriter, r *http.Request) {
	meal, ok := s.app.MealDB.Lookup(r.Context(), chi.URLParam(r, "mealID"))
	if !ok {
		writeDomainError(w, app.ErrMealNotFound)
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (s *Server) handleImportMeal(w http.ResponseWriter, r *http.Request) {
	rec, err := s.app.ImportMeal(r.Context(), chi.URLParam(r, "mealID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	rec, err := s.app.ClipURL(r.Context(), req.URL)
	if err != nil {
		var verr *recipe.ValidationError
		if errors.Is(err, app.ErrNotImportable) || errors.As(err, &verr) {
			writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// --- Bulk data ---

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.app.Export(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=smart-cookbook-%s.json", s.now().Format("2006-01-02")))
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !s.app.Import(r.Context(), data) {
		writeError(w, http.StatusBadRequest, "import data is not a valid export")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.app.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
