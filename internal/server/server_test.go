package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-cookbook/internal/app"
	"smart-cookbook/internal/collection"
	"smart-cookbook/internal/config"
	"smart-cookbook/internal/planner"
	"smart-cookbook/internal/recipe"
	"smart-cookbook/internal/shopping"
	"smart-cookbook/internal/storage/storagetest"
)

type testEnv struct {
	app    *app.App
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mealdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search.php":
			fmt.Fprint(w, `{"meals":[{"idMeal":"7","strMeal":"Kedgeree","strCategory":"Seafood"}]}`)
		case "/lookup.php":
			if r.URL.Query().Get("i") != "7" {
				fmt.Fprint(w, `{"meals":null}`)
				return
			}
			fmt.Fprint(w, `{"meals":[{"idMeal":"7","strMeal":"Kedgeree","strCategory":"Seafood","strInstructions":"Cook rice.\nAdd fish.","strIngredient1":"rice","strMeasure1":"300g"}]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(mealdb.Close)

	cfg := config.Default()
	cfg.StorageBackend = config.BackendMemory
	cfg.MealDBBaseURL = mealdb.URL
	cfg.RetryBaseDelay = 0

	logger := storagetest.DiscardLogger()
	a := app.New(context.Background(), cfg, logger)
	s := New(a, logger)
	s.now = func() time.Time { return time.Date(2026, 4, 9, 10, 0, 0, 0, time.UTC) }

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{app: a, server: ts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = strings.NewReader(string(data))
	}

	req, err := http.NewRequest(method, e.server.URL+path, r)
	require.NoError(t, err)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRecipeEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/recipes", recipe.Draft{Title: "Chocolate Cake", Category: "dessert", Ingredients: []string{"cocoa"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cake := decodeBody[recipe.Recipe](t, resp)
	assert.NotEmpty(t, cake.ID)

	t.Run("Validation", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/recipes", map[string]any{"title": " ", "difficulty": "impossible"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeBody[errorResponse](t, resp)
		assert.ElementsMatch(t, []string{"Title", "Difficulty"}, body.Fields)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/recipes", `{"title":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Filter", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/recipes?search=CHOC&category=dessert", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decodeBody[[]recipe.Recipe](t, resp), 1)

		resp = env.do(t, http.MethodGet, "/api/recipes?favorites=true", nil)
		assert.Empty(t, decodeBody[[]recipe.Recipe](t, resp))
	})

	t.Run("Categories", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/recipes/categories", nil)
		assert.Equal(t, []string{"all", "dessert"}, decodeBody[[]string](t, resp))
	})

	t.Run("UpdateAndFavorite", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/api/recipes/"+cake.ID, recipe.Draft{Title: "Fudge Cake"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Fudge Cake", decodeBody[recipe.Recipe](t, resp).Title)

		resp = env.do(t, http.MethodPost, "/api/recipes/"+cake.ID+"/favorite", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decodeBody[recipe.Recipe](t, resp).IsFavorite)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/api/recipes/missing", recipe.Draft{Title: "x"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Random", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/recipes/random", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Delete", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/api/recipes/"+cake.ID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp = env.do(t, http.MethodGet, "/api/recipes/"+cake.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestMealPlanAndShoppingEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.app.Recipes.Add(ctx, recipe.Draft{Title: "Porridge", Ingredients: []string{"oats", "milk"}})
	require.NoError(t, err)

	resp := env.do(t, http.MethodPut, "/api/meal-plan/monday/breakfast", map[string]string{"recipeId": rec.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, planner.MealPlan{planner.Monday: {planner.Breakfast: rec.ID}}, decodeBody[planner.MealPlan](t, resp))

	t.Run("InvalidDay", func(t *testing.T) {
		resp := env.do(t, http.MethodPut, "/api/meal-plan/someday/breakfast", map[string]string{"recipeId": rec.ID})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("AssignedIDs", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/meal-plan/recipe-ids", nil)
		assert.Equal(t, []string{rec.ID}, decodeBody[[]string](t, resp))
	})

	t.Run("Generate", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/shopping-list/generate", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Len(t, decodeBody[[]shopping.Item](t, resp), 2)
	})

	t.Run("ToggleAndExport", func(t *testing.T) {
		items := env.app.Shopping.Items()
		resp := env.do(t, http.MethodPost, "/api/shopping-list/"+items[0].ID+"/toggle", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		list := decodeBody[shoppingListResponse](t, resp)
		assert.Equal(t, shopping.Counts{Unchecked: 1, Checked: 1}, list.Counts)

		resp = env.do(t, http.MethodGet, "/api/shopping-list/export", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "attachment; filename=shopping-list-2026-04-09.txt", resp.Header.Get("Content-Disposition"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "✓ oats\n○ milk", string(body))
	})

	t.Run("ClearChecked", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/api/shopping-list/checked", nil)
		assert.Equal(t, map[string]int{"removed": 1}, decodeBody[map[string]int](t, resp))
	})

	t.Run("AddManualItem", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/shopping-list", map[string]string{"ingredient": "coffee"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Len(t, env.app.Shopping.Items(), 2)
	})

	t.Run("ClearDay", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/api/meal-plan/monday", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, env.app.MealPlan.Plan())
	})
}

func TestCollectionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/collections", map[string]string{"name": "Favourites"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decodeBody[collection.Collection](t, resp)

	resp = env.do(t, http.MethodPut, "/api/collections/"+c.ID+"/recipes/r1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"r1"}, decodeBody[collection.Collection](t, resp).RecipeIDs)

	resp = env.do(t, http.MethodPost, "/api/collections", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/collections/nope/recipes/r1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDiscoverEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/discover/search?q=kedgeree", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	meals := decodeBody[[]map[string]any](t, resp)
	require.Len(t, meals, 1)
	assert.Equal(t, "Kedgeree", meals[0]["name"])

	t.Run("UnavailableDegradesToEmpty", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/discover/categories", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, decodeBody[[]string](t, resp))
	})

	t.Run("Import", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/discover/meals/7/import", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		rec := decodeBody[recipe.Recipe](t, resp)
		assert.Equal(t, []string{"300g rice"}, rec.Ingredients)
		assert.Equal(t, "seafood", rec.Category)
	})

	t.Run("ImportMissing", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/discover/meals/8/import", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestBulkDataEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.app.Recipes.Add(ctx, recipe.Draft{Title: "Bread"})
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	export, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	resp = env.do(t, http.MethodDelete, "/api/data", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, env.app.Recipes.List())

	resp = env.do(t, http.MethodPost, "/api/import", string(export))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Len(t, env.app.Recipes.List(), 1)

	resp = env.do(t, http.MethodPost, "/api/import", "[]")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "memory", health["backend"])

	resp = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cookbook_storage_operations_total")
}
