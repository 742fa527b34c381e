package mealdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-cookbook/internal/fetch"
	"smart-cookbook/internal/storage/storagetest"
)

const arrabiata = `{
	"idMeal": "52771",
	"strMeal": "Spicy Arrabiata Penne",
	"strCategory": "Vegetarian",
	"strArea": "Italian",
	"strInstructions": "STEP 1\r\nBring a pot of water to the boil.\r\n\r\nstep 2\r\n  Add the penne.  \r\n",
	"strMealThumb": "https://www.themealdb.com/images/media/meals/ustsqw1468250014.jpg",
	"strTags": "Pasta, Curry,,",
	"strIngredient1": "penne rigate",
	"strMeasure1": "1 pound",
	"strIngredient2": "olive oil",
	"strMeasure2": " ",
	"strIngredient3": "",
	"strMeasure3": "1 tsp",
	"strIngredient4": " garlic ",
	"strMeasure4": null,
	"strIngredient5": null,
	"strMeasure5": null
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f := fetch.NewRetryingFetcher(
		fetch.NewHTTPFetcher(server.Client(), 0, nil),
		fetch.RetryConfig{MaxAttempts: 3, Check: fetch.CheckJSON},
		storagetest.DiscardLogger(),
	)
	return NewClient(server.URL, f, storagetest.DiscardLogger())
}

func TestClient_SearchByName(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search.php", r.URL.Path)
			assert.Equal(t, "penne arrabiata", r.URL.Query().Get("s"))
			fmt.Fprintf(w, `{"meals":[%s]}`, arrabiata)
		})

		meals := client.SearchByName(ctx, "  penne arrabiata ")
		require.Len(t, meals, 1)
		assert.Equal(t, "52771", meals[0].ID)
		assert.Equal(t, "Spicy Arrabiata Penne", meals[0].Name)
		assert.Equal(t, "penne rigate", meals[0].Ingredients[0])
		assert.Equal(t, "1 pound", meals[0].Measures[0])
	})

	t.Run("NoMatches", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"meals":null}`)
		})
		meals := client.SearchByName(ctx, "zzz")
		assert.NotNil(t, meals)
		assert.Empty(t, meals)
	})

	t.Run("BlankQueryMakesNoRequest", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})
		assert.Empty(t, client.SearchByName(ctx, "   "))
		assert.Empty(t, client.FilterByCategory(ctx, ""))
		_, ok := client.Lookup(ctx, "")
		assert.False(t, ok)
		assert.Zero(t, calls.Load())
	})

	t.Run("ServerAlwaysFailing", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		assert.Empty(t, client.SearchByName(ctx, "soup"))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("RecoversAfterTransientFailure", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				fmt.Fprint(w, "<html>maintenance</html>")
				return
			}
			fmt.Fprintf(w, `{"meals":[%s]}`, arrabiata)
		})
		assert.Len(t, client.SearchByName(ctx, "penne"), 1)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestClient_FilterByCategory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/filter.php", r.URL.Path)
		assert.Equal(t, "Sea food", r.URL.Query().Get("c"))
		fmt.Fprint(w, `{"meals":[{"strMeal":"Baked salmon","strMealThumb":"https://x/y.jpg","idMeal":"52959"}]}`)
	})

	meals := client.FilterByCategory(context.Background(), "Sea food")
	require.Len(t, meals, 1)
	assert.Equal(t, Meal{ID: "52959", Name: "Baked salmon", Thumbnail: "https://x/y.jpg"}, meals[0])
}

func TestClient_LookupAndRandom(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lookup.php":
			if r.URL.Query().Get("i") == "52771" {
				fmt.Fprintf(w, `{"meals":[%s]}`, arrabiata)
				return
			}
			fmt.Fprint(w, `{"meals":null}`)
		case "/random.php":
			fmt.Fprintf(w, `{"meals":[%s]}`, arrabiata)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	meal, ok := client.Lookup(ctx, "52771")
	require.True(t, ok)
	assert.Equal(t, "Italian", meal.Area)

	_, ok = client.Lookup(ctx, "0")
	assert.False(t, ok)

	meal, ok = client.Random(ctx)
	require.True(t, ok)
	assert.Equal(t, "52771", meal.ID)
}

func TestClient_Categories(t *testing.T) {
	ctx := context.Background()

	t.Run("ListEndpoint", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "list", r.URL.Query().Get("c"))
			fmt.Fprint(w, `{"meals":[{"strCategory":"Beef"},{"strCategory":"Dessert"}]}`)
		})
		assert.Equal(t, []string{"Beef", "Dessert"}, client.Categories(ctx))
	})

	t.Run("Unavailable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		assert.Equal(t, []string{}, client.Categories(ctx))
	})
}

type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
	ctxErrs chan error
}

func (f *gatedFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-f.release
	f.ctxErrs <- ctx.Err()
	return []byte(fmt.Sprintf(`{"meals":[%s]}`, arrabiata)), nil
}

func TestClient_LookupCancelledCallerDoesNotCancelOthers(t *testing.T) {
	f := &gatedFetcher{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		ctxErrs: make(chan error, 2),
	}
	client := NewClient("http://mealdb.test", f, storagetest.DiscardLogger())

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan bool, 1)
	go func() {
		_, ok := client.Lookup(cancelled, "52771")
		first <- ok
	}()
	<-f.started

	second := make(chan Meal, 1)
	go func() {
		meal, ok := client.Lookup(context.Background(), "52771")
		if ok {
			second <- meal
		}
		close(second)
	}()

	cancel()
	assert.False(t, <-first)

	close(f.release)
	meal, ok := <-second
	require.True(t, ok)
	assert.Equal(t, "Spicy Arrabiata Penne", meal.Name)
	assert.NoError(t, <-f.ctxErrs)
}
