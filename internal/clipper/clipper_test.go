package clipper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-cookbook/internal/fetch"
)

const jsonLDPage = `
<html>
	<head>
		<script type="application/ld+json">{"@context":"https://schema.org","@type":"WebSite","name":"Blog"}</script>
		<script type="application/ld+json">not json at all</script>
		<script type="application/ld+json">
		{
			"@context": "https://schema.org",
			"@graph": [
				{"@type": "Organization", "name": "Blog"},
				{
					"@type": ["Recipe", "NewsArticle"],
					"name": "Banana &amp; Walnut Bread",
					"image": [{"@type": "ImageObject", "url": "https://example.com/bread.jpg"}],
					"recipeIngredient": ["3 ripe bananas", " 250g <b>flour</b> ", ""],
					"recipeInstructions": [
						{"@type": "HowToSection", "name": "Prep", "itemListElement": [
							{"@type": "HowToStep", "text": "Mash the bananas."}
						]},
						{"@type": "HowToStep", "text": "Fold in the flour."},
						"Bake for an hour."
					],
					"keywords": "baking, banana,  , quick bread",
					"recipeCategory": ["Breakfast", "Snack"],
					"prepTime": "PT15M",
					"cookTime": "PT1H",
					"nutrition": {"@type": "NutritionInformation", "calories": "240 calories"}
				}
			]
		}
		</script>
	</head>
	<body><h1>Something else</h1></body>
</html>`

const microdataPage = `
<html><body>
	<div itemscope itemtype="https://schema.org/Recipe">
		<h2 itemprop="name">Grandma's Soup</h2>
		<img itemprop="image" src="https://example.com/soup.png">
		<meta itemprop="cookTime" content="PT45M">
		<span itemprop="recipeCategory">Dinner</span>
		<ul>
			<li itemprop="recipeIngredient">2 carrots</li>
			<li itemprop="recipeIngredient">1 onion</li>
		</ul>
		<p itemprop="recipeInstructions">Chop everything.</p>
		<p itemprop="recipeInstructions">Simmer.</p>
	</div>
</body></html>`

func TestExtract(t *testing.T) {
	t.Run("JSONLDGraph", func(t *testing.T) {
		d, err := Extract([]byte(jsonLDPage), "https://example.com/bread")
		require.NoError(t, err)

		assert.Equal(t, "Banana & Walnut Bread", d.Title)
		assert.Equal(t, []string{"3 ripe bananas", "250g flour"}, d.Ingredients)
		assert.Equal(t, []string{"Mash the bananas.", "Fold in the flour.", "Bake for an hour."}, d.Steps)
		assert.Equal(t, []string{"baking", "banana", "quick bread"}, d.Tags)
		assert.Equal(t, "breakfast", d.Category)
		assert.Equal(t, "https://example.com/bread.jpg", d.Image)
		assert.Equal(t, 15, d.PrepTime)
		assert.Equal(t, 60, d.CookTime)
		assert.Equal(t, 240, d.Calories)
		assert.NoError(t, d.Validate())
	})

	t.Run("Microdata", func(t *testing.T) {
		d, err := Extract([]byte(microdataPage), "https://example.com/soup")
		require.NoError(t, err)

		assert.Equal(t, "Grandma's Soup", d.Title)
		assert.Equal(t, []string{"2 carrots", "1 onion"}, d.Ingredients)
		assert.Equal(t, []string{"Chop everything.", "Simmer."}, d.Steps)
		assert.Equal(t, "dinner", d.Category)
		assert.Equal(t, 45, d.CookTime)
		assert.Equal(t, "https://example.com/soup.png", d.Image)
	})

	t.Run("RelativeMicrodataImage", func(t *testing.T) {
		page := `<div itemscope itemtype="https://schema.org/Recipe">
			<h2 itemprop="name">Cake</h2>
			<img itemprop="image" src="/img/cake.jpg">
		</div>`
		d, err := Extract([]byte(page), "https://bakery.example/recipes/cake?ref=home")
		require.NoError(t, err)
		assert.Equal(t, "https://bakery.example/img/cake.jpg", d.Image)
		assert.NoError(t, d.Validate())
	})

	t.Run("RelativeJSONLDImage", func(t *testing.T) {
		page := `<script type="application/ld+json">{"@type":"Recipe","name":"Pie","image":"photos/pie.jpg"}</script>`
		d, err := Extract([]byte(page), "https://bakery.example/recipes/pie")
		require.NoError(t, err)
		assert.Equal(t, "https://bakery.example/recipes/photos/pie.jpg", d.Image)
		assert.NoError(t, d.Validate())
	})

	t.Run("UnresolvableImageDropped", func(t *testing.T) {
		page := `<script type="application/ld+json">{"@type":"Recipe","name":"Pie","image":"/pie.jpg"}</script>`
		d, err := Extract([]byte(page), "")
		require.NoError(t, err)
		assert.Empty(t, d.Image)
		assert.NoError(t, d.Validate())
	})

	t.Run("NoRecipe", func(t *testing.T) {
		_, err := Extract([]byte(`<html><body><h1>About us</h1></body></html>`), "https://example.com/about")
		assert.ErrorIs(t, err, ErrNoRecipe)
	})
}

func TestParseDuration(t *testing.T) {
	tests := map[string]int{
		"PT30M":    30,
		"PT1H30M":  90,
		"pt2h":     120,
		"P1DT2H":   1560,
		"PT90S":    1,
		"PT0.5S":   0,
		"":         0,
		"30 mins":  0,
		" PT5M   ": 5,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseDuration(in))
		})
	}
}

func TestClipper_Clip(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(jsonLDPage))
		}))
		defer ts.Close()

		c := NewClipper(fetch.NewHTTPFetcher(ts.Client(), 0, nil))
		d, err := c.Clip(ctx, ts.URL)
		require.NoError(t, err)
		assert.Equal(t, "Banana & Walnut Bread", d.Title)
	})

	t.Run("FetchError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		c := NewClipper(fetch.NewHTTPFetcher(ts.Client(), 0, nil))
		_, err := c.Clip(ctx, ts.URL)
		var serr *fetch.StatusError
		assert.True(t, errors.As(err, &serr))
	})
}
