// Package mealdb imports recipes from TheMealDB.
//
// Every lookup degrades instead of failing: network errors, bad responses and
// exhausted retries all yield an empty result, and the cause is logged by the
// retrying fetcher.
package mealdb

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"smart-cookbook/internal/fetch"
)

// DefaultBaseURL is the public TheMealDB v1 endpoint.
const DefaultBaseURL = "https://www.themealdb.com/api/json/v1/1"

// Client queries TheMealDB through a Fetcher.
type Client struct {
	baseURL string
	fetcher fetch.Fetcher
	logger  *slog.Logger
	group   singleflight.Group
}

// NewClient creates a client. The fetcher should already retry.
func NewClient(baseURL string, fetcher fetch.Fetcher, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		logger:  logger,
	}
}

// SearchByName returns the meals whose name matches query.
func (c *Client) SearchByName(ctx context.Context, query string) []Meal {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Meal{}
	}
	var resp mealsResponse
	if !c.get(ctx, "search.php", url.Values{"s": {query}}, &resp, true) {
		return []Meal{}
	}
	return nonNil(resp.Meals)
}

// FilterByCategory returns summary meals (id, name, thumbnail) of a category.
func (c *Client) FilterByCategory(ctx context.Context, category string) []Meal {
	category = strings.TrimSpace(category)
	if category == "" {
		return []Meal{}
	}
	var resp mealsResponse
	if !c.get(ctx, "filter.php", url.Values{"c": {category}}, &resp, true) {
		return []Meal{}
	}
	return nonNil(resp.Meals)
}

// Lookup returns the full meal with the given id.
func (c *Client) Lookup(ctx context.Context, id string) (Meal, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Meal{}, false
	}
	var resp mealsResponse
	if !c.get(ctx, "lookup.php", url.Values{"i": {id}}, &resp, true) || len(resp.Meals) == 0 {
		return Meal{}, false
	}
	return resp.Meals[0], true
}

// Random returns one random meal.
func (c *Client) Random(ctx context.Context) (Meal, bool) {
	var resp mealsResponse
	if !c.get(ctx, "random.php", nil, &resp, false) || len(resp.Meals) == 0 {
		return Meal{}, false
	}
	return resp.Meals[0], true
}

// Categories returns the names of every meal category.
func (c *Client) Categories(ctx context.Context) []string {
	var resp categoriesResponse
	if !c.get(ctx, "list.php", url.Values{"c": {"list"}}, &resp, true) {
		return []string{}
	}

	names := make([]string, 0, len(resp.Categories)+len(resp.Meals))
	for _, cat := range resp.Categories {
		names = append(names, cat.Name)
	}
	for _, cat := range resp.Meals {
		names = append(names, cat.Name)
	}
	return names
}

// get fetches an endpoint and decodes it into out. Identical concurrent
// requests share one fetch when shared is true; the shared fetch outlives any
// single caller's cancellation and each caller stops waiting on its own ctx.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any, shared bool) bool {
	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var (
		body []byte
		err  error
	)
	if shared {
		ch := c.group.DoChan(u, func() (any, error) {
			return c.fetcher.Fetch(context.WithoutCancel(ctx), u)
		})
		select {
		case res := <-ch:
			err = res.Err
			if err == nil {
				body = res.Val.([]byte)
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else {
		body, err = c.fetcher.Fetch(ctx, u)
	}
	if err != nil {
		c.logger.Warn("recipe source unavailable", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warn("unexpected recipe source response", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
		return false
	}
	return true
}

func nonNil(meals []Meal) []Meal {
	if meals == nil {
		return []Meal{}
	}
	return meals
}
