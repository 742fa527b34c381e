// Package clipper imports recipes from web pages that publish schema.org
// Recipe data.
package clipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"smart-cookbook/internal/fetch"
	"smart-cookbook/internal/recipe"
)

// ErrNoRecipe is returned when a page carries no recognisable recipe.
var ErrNoRecipe = errors.New("no recipe found on page")

// Clipper fetches pages and extracts recipe drafts from them.
type Clipper struct {
	fetcher fetch.Fetcher
}

// NewClipper creates a Clipper.
func NewClipper(fetcher fetch.Fetcher) *Clipper {
	return &Clipper{fetcher: fetcher}
}

// Clip fetches pageURL and extracts its recipe.
func (c *Clipper) Clip(ctx context.Context, pageURL string) (recipe.Draft, error) {
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return recipe.Draft{}, fmt.Errorf("failed to fetch content: %w", err)
	}
	return Extract(body, pageURL)
}

// Extract parses an HTML page served from pageURL. JSON-LD blocks are
// preferred; microdata markup is the fallback. Relative image references are
// resolved against pageURL and dropped when they stay relative.
func Extract(page []byte, pageURL string) (recipe.Draft, error) {
	d, err := extract(page)
	if err != nil {
		return recipe.Draft{}, err
	}
	d.Image = resolveImage(pageURL, d.Image)
	return d, nil
}

func extract(page []byte) (recipe.Draft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return recipe.Draft{}, fmt.Errorf("failed to parse page: %w", err)
	}

	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		found = findRecipe(v)
		return found == nil
	})
	if found != nil {
		return fromJSONLD(found), nil
	}

	if d, ok := fromMicrodata(doc); ok {
		return d, nil
	}
	return recipe.Draft{}, ErrNoRecipe
}

func findRecipe(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if r := findRecipe(item); r != nil {
				return r
			}
		}
	case map[string]any:
		if isRecipeType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findRecipe(graph)
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	for _, s := range stringList(v) {
		if s == "Recipe" || strings.HasSuffix(s, "/Recipe") {
			return true
		}
	}
	return false
}

func fromJSONLD(m map[string]any) recipe.Draft {
	d := recipe.Draft{
		Title:       clean(str(m["name"])),
		Ingredients: cleanAll(stringList(m["recipeIngredient"])),
		Steps:       instructions(m["recipeInstructions"]),
		Tags:        keywords(m["keywords"]),
		Category:    category(m["recipeCategory"]),
		Image:       image(m["image"]),
		PrepTime:    ParseDuration(str(m["prepTime"])),
		CookTime:    ParseDuration(str(m["cookTime"])),
	}
	if len(d.Ingredients) == 0 {
		d.Ingredients = cleanAll(stringList(m["ingredients"]))
	}
	if n, ok := m["nutrition"].(map[string]any); ok {
		d.Calories = leadingInt(str(n["calories"]))
	}
	return d
}

func fromMicrodata(doc *goquery.Document) (recipe.Draft, bool) {
	scope := doc.Find(`[itemtype$="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		return recipe.Draft{}, false
	}

	prop := func(name string) *goquery.Selection {
		return scope.Find(`[itemprop="` + name + `"]`)
	}
	texts := func(sel *goquery.Selection) []string {
		var out []string
		sel.Each(func(_ int, s *goquery.Selection) {
			if t := clean(s.Text()); t != "" {
				out = append(out, t)
			}
		})
		return out
	}
	attrOrText := func(sel *goquery.Selection, attr string) string {
		if v, ok := sel.Attr(attr); ok {
			return v
		}
		return sel.Text()
	}

	d := recipe.Draft{
		Title:       clean(prop("name").First().Text()),
		Ingredients: texts(prop("recipeIngredient")),
		Steps:       texts(prop("recipeInstructions")),
		Category:    category(clean(prop("recipeCategory").First().Text())),
		PrepTime:    ParseDuration(attrOrText(prop("prepTime").First(), "content")),
		CookTime:    ParseDuration(attrOrText(prop("cookTime").First(), "content")),
	}
	img := prop("image").First()
	if src, ok := img.Attr("src"); ok {
		d.Image = src
	} else if content, ok := img.Attr("content"); ok {
		d.Image = content
	}
	if d.Title == "" {
		d.Title = clean(doc.Find("h1").First().Text())
	}
	d.Tags = []string{}
	if d.Ingredients == nil {
		d.Ingredients = []string{}
	}
	if d.Steps == nil {
		d.Steps = []string{}
	}
	return d, d.Title != ""
}

func instructions(v any) []string {
	out := []string{}
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, line := range strings.Split(t, "\n") {
				if line = clean(line); line != "" {
					out = append(out, line)
				}
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			if items, ok := t["itemListElement"]; ok {
				walk(items)
				return
			}
			if text := clean(str(t["text"])); text != "" {
				out = append(out, text)
			} else if name := clean(str(t["name"])); name != "" {
				out = append(out, name)
			}
		}
	}
	walk(v)
	return out
}

func keywords(v any) []string {
	out := []string{}
	for _, s := range stringList(v) {
		for _, k := range strings.Split(s, ",") {
			if k = clean(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

func category(v any) string {
	list := stringList(v)
	if len(list) == 0 || strings.TrimSpace(list[0]) == "" {
		return "other"
	}
	return strings.ToLower(clean(list[0]))
}

func image(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return image(t[0])
		}
	case map[string]any:
		return str(t["url"])
	}
	return ""
}

func resolveImage(pageURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base, err := url.Parse(pageURL); err == nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() || u.Host == "" {
		return ""
	}
	return u.String()
}

// stringList accepts a string or an array and returns its string members.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// clean strips markup and entities and collapses whitespace.
func clean(s string) string {
	s = html.UnescapeString(tagPattern.ReplaceAllString(s, " "))
	return strings.Join(strings.Fields(s), " ")
}

func cleanAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = clean(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration converts an ISO-8601 duration such as PT1H30M to whole
// minutes. Unparseable values yield 0.
func ParseDuration(s string) int {
	m := isoDuration.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}
	secs, _ := strconv.ParseFloat(m[4], 64)
	return atoi(m[1])*24*60 + atoi(m[2])*60 + atoi(m[3]) + int(secs/60)
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
