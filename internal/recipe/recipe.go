package recipe

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Difficulty grades how hard a recipe is to cook.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// FilterAll disables a category or difficulty filter.
const FilterAll = "all"

// ErrNotFound is returned when no recipe has the requested id.
var ErrNotFound = errors.New("recipe not found")

// Draft holds every caller-supplied recipe field. The repository owns id and
// timestamps.
type Draft struct {
	Title       string     `json:"title" validate:"notblank"`
	Ingredients []string   `json:"ingredients"`
	Steps       []string   `json:"steps"`
	Tags        []string   `json:"tags"`
	Category    string     `json:"category"`
	Image       string     `json:"image,omitempty" validate:"omitempty,url"`
	PrepTime    int        `json:"prepTime,omitempty" validate:"gte=0"`
	CookTime    int        `json:"cookTime,omitempty" validate:"gte=0"`
	Difficulty  Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Calories    int        `json:"calories,omitempty" validate:"gte=0"`
	IsFavorite  bool       `json:"isFavorite"`
	Collections []string   `json:"collections,omitempty"`
}

// Recipe is a stored recipe.
type Recipe struct {
	ID string `json:"id"`
	Draft
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidationError reports the draft fields that failed validation.
type ValidationError struct {
	Fields []string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recipe: %v", e.err)
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the cookbook's custom rules
// registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Validate checks the draft against the entity model's field rules.
func (d Draft) Validate() error {
	err := Validator().Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &ValidationError{Fields: fields, err: err}
	}
	return fmt.Errorf("failed to validate recipe: %w", err)
}

// clone deep-copies the draft's slices so callers cannot alias stored state.
func (d Draft) clone() Draft {
	d.Ingredients = cloneStrings(d.Ingredients)
	d.Steps = cloneStrings(d.Steps)
	d.Tags = cloneStrings(d.Tags)
	d.Collections = cloneStrings(d.Collections)
	return d
}

// withEmptySequences stores absent ingredient, step and tag lists as empty ones.
func (d Draft) withEmptySequences() Draft {
	if d.Ingredients == nil {
		d.Ingredients = []string{}
	}
	if d.Steps == nil {
		d.Steps = []string{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return d
}

func (r Recipe) clone() Recipe {
	r.Draft = r.Draft.clone()
	return r
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// Set is a read-only id index over a recipe slice.
type Set map[string]Recipe

// NewSet indexes recipes by id.
func NewSet(recipes []Recipe) Set {
	s := make(Set, len(recipes))
	for _, r := range recipes {
		s[r.ID] = r
	}
	return s
}

// Get returns the recipe with the given id.
func (s Set) Get(id string) (Recipe, bool) {
	r, ok := s[id]
	return r, ok
}
