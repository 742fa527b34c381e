package planner

import (
	"errors"
	"sort"
)

// Day is a lowercase weekday name.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Days lists the weekdays in plan order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Slot is a meal of the day.
type Slot string

const (
	Breakfast Slot = "breakfast"
	Lunch     Slot = "lunch"
	Dinner    Slot = "dinner"
)

// Slots lists the meals in plan order.
var Slots = []Slot{Breakfast, Lunch, Dinner}

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidSlot     = errors.New("invalid meal slot")
	ErrMissingRecipeID = errors.New("recipe id is required")
)

// Valid reports whether d is one of the seven weekdays.
func (d Day) Valid() bool {
	for _, v := range Days {
		if d == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is breakfast, lunch or dinner.
func (s Slot) Valid() bool {
	for _, v := range Slots {
		if s == v {
			return true
		}
	}
	return false
}

// MealPlan maps a day to its assigned slots. A missing day or slot means
// nothing is planned. Recipe ids are references and may dangle.
type MealPlan map[Day]map[Slot]string

// Get returns the recipe id assigned to the slot.
func (p MealPlan) Get(day Day, slot Slot) (string, bool) {
	id, ok := p[day][slot]
	return id, ok && id != ""
}

// Clone returns a deep copy of the plan.
func (p MealPlan) Clone() MealPlan {
	out := make(MealPlan, len(p))
	for day, slots := range p {
		cp := make(map[Slot]string, len(slots))
		for slot, id := range slots {
			cp[slot] = id
		}
		out[day] = cp
	}
	return out
}

// RecipeIDs returns every assigned recipe id once, in weekday then slot order.
// Days and slots outside the known sets, which only appear in imported data,
// follow in sorted key order.
func (p MealPlan) RecipeIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, day := range orderedKeys(p, Days) {
		slots := p[day]
		for _, slot := range orderedKeys(slots, Slots) {
			add(slots[slot])
		}
	}
	return out
}

// orderedKeys returns the keys of m that appear in known, in that order,
// followed by the remaining keys sorted.
func orderedKeys[K ~string, V any](m map[K]V, known []K) []K {
	keys := make([]K, 0, len(m))
	isKnown := make(map[K]bool, len(known))
	for _, k := range known {
		isKnown[k] = true
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}

	var extra []K
	for k := range m {
		if !isKnown[k] {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(keys, extra...)
}
