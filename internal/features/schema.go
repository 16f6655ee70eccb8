// Package features resolves selectable categorical values from a model's feature
// columns and rebuilds one-hot encoded feature vectors for prediction requests.
package features

import (
	"fmt"
	"sort"
	"strings"
)

// Column names for the numeric inputs.
const (
	GridColumn  = "Grid"
	RoundColumn = "Round"
)

// Category is a one-hot encoded categorical dimension of the model input.
type Category string

// Known categories.
const (
	CategoryDriver Category = "driver"
	CategoryTeam   Category = "team"
	CategoryRace   Category = "race"
)

// Categories lists the categorical dimensions in the order they are encoded.
var Categories = []Category{CategoryDriver, CategoryTeam, CategoryRace}

// Prefix returns the column-name prefix used by the one-hot columns of the category.
func (c Category) Prefix() string {
	switch c {
	case CategoryDriver:
		return "Driver_"
	case CategoryTeam:
		return "Team_"
	case CategoryRace:
		return "Race_"
	default:
		return ""
	}
}

// fallbackValues keep the form usable when the model declares no columns for a category.
var fallbackValues = map[Category][]string{
	CategoryDriver: {"Max Verstappen", "Lando Norris", "Lewis Hamilton"},
	CategoryTeam:   {"Red Bull", "McLaren", "Ferrari", "Mercedes"},
	CategoryRace:   {"Bahrain Grand Prix", "Saudi Arabian Grand Prix"},
}

// Fallback returns a copy of the default values used for the category.
func Fallback(c Category) []string {
	return append([]string(nil), fallbackValues[c]...)
}

// Schema is the ordered, immutable set of feature-column names a model was trained on.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema creates a schema from the ordered column names.
// Duplicate and empty column names are rejected.
func NewSchema(columns []string) (*Schema, error) {
	s := &Schema{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, col := range columns {
		if col == "" {
			return nil, ErrEmptyColumn
		}
		if _, exists := s.index[col]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col)
		}
		s.index[col] = len(s.columns)
		s.columns = append(s.columns, col)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on invalid input.
func MustSchema(columns ...string) *Schema {
	s, err := NewSchema(columns)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns a copy of the column names in declared order.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Has reports whether the schema declares the column.
func (s *Schema) Has(column string) bool {
	_, ok := s.index[column]
	return ok
}

// Choices holds the selectable values for each categorical dimension.
type Choices struct {
	Drivers []string `json:"drivers"`
	Teams   []string `json:"teams"`
	Races   []string `json:"races"`

	// Fallback records the categories that were filled from the default lists.
	Fallback []Category `json:"fallback,omitempty"`
}

// Values returns the selectable values for a category.
func (c Choices) Values(cat Category) []string {
	switch cat {
	case CategoryDriver:
		return c.Drivers
	case CategoryTeam:
		return c.Teams
	case CategoryRace:
		return c.Races
	default:
		return nil
	}
}

// UsedFallback reports whether the category was filled from the default list.
func (c Choices) UsedFallback(cat Category) bool {
	for _, f := range c.Fallback {
		if f == cat {
			return true
		}
	}
	return false
}

// Resolve derives the driver, team and race lists from the schema's one-hot columns.
func Resolve(schema *Schema) Choices {
	var choices Choices
	for _, cat := range Categories {
		values := ValuesFor(schema, cat)
		if len(values) == 0 {
			values = Fallback(cat)
			choices.Fallback = append(choices.Fallback, cat)
		}
		switch cat {
		case CategoryDriver:
			choices.Drivers = values
		case CategoryTeam:
			choices.Teams = values
		case CategoryRace:
			choices.Races = values
		}
	}
	return choices
}

// ValuesFor returns the prefix-stripped, sorted suffixes of the category's columns.
// It returns an empty slice when the schema has no such columns.
func ValuesFor(schema *Schema, cat Category) []string {
	prefix := cat.Prefix()
	values := make([]string, 0)
	if schema == nil || prefix == "" {
		return values
	}
	for _, col := range schema.columns {
		if strings.HasPrefix(col, prefix) {
			values = append(values, strings.TrimPrefix(col, prefix))
		}
	}
	sort.Strings(values)
	return values
}
