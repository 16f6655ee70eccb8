package features

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Input is the set of user choices a feature vector is built from.
type Input struct {
	Grid   int
	Round  int
	Driver string
	Team   string
	Race   string
}

// Value returns the chosen value for a category.
func (in Input) Value(cat Category) string {
	switch cat {
	case CategoryDriver:
		return in.Driver
	case CategoryTeam:
		return in.Team
	case CategoryRace:
		return in.Race
	default:
		return ""
	}
}

// Vector maps every schema column to a numeric value, preserving the schema order.
type Vector struct {
	schema *Schema
	values []float64
}

// NewVector returns a vector with every column of the schema set to zero.
func NewVector(schema *Schema) *Vector {
	return &Vector{
		schema: schema,
		values: make([]float64, schema.Len()),
	}
}

// Set assigns a value to a column. Names outside the schema are dropped and
// Set reports false.
func (v *Vector) Set(column string, value float64) bool {
	i, ok := v.schema.index[column]
	if !ok {
		return false
	}
	v.values[i] = value
	return true
}

// Get returns the value of a column and whether the column exists.
func (v *Vector) Get(column string) (float64, bool) {
	i, ok := v.schema.index[column]
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Len returns the number of columns.
func (v *Vector) Len() int {
	return len(v.values)
}

// Columns returns the column names in schema order.
func (v *Vector) Columns() []string {
	return v.schema.Columns()
}

// Values returns a copy of the values in schema order.
func (v *Vector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

// Map returns the vector as a plain map.
func (v *Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.values))
	for i, col := range v.schema.columns {
		m[col] = v.values[i]
	}
	return m
}

// Active returns the columns with a non-zero value, in schema order.
func (v *Vector) Active() []string {
	active := make([]string, 0)
	for i, col := range v.schema.columns {
		if v.values[i] != 0 {
			active = append(active, col)
		}
	}
	return active
}

// MarshalJSON encodes the vector as an object whose keys keep the schema order.
func (v *Vector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range v.schema.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MatchKind describes how a categorical choice was mapped onto a column.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
	MatchNone  MatchKind = "none"
)

// Match is the outcome of one-hot activation for a single category.
type Match struct {
	Category Category  `json:"category"`
	Value    string    `json:"value"`
	Column   string    `json:"column,omitempty"`
	Kind     MatchKind `json:"kind"`
}

// BuildReport describes the one-hot activations performed by Build.
type BuildReport struct {
	Matches []Match `json:"matches"`
}

// Unmatched returns the categories that left every column at zero.
func (r BuildReport) Unmatched() []Category {
	var out []Category
	for _, m := range r.Matches {
		if m.Kind == MatchNone {
			out = append(out, m.Category)
		}
	}
	return out
}

// Build constructs the feature vector for the input. Every schema column is
// present; Grid and Round are copied when declared, and one column per category
// is activated by exact name or, failing that, by space-insensitive substring.
// A category that matches nothing is left at zero.
func Build(in Input, schema *Schema) (*Vector, BuildReport) {
	vec := NewVector(schema)

	if schema.Has(GridColumn) {
		vec.Set(GridColumn, float64(in.Grid))
	}
	if schema.Has(RoundColumn) {
		vec.Set(RoundColumn, float64(in.Round))
	}

	report := BuildReport{Matches: make([]Match, 0, len(Categories))}
	for _, cat := range Categories {
		value := in.Value(cat)
		column, kind := matchColumn(schema, cat.Prefix(), value)
		if kind != MatchNone {
			vec.Set(column, 1)
		}
		report.Matches = append(report.Matches, Match{
			Category: cat,
			Value:    value,
			Column:   column,
			Kind:     kind,
		})
	}

	return vec, report
}

// matchColumn finds the one-hot column for value under prefix.
func matchColumn(schema *Schema, prefix, value string) (string, MatchKind) {
	if key := prefix + value; schema.Has(key) {
		return key, MatchExact
	}

	needle := stripSpaces(value)
	for _, col := range schema.columns {
		if !strings.HasPrefix(col, prefix) {
			continue
		}
		if strings.Contains(stripSpaces(strings.TrimPrefix(col, prefix)), needle) {
			return col, MatchFuzzy
		}
	}
	return "", MatchNone
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
