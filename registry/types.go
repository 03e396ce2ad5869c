package registry

import (
	"errors"
	"fmt"
)

var ErrConfiguration = errors.New("configuration error")

// ConfigurationError is returned for any declaration or query option that cannot be resolved against the registry.
// It is always fatal for the operation that raised it.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

type ValueType string

const (
	ValueTypeDate   ValueType = "date"
	ValueTypeString ValueType = "string"
	ValueTypeNumber ValueType = "number"
)

// Reserved prefix codes and names.
const (
	CodeModel   = "M"
	CodeModelID = "I"
	CodeStemmed = "Z"

	NameModel   = "model"
	NameModelID = "modelid"
)

// TermMapping indexes the record field Field as prefixed terms under Code, searchable as "Name:word".
type TermMapping struct {
	Field string `yaml:"field"`
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
}

// ValueMapping stores the record field Field in value slot Slot, sortable and collapsible as Name.
type ValueMapping struct {
	Field string    `yaml:"field"`
	Slot  int       `yaml:"slot"`
	Name  string    `yaml:"name"`
	Type  ValueType `yaml:"type"`
}

// EagerLoad attaches the record of EntityType whose id is held in Field to hydrated results, under As.
type EagerLoad struct {
	Field      string `yaml:"field"`
	EntityType string `yaml:"entity_type"`
	As         string `yaml:"as"`
}

// Relation declares that records of EntityType belong to the declaring entity through the term prefix Term.
type Relation struct {
	Name       string `yaml:"name"`
	EntityType string `yaml:"entity_type"`
	Term       string `yaml:"term"`
}

type Declaration struct {
	EntityType string         `yaml:"entity_type"`
	Terms      []TermMapping  `yaml:"terms"`
	Values     []ValueMapping `yaml:"values"`
	Texts      []string       `yaml:"texts"`
	If         string         `yaml:"if"`
	EagerLoad  []EagerLoad    `yaml:"eager_load"`
	Relations  []Relation     `yaml:"relations"`
}
