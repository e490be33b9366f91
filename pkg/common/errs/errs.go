package errs

import (
	"errors"
	"fmt"
)

var (
	ErrSchema           = errors.New("schema error")
	ErrIntegrity        = errors.New("integrity error")
	ErrInsufficientData = errors.New("insufficient data")
)

// SchemaError reports a required field that is absent or mistyped in raw
// input. Row is -1 when the whole column is missing.
type SchemaError struct {
	Entity string
	Column string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: %s: required column %q: %s", ErrSchema, e.Entity, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s: %s row %d column %q: %s", ErrSchema, e.Entity, e.Row, e.Column, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

func MissingColumn(entity, column string) *SchemaError {
	return &SchemaError{Entity: entity, Column: column, Row: -1, Reason: "missing"}
}

// IntegrityError reports a reference that does not resolve: a fact row
// without a dimension key or a visit pointing at an unknown patient.
type IntegrityError struct {
	Table     string
	Key       string
	Reference string
	Value     string
	// Reason replaces the dangling-reference message, e.g. for duplicate keys.
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s %s: %s", ErrIntegrity, e.Table, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s references %s %q which does not exist", ErrIntegrity, e.Table, e.Key, e.Reference, e.Value)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// InsufficientDataError is returned next to an empty, typed feature set so
// training and serving can skip explicitly.
type InsufficientDataError struct {
	Set    string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInsufficientData, e.Set, e.Reason)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// DataQualityWarning records a value that was repaired during cleaning.
// Warnings never abort a run.
type DataQualityWarning struct {
	Entity string `json:"entity"`
	Column string `json:"column"`
	Row    int    `json:"row"`
	Value  string `json:"value,omitempty"`
	Action string `json:"action"`
}

func (w DataQualityWarning) String() string {
	if w.Row < 0 {
		return fmt.Sprintf("%s.%s: %s", w.Entity, w.Column, w.Action)
	}
	return fmt.Sprintf("%s.%s row %d (%q): %s", w.Entity, w.Column, w.Row, w.Value, w.Action)
}

func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
