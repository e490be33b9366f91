package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomyMatchesThroughWrapping(t *testing.T) {
	schema := fmt.Errorf("clean visits: %w", MissingColumn("visits", "visit_date"))
	integrity := fmt.Errorf("build warehouse: %w", &IntegrityError{Table: "fact_visits", Key: "V1", Reference: "dim_date", Value: "2024-01-01"})
	empty := fmt.Errorf("classification: %w", &InsufficientDataError{Set: "classification", Reason: "no admitted patients"})

	assert.True(t, IsSchemaError(schema))
	assert.False(t, IsSchemaError(integrity))
	assert.True(t, IsIntegrityError(integrity))
	assert.True(t, IsInsufficientData(empty))
	assert.False(t, IsInsufficientData(schema))
}

func TestSchemaErrorMessage(t *testing.T) {
	assert.Equal(t, `schema error: visits: required column "visit_date": missing`, MissingColumn("visits", "visit_date").Error())

	rowErr := &SchemaError{Entity: "patients", Column: "age", Row: 3, Reason: `cannot parse "abc" as integer`}
	assert.Contains(t, rowErr.Error(), "row 3")
}

func TestWarningString(t *testing.T) {
	w := DataQualityWarning{Entity: "visits", Column: "wait_time_minutes", Row: 2, Value: "-5", Action: "clamped to 0"}
	assert.Equal(t, `visits.wait_time_minutes row 2 ("-5"): clamped to 0`, w.String())
}

func TestIntegrityErrorReason(t *testing.T) {
	err := &IntegrityError{Table: "dim_patient", Key: "P1", Reason: "duplicate natural key"}
	assert.Equal(t, "integrity error: dim_patient P1: duplicate natural key", err.Error())
}
