package normalizer

import (
	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
)

// Report summarises what cleaning repaired for one entity.
type Report struct {
	Entity   string                    `json:"entity"`
	Rows     int                       `json:"rows"`
	Imputed  int                       `json:"imputed"`
	Clamped  int                       `json:"clamped"`
	Unknown  int                       `json:"unknown"`
	Nulls    map[string]int            `json:"nulls,omitempty"`
	Warnings []errs.DataQualityWarning `json:"warnings,omitempty"`
}

func (r *Report) warn(column string, row int, value interface{}, action string) {
	w := errs.DataQualityWarning{
		Entity: r.Entity,
		Column: column,
		Row:    row,
		Value:  describe(value),
		Action: action,
	}
	r.Warnings = append(r.Warnings, w)
	logger.Log.WithFields(map[string]interface{}{
		"entity": w.Entity,
		"column": w.Column,
		"row":    w.Row,
		"value":  w.Value,
	}).Warn(w.Action)
}
