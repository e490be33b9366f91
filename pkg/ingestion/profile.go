package ingestion

import (
	"sort"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

// NullThreshold is the share of nulls in one column above which a quality
// warning is raised.
const NullThreshold = 0.2

// ProfileNulls counts nulls per column and reports columns whose null share
// exceeds NullThreshold. Optional columns such as ward are expected to be
// sparse and are skipped.
func ProfileNulls(entity string, records []models.RawRecord, optional ...string) (map[string]int, []errs.DataQualityWarning) {
	skip := make(map[string]bool, len(optional))
	for _, col := range optional {
		skip[col] = true
	}

	counts := make(map[string]int)
	for _, rec := range records {
		for col, value := range rec {
			if value == nil {
				counts[col]++
			}
		}
	}

	columns := make([]string, 0, len(counts))
	for col := range counts {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var warnings []errs.DataQualityWarning
	for _, col := range columns {
		if skip[col] || len(records) == 0 {
			continue
		}
		if float64(counts[col])/float64(len(records)) > NullThreshold {
			warnings = append(warnings, errs.DataQualityWarning{
				Entity: entity,
				Column: col,
				Row:    -1,
				Action: "excessive nulls, repaired by imputation where a policy exists",
			})
		}
	}
	return counts, warnings
}
