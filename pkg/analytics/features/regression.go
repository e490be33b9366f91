package features

import (
	"fmt"
	"sort"

	"github.com/synaptica-ai/hospital-insights/pkg/common/errs"
	"github.com/synaptica-ai/hospital-insights/pkg/common/models"
)

const (
	EmergencyDepartment = "Emergency"
	departmentPrefix    = "dept_"
)

// RegressionBaseFeatureNames precede the department one-hot columns.
var RegressionBaseFeatureNames = []string{"hour", "day_of_week", "is_weekend", "is_emergency"}

// Vocabulary is the sorted department list behind the one-hot columns. It is
// frozen into every wait-time model; departments outside it encode as all
// zeros.
type Vocabulary []string

// NewVocabulary collects the distinct departments of visits in sorted order.
func NewVocabulary(visits []models.Visit) Vocabulary {
	seen := make(map[string]struct{})
	for _, v := range visits {
		seen[v.Department] = struct{}{}
	}
	vocab := make(Vocabulary, 0, len(seen))
	for d := range seen {
		vocab = append(vocab, d)
	}
	sort.Strings(vocab)
	return vocab
}

func (v Vocabulary) Columns() []string {
	cols := make([]string, len(v))
	for i, d := range v {
		cols[i] = departmentPrefix + d
	}
	return cols
}

func (v Vocabulary) Index(department string) int {
	for i, d := range v {
		if d == department {
			return i
		}
	}
	return -1
}

// Encode returns the one-hot vector for department and whether it was known.
func (v Vocabulary) Encode(department string) ([]float64, bool) {
	out := make([]float64, len(v))
	i := v.Index(department)
	if i < 0 {
		return out, false
	}
	out[i] = 1
	return out, true
}

// FeatureNames returns the full regression column list for this vocabulary.
func (v Vocabulary) FeatureNames() []string {
	return append(append([]string(nil), RegressionBaseFeatureNames...), v.Columns()...)
}

// RegressionVector builds one wait-time feature vector. weekday is Monday=0.
func RegressionVector(hour, weekday int, department string, vocab Vocabulary) ([]float64, bool) {
	onehot, known := vocab.Encode(department)
	vec := make([]float64, 0, len(RegressionBaseFeatureNames)+len(onehot))
	vec = append(vec,
		float64(hour),
		float64(weekday),
		float64(flag(weekday == 5 || weekday == 6)),
		float64(flag(department == EmergencyDepartment)),
	)
	return append(vec, onehot...), known
}

type RegressionRow struct {
	VisitID  string
	Features []float64
	Target   float64
}

// RegressionSet holds one row per visit; the target is the wait time.
type RegressionSet struct {
	FeatureNames []string
	Vocabulary   Vocabulary
	Rows         []RegressionRow
}

func (s RegressionSet) Matrix() ([][]float64, []float64) {
	x := make([][]float64, len(s.Rows))
	y := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		x[i] = r.Features
		y[i] = r.Target
	}
	return x, y
}

// BuildRegressionSet encodes visits against vocab, or against the departments
// observed in visits when vocab is nil. Output follows visit input order.
func BuildRegressionSet(visits []models.Visit, vocab Vocabulary) (RegressionSet, error) {
	if vocab == nil {
		vocab = NewVocabulary(visits)
	}
	set := RegressionSet{
		FeatureNames: vocab.FeatureNames(),
		Vocabulary:   vocab,
		Rows:         make([]RegressionRow, 0, len(visits)),
	}
	for _, v := range visits {
		vec, _ := RegressionVector(v.VisitDate.Hour(), v.Weekday(), v.Department, vocab)
		set.Rows = append(set.Rows, RegressionRow{
			VisitID:  v.VisitID,
			Features: vec,
			Target:   v.WaitTimeMinutes,
		})
	}
	if len(set.Rows) == 0 {
		return set, &errs.InsufficientDataError{
			Set:    "regression",
			Reason: fmt.Sprintf("no visits to encode against %d departments", len(vocab)),
		}
	}
	return set, nil
}
