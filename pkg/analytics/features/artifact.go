package features

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/storage"
)

const (
	ClassificationFile   = "classification_features.parquet"
	RegressionFile       = "regression_features.parquet"
	MLDatasetFile        = "ml_features.parquet"
	AdmissionHistoryFile = "admission_history.parquet"
	RegressionColumns    = "regression_columns.json"
)

type classificationRecord struct {
	PatientID             string  `parquet:"patient_id"`
	Age                   float64 `parquet:"age"`
	BMI                   float64 `parquet:"bmi"`
	ChronicConditionCount float64 `parquet:"chronic_condition_count"`
	TotalVisits           float64 `parquet:"total_visits"`
	TotalAdmissions       float64 `parquet:"total_admissions"`
	AvgWaitTime           float64 `parquet:"avg_wait_time"`
	VisitFrequency        float64 `parquet:"visit_frequency"`
	AdmissionRate         float64 `parquet:"admission_rate"`
	IsSmoker              float64 `parquet:"is_smoker"`
	HasChronicCondition   float64 `parquet:"has_chronic_condition"`
	HighBMI               float64 `parquet:"high_bmi"`
	SeniorCitizen         float64 `parquet:"senior_citizen"`
	MultipleConditions    float64 `parquet:"multiple_conditions"`
	FrequentVisitor       float64 `parquet:"frequent_visitor"`
	HighReadmissionRisk   int64   `parquet:"high_readmission_risk"`
}

func (c classificationRecord) vector() []float64 {
	return []float64{
		c.Age, c.BMI, c.ChronicConditionCount, c.TotalVisits, c.TotalAdmissions,
		c.AvgWaitTime, c.VisitFrequency, c.AdmissionRate, c.IsSmoker,
		c.HasChronicCondition, c.HighBMI, c.SeniorCitizen, c.MultipleConditions,
		c.FrequentVisitor,
	}
}

func toClassificationRecord(r ClassificationRow) classificationRecord {
	f := r.Features
	return classificationRecord{
		PatientID:             r.PatientID,
		Age:                   f[0],
		BMI:                   f[1],
		ChronicConditionCount: f[2],
		TotalVisits:           f[3],
		TotalAdmissions:       f[4],
		AvgWaitTime:           f[5],
		VisitFrequency:        f[6],
		AdmissionRate:         f[7],
		IsSmoker:              f[8],
		HasChronicCondition:   f[9],
		HighBMI:               f[10],
		SeniorCitizen:         f[11],
		MultipleConditions:    f[12],
		FrequentVisitor:       f[13],
		HighReadmissionRisk:   int64(r.Label),
	}
}

const (
	regressionKeyColumn    = "visit_id"
	regressionTargetColumn = "wait_time_minutes"
)

// regressionSchema gives every one-hot department its own dept_<name>
// column, so the table's columns follow the vocabulary of the build.
func regressionSchema(vocab Vocabulary) *parquet.Schema {
	group := parquet.Group{
		regressionKeyColumn:    parquet.String(),
		regressionTargetColumn: parquet.Leaf(parquet.DoubleType),
	}
	for _, name := range vocab.FeatureNames() {
		group[name] = parquet.Leaf(parquet.DoubleType)
	}
	return parquet.NewSchema("regression_features", group)
}

func regressionRows(schema *parquet.Schema, set RegressionSet) ([]parquet.Row, error) {
	names := set.Vocabulary.FeatureNames()
	fields := schema.Fields()
	out := make([]parquet.Row, len(set.Rows))
	for i, r := range set.Rows {
		if len(r.Features) != len(names) {
			return nil, fmt.Errorf("regression row %s: %d features, vocabulary gives %d columns", r.VisitID, len(r.Features), len(names))
		}
		values := make(map[string]interface{}, len(fields))
		values[regressionKeyColumn] = r.VisitID
		values[regressionTargetColumn] = r.Target
		for j, name := range names {
			values[name] = r.Features[j]
		}
		row := make(parquet.Row, len(fields))
		for col, field := range fields {
			row[col] = parquet.ValueOf(values[field.Name()]).Level(0, 0, col)
		}
		out[i] = row
	}
	return out, nil
}

type mlRecord struct {
	PatientID             string  `parquet:"patient_id"`
	Age                   int64   `parquet:"age"`
	Gender                string  `parquet:"gender"`
	BMI                   float64 `parquet:"bmi"`
	ChronicConditionCount int64   `parquet:"chronic_condition_count"`
	IsSmoker              int64   `parquet:"is_smoker"`
	HasChronicCondition   int64   `parquet:"has_chronic_condition"`
	AgeGroup              string  `parquet:"age_group"`
	BMICategory           string  `parquet:"bmi_category"`
	HighBMI               int64   `parquet:"high_bmi"`
	SeniorCitizen         int64   `parquet:"senior_citizen"`
	MultipleConditions    int64   `parquet:"multiple_conditions"`
	TotalVisits           int64   `parquet:"total_visits"`
	TotalAdmissions       int64   `parquet:"total_admissions"`
	AvgWaitTime           float64 `parquet:"avg_wait_time"`
	AvgSatisfaction       float64 `parquet:"avg_satisfaction"`
	FirstVisit            *string `parquet:"first_visit,optional"`
	LastVisit             *string `parquet:"last_visit,optional"`
	DaysSinceFirstVisit   int64   `parquet:"days_since_first_visit"`
	VisitFrequency        float64 `parquet:"visit_frequency"`
	AdmissionRate         float64 `parquet:"admission_rate"`
	FrequentVisitor       int64   `parquet:"frequent_visitor"`
}

type admissionRecord struct {
	VisitID                string `parquet:"visit_id"`
	PatientID              string `parquet:"patient_id"`
	VisitDate              string `parquet:"visit_date"`
	PriorAdmissions        int64  `parquet:"prior_admissions"`
	DaysSinceLastAdmission int64  `parquet:"days_since_last_admission"`
	RecentAdmission        int64  `parquet:"recent_admission"`
	Readmitted30dFlag      int64  `parquet:"readmitted_30d_flag"`
}

// ColumnManifest is persisted next to the regression table and copied into
// every wait-time model.
type ColumnManifest struct {
	FeatureNames []string  `json:"feature_names"`
	Departments  []string  `json:"departments"`
	Target       string    `json:"target"`
	CreatedAt    time.Time `json:"created_at"`
}

// Artifacts is everything the feature stage persists.
type Artifacts struct {
	Dataset          []PatientFeatures
	Classification   ClassificationSet
	Regression       RegressionSet
	AdmissionHistory []AdmissionHistoryRow
}

// WriteArtifacts writes every table under dir concurrently and returns the
// written paths by file name.
func WriteArtifacts(ctx context.Context, dir string, a Artifacts) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create feature dir: %w", err)
	}
	paths := map[string]string{
		ClassificationFile:   filepath.Join(dir, ClassificationFile),
		RegressionFile:       filepath.Join(dir, RegressionFile),
		MLDatasetFile:        filepath.Join(dir, MLDatasetFile),
		AdmissionHistoryFile: filepath.Join(dir, AdmissionHistoryFile),
		RegressionColumns:    filepath.Join(dir, RegressionColumns),
	}

	var g errgroup.Group
	g.Go(func() error {
		rows := make([]classificationRecord, len(a.Classification.Rows))
		for i, r := range a.Classification.Rows {
			rows[i] = toClassificationRecord(r)
		}
		return storage.WriteParquet(paths[ClassificationFile], rows)
	})
	g.Go(func() error {
		schema := regressionSchema(a.Regression.Vocabulary)
		rows, err := regressionRows(schema, a.Regression)
		if err != nil {
			return err
		}
		return storage.WriteParquetRows(paths[RegressionFile], schema, rows)
	})
	g.Go(func() error {
		return writeManifest(paths[RegressionColumns], ColumnManifest{
			FeatureNames: a.Regression.Vocabulary.FeatureNames(),
			Departments:  a.Regression.Vocabulary,
			Target:       regressionTargetColumn,
			CreatedAt:    time.Now().UTC(),
		})
	})
	g.Go(func() error {
		rows := make([]mlRecord, len(a.Dataset))
		for i, r := range a.Dataset {
			rows[i] = toMLRecord(r)
		}
		return storage.WriteParquet(paths[MLDatasetFile], rows)
	})
	g.Go(func() error {
		rows := make([]admissionRecord, len(a.AdmissionHistory))
		for i, r := range a.AdmissionHistory {
			rows[i] = admissionRecord{
				VisitID:                r.VisitID,
				PatientID:              r.PatientID,
				VisitDate:              r.VisitDate.Format(time.RFC3339Nano),
				PriorAdmissions:        int64(r.PriorAdmissions),
				DaysSinceLastAdmission: int64(r.DaysSinceLastAdmission),
				RecentAdmission:        int64(r.RecentAdmission),
				Readmitted30dFlag:      int64(r.Readmitted30dFlag),
			}
		}
		return storage.WriteParquet(paths[AdmissionHistoryFile], rows)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"dir":                 dir,
		"classification_rows": len(a.Classification.Rows),
		"regression_rows":     len(a.Regression.Rows),
		"dataset_rows":        len(a.Dataset),
	}).Info("Feature artifacts written")
	return paths, nil
}

// ReadClassificationArtifact loads a classification table written by
// WriteArtifacts. It fails when the file's columns differ from
// ClassificationFeatureNames.
func ReadClassificationArtifact(path string) (ClassificationSet, error) {
	records, columns, err := storage.ReadParquet[classificationRecord](path)
	if err != nil {
		return ClassificationSet{}, err
	}
	for _, name := range ClassificationFeatureNames {
		if !columns[name] {
			return ClassificationSet{}, fmt.Errorf("%s: feature column %q missing", path, name)
		}
	}
	set := ClassificationSet{
		SchemaVersion: ClassificationSchemaVersion,
		FeatureNames:  append([]string(nil), ClassificationFeatureNames...),
		Rows:          make([]ClassificationRow, len(records)),
	}
	for i, r := range records {
		set.Rows[i] = ClassificationRow{PatientID: r.PatientID, Features: r.vector(), Label: int(r.HighReadmissionRisk)}
	}
	return set, nil
}

// ReadRegressionArtifact loads the regression table and its column manifest
// from dir.
func ReadRegressionArtifact(dir string) (RegressionSet, error) {
	data, err := os.ReadFile(filepath.Join(dir, RegressionColumns))
	if err != nil {
		return RegressionSet{}, fmt.Errorf("read column manifest: %w", err)
	}
	var manifest ColumnManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return RegressionSet{}, fmt.Errorf("decode column manifest: %w", err)
	}

	path := filepath.Join(dir, RegressionFile)
	columns, records, err := storage.ReadParquetRecords(path)
	if err != nil {
		return RegressionSet{}, err
	}
	vocab := Vocabulary(manifest.Departments)
	names := vocab.FeatureNames()
	want := make(map[string]bool, len(names)+2)
	want[regressionKeyColumn], want[regressionTargetColumn] = true, true
	for _, name := range names {
		want[name] = true
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !want[c] {
			return RegressionSet{}, fmt.Errorf("%s: column %q not in column manifest", path, c)
		}
		present[c] = true
	}
	for c := range want {
		if !present[c] {
			return RegressionSet{}, fmt.Errorf("%s: column %q missing", path, c)
		}
	}

	set := RegressionSet{
		FeatureNames: names,
		Vocabulary:   vocab,
		Rows:         make([]RegressionRow, len(records)),
	}
	for i, rec := range records {
		vec := make([]float64, len(names))
		for j, name := range names {
			vec[j] = rec[name].Double()
		}
		set.Rows[i] = RegressionRow{
			VisitID:  rec[regressionKeyColumn].String(),
			Features: vec,
			Target:   rec[regressionTargetColumn].Double(),
		}
	}
	return set, nil
}

// ReadMLDataset loads the joined per-patient dataset written by WriteArtifacts.
func ReadMLDataset(path string) ([]PatientFeatures, error) {
	records, _, err := storage.ReadParquet[mlRecord](path)
	if err != nil {
		return nil, err
	}
	out := make([]PatientFeatures, len(records))
	for i, r := range records {
		row := PatientFeatures{
			PatientID:             r.PatientID,
			Age:                   int(r.Age),
			Gender:                r.Gender,
			BMI:                   r.BMI,
			ChronicConditionCount: int(r.ChronicConditionCount),
			IsSmoker:              int(r.IsSmoker),
			HasChronicCondition:   int(r.HasChronicCondition),
			AgeGroup:              r.AgeGroup,
			BMICategory:           r.BMICategory,
			HighBMI:               int(r.HighBMI),
			SeniorCitizen:         int(r.SeniorCitizen),
			MultipleConditions:    int(r.MultipleConditions),
			TotalVisits:           int(r.TotalVisits),
			TotalAdmissions:       int(r.TotalAdmissions),
			AvgWaitTime:           r.AvgWaitTime,
			AvgSatisfaction:       r.AvgSatisfaction,
			DaysSinceFirstVisit:   int(r.DaysSinceFirstVisit),
			VisitFrequency:        r.VisitFrequency,
			AdmissionRate:         r.AdmissionRate,
			FrequentVisitor:       int(r.FrequentVisitor),
		}
		if row.FirstVisit, err = parseOptionalTime(r.FirstVisit); err != nil {
			return nil, fmt.Errorf("row %d first_visit: %w", i, err)
		}
		if row.LastVisit, err = parseOptionalTime(r.LastVisit); err != nil {
			return nil, fmt.Errorf("row %d last_visit: %w", i, err)
		}
		row.HasVisits = row.FirstVisit != nil
		out[i] = row
	}
	return out, nil
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toMLRecord(r PatientFeatures) mlRecord {
	rec := mlRecord{
		PatientID:             r.PatientID,
		Age:                   int64(r.Age),
		Gender:                r.Gender,
		BMI:                   r.BMI,
		ChronicConditionCount: int64(r.ChronicConditionCount),
		IsSmoker:              int64(r.IsSmoker),
		HasChronicCondition:   int64(r.HasChronicCondition),
		AgeGroup:              r.AgeGroup,
		BMICategory:           r.BMICategory,
		HighBMI:               int64(r.HighBMI),
		SeniorCitizen:         int64(r.SeniorCitizen),
		MultipleConditions:    int64(r.MultipleConditions),
		TotalVisits:           int64(r.TotalVisits),
		TotalAdmissions:       int64(r.TotalAdmissions),
		AvgWaitTime:           r.AvgWaitTime,
		AvgSatisfaction:       r.AvgSatisfaction,
		DaysSinceFirstVisit:   int64(r.DaysSinceFirstVisit),
		VisitFrequency:        r.VisitFrequency,
		AdmissionRate:         r.AdmissionRate,
		FrequentVisitor:       int64(r.FrequentVisitor),
	}
	if r.FirstVisit != nil {
		s := r.FirstVisit.Format(time.RFC3339Nano)
		rec.FirstVisit = &s
	}
	if r.LastVisit != nil {
		s := r.LastVisit.Format(time.RFC3339Nano)
		rec.LastVisit = &s
	}
	return rec
}

func writeManifest(path string, m ColumnManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write column manifest: %w", err)
	}
	return os.Rename(tmp, path)
}
