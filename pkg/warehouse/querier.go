package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Summary struct {
	TotalPatients        int64   `json:"total_patients"`
	TotalVisits          int64   `json:"total_visits"`
	TotalAdmissions      int64   `json:"total_admissions"`
	AdmissionRatePercent float64 `json:"admission_rate_percent"`
	AvgWaitTimeMinutes   float64 `json:"avg_wait_time_minutes"`
	AvgSatisfaction      float64 `json:"avg_satisfaction_score"`
}

type DepartmentStat struct {
	Department      string  `json:"department"`
	VisitCount      int64   `json:"visit_count"`
	AvgWaitTime     float64 `json:"avg_wait_time"`
	AdmissionCount  int64   `json:"admission_count"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
}

type MonthlyTrend struct {
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	MonthName       string  `json:"month_name"`
	VisitCount      int64   `json:"visit_count"`
	AvgWaitTime     float64 `json:"avg_wait_time"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
}

type HighRiskPatient struct {
	PatientID             string `json:"patient_id"`
	Age                   int    `json:"age"`
	ChronicConditionCount int    `json:"chronic_condition_count"`
	VisitCount            int64  `json:"visit_count"`
	AdmissionCount        int64  `json:"admission_count"`
}

type WaitStats struct {
	Department string  `json:"department"`
	Visits     int64   `json:"visits"`
	Avg        float64 `json:"avg"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
}

// Querier runs read-only analytics over a stored warehouse. Queries are
// written with ? placeholders and rebound for postgres.
type Querier struct {
	db       *sql.DB
	postgres bool
}

func NewQuerier(db *sql.DB, driver string) *Querier {
	return &Querier{db: db, postgres: driver == "postgres"}
}

func (q *Querier) rebind(query string) string {
	if !q.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q *Querier) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM dim_patient),
			COUNT(*),
			COALESCE(SUM(is_admitted), 0),
			CAST(COALESCE(AVG(wait_time_minutes), 0) AS DOUBLE PRECISION),
			CAST(COALESCE(AVG(satisfaction_score), 0) AS DOUBLE PRECISION)
		FROM fact_visits`,
	).Scan(&s.TotalPatients, &s.TotalVisits, &s.TotalAdmissions, &s.AvgWaitTimeMinutes, &s.AvgSatisfaction)
	if err != nil {
		return s, fmt.Errorf("query summary: %w", err)
	}
	if s.TotalVisits > 0 {
		s.AdmissionRatePercent = float64(s.TotalAdmissions) / float64(s.TotalVisits) * 100
	}
	return s, nil
}

func (q *Querier) DepartmentStats(ctx context.Context) ([]DepartmentStat, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT
			dd.department_name,
			COUNT(*) AS visit_count,
			CAST(AVG(fv.wait_time_minutes) AS DOUBLE PRECISION),
			SUM(fv.is_admitted),
			CAST(AVG(fv.satisfaction_score) AS DOUBLE PRECISION)
		FROM fact_visits fv
		JOIN dim_department dd ON fv.department_id = dd.department_id
		GROUP BY dd.department_name
		ORDER BY visit_count DESC, dd.department_name`)
	if err != nil {
		return nil, fmt.Errorf("query department stats: %w", err)
	}
	defer rows.Close()

	out := []DepartmentStat{}
	for rows.Next() {
		var d DepartmentStat
		if err := rows.Scan(&d.Department, &d.VisitCount, &d.AvgWaitTime, &d.AdmissionCount, &d.AvgSatisfaction); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Querier) MonthlyTrends(ctx context.Context, limit int) ([]MonthlyTrend, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(`
		SELECT
			d.year,
			d.month,
			d.month_name,
			COUNT(*),
			CAST(AVG(fv.wait_time_minutes) AS DOUBLE PRECISION),
			CAST(AVG(fv.satisfaction_score) AS DOUBLE PRECISION)
		FROM fact_visits fv
		JOIN dim_date d ON fv.date_id = d.date_id
		GROUP BY d.year, d.month, d.month_name
		ORDER BY d.year DESC, d.month DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query monthly trends: %w", err)
	}
	defer rows.Close()

	out := []MonthlyTrend{}
	for rows.Next() {
		var m MonthlyTrend
		if err := rows.Scan(&m.Year, &m.Month, &m.MonthName, &m.VisitCount, &m.AvgWaitTime, &m.AvgSatisfaction); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HighRiskPatients lists patients with multiple chronic conditions, ranked by
// condition count and then admissions.
func (q *Querier) HighRiskPatients(ctx context.Context, limit int) ([]HighRiskPatient, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(`
		SELECT
			dp.patient_id,
			dp.age,
			dp.chronic_condition_count,
			COUNT(fv.visit_id) AS visit_count,
			SUM(fv.is_admitted) AS admission_count
		FROM dim_patient dp
		JOIN fact_visits fv ON dp.patient_id = fv.patient_id
		WHERE dp.chronic_condition_count >= 2
		GROUP BY dp.patient_id, dp.age, dp.chronic_condition_count
		ORDER BY dp.chronic_condition_count DESC, admission_count DESC, dp.patient_id
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query high risk patients: %w", err)
	}
	defer rows.Close()

	out := []HighRiskPatient{}
	for rows.Next() {
		var p HighRiskPatient
		if err := rows.Scan(&p.PatientID, &p.Age, &p.ChronicConditionCount, &p.VisitCount, &p.AdmissionCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DepartmentWaitStats returns historical wait statistics for one department.
// found is false when the department has no visits.
func (q *Querier) DepartmentWaitStats(ctx context.Context, department string) (stats WaitStats, found bool, err error) {
	stats.Department = department
	var avg, lo, hi sql.NullFloat64
	err = q.db.QueryRowContext(ctx, q.rebind(`
		SELECT
			COUNT(*),
			CAST(AVG(fv.wait_time_minutes) AS DOUBLE PRECISION),
			CAST(MIN(fv.wait_time_minutes) AS DOUBLE PRECISION),
			CAST(MAX(fv.wait_time_minutes) AS DOUBLE PRECISION)
		FROM fact_visits fv
		JOIN dim_department dd ON fv.department_id = dd.department_id
		WHERE dd.department_name = ?`), department).Scan(&stats.Visits, &avg, &lo, &hi)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && stats.Visits == 0) {
		return stats, false, nil
	}
	if err != nil {
		return stats, false, fmt.Errorf("query wait stats: %w", err)
	}
	stats.Avg, stats.Min, stats.Max = avg.Float64, lo.Float64, hi.Float64
	return stats, true, nil
}
