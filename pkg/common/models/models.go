package models

import "time"

// Upstream data models

// RawRecord is one upstream row before cleaning. Values keep whatever type the
// producer emitted: strings, numbers, booleans, times or nil.
type RawRecord map[string]interface{}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // pipeline.completed, pipeline.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventPipelineCompleted = "pipeline.completed"
	EventPipelineFailed    = "pipeline.failed"
)

// Pipeline runs
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Model Serving
type RiskRequest struct {
	PatientID string             `json:"patient_id,omitempty"`
	Features  map[string]float64 `json:"features"`
}

type RiskResponse struct {
	PatientID       string  `json:"patient_id,omitempty"`
	RiskProbability float64 `json:"risk_probability"`
	RiskClass       string  `json:"risk_class"`
	RiskLevel       string  `json:"risk_level"`
}
