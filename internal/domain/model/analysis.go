package model

import "time"

// AnalysisResult is what an analyzer derives from a batch of records.
type AnalysisResult struct {
	Score           float64  `json:"score"`
	Findings        []string `json:"findings"`
	Recommendations []string `json:"recommendations"`
}

// Analysis is a persisted AnalysisResult tied to the snapshot it was computed from.
type Analysis struct {
	ID              string    `json:"id"              db:"id"`
	TenantID        string    `json:"tenant_id"       db:"tenant_id"`
	SnapshotID      string    `json:"snapshot_id"     db:"snapshot_id"`
	DataType        string    `json:"data_type"       db:"data_type"`
	Score           float64   `json:"score"           db:"score"`
	Findings        []string  `json:"findings"        db:"findings"`
	Recommendations []string  `json:"recommendations" db:"recommendations"`
	CreatedAt       time.Time `json:"created_at"      db:"created_at"`
}

// CreateAnalysisRequest is the input for AnalysisRepository.Insert.
type CreateAnalysisRequest struct {
	TenantID   string
	SnapshotID string
	DataType   string
	Result     AnalysisResult
}
