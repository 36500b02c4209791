package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExportJobStatus is the lifecycle state of an export job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ExportJobStatus string

const (
	// ExportJobStatusPending means the upstream process has not reached a final state.
	ExportJobStatusPending ExportJobStatus = "pending"
	// ExportJobStatusCompleted means the export was downloaded and persisted.
	ExportJobStatusCompleted ExportJobStatus = "completed"
	// ExportJobStatusFailed means the job was given up on.
	ExportJobStatusFailed ExportJobStatus = "failed"
)

// Valid returns true for known statuses.
func (s ExportJobStatus) Valid() bool {
	return s == ExportJobStatusPending || s == ExportJobStatusCompleted || s == ExportJobStatusFailed
}

// Terminal reports whether no further transition is allowed.
func (s ExportJobStatus) Terminal() bool {
	return s == ExportJobStatusCompleted || s == ExportJobStatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ExportJobStatus) UnmarshalText(text []byte) error {
	v := ExportJobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ExportJobStatus: %q", v)
	}
	*s = v
	return nil
}

// Data types captured as snapshots.
const (
	DataTypeOffers      = "offers"
	DataTypeOrders      = "orders"
	DataTypeReturns     = "returns"
	DataTypeCompetitors = "competitors"
	DataTypeRanks       = "ranks"
	DataTypeCatalog     = "catalog"
	DataTypeForecast    = "forecast"
	DataTypeCampaigns   = "campaigns"
)

// Fixed failure reasons recorded on export jobs.
const (
	ExportErrExpired        = "Export job expired"
	ExportErrTenantNotFound = "Customer not found"
	ExportErrMaxAttempts    = "Exceeded max attempts"
	ExportErrUpstream       = "Export failed upstream"
)

// ExportJob tracks one asynchronous upstream export from submission to download.
type ExportJob struct {
	ID              string          `json:"id"                     db:"id"`
	TenantID        string          `json:"tenant_id"              db:"tenant_id"`
	DataType        string          `json:"data_type"              db:"data_type"`
	ProcessStatusID string          `json:"process_status_id"      db:"process_status_id"`
	Status          ExportJobStatus `json:"status"                 db:"status"`
	Attempts        int             `json:"attempts"               db:"attempts"`
	StartedAt       time.Time       `json:"started_at"             db:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Error           *string         `json:"error,omitempty"        db:"error"`
	EntityID        *string         `json:"entity_id,omitempty"    db:"entity_id"`
}

// Age returns how long ago the job was submitted.
func (j *ExportJob) Age(now time.Time) time.Duration {
	return now.Sub(j.StartedAt)
}

// CreateExportJobRequest is the input for persisting a newly submitted export.
type CreateExportJobRequest struct {
	TenantID        string
	DataType        string
	ProcessStatusID string
	StartedAt       time.Time
}

// Validate validates the request fields.
func (r *CreateExportJobRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return errors.New("tenant_id is required")
	}
	if strings.TrimSpace(r.DataType) == "" {
		return errors.New("data_type is required")
	}
	if strings.TrimSpace(r.ProcessStatusID) == "" {
		return errors.New("process_status_id is required")
	}
	return nil
}
