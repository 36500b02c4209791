package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Snapshot is an append-only capture of one dataset for one tenant.
type Snapshot struct {
	ID             string          `json:"id"                         db:"id"`
	TenantID       string          `json:"tenant_id"                  db:"tenant_id"`
	DataType       string          `json:"data_type"                  db:"data_type"`
	RecordCount    int             `json:"record_count"               db:"record_count"`
	Records        json.RawMessage `json:"records"                    db:"records"`
	SourceEntityID string          `json:"source_entity_id,omitempty" db:"source_entity_id"`
	FetchedAt      time.Time       `json:"fetched_at"                 db:"fetched_at"`

	// Existing is set when Insert matched a snapshot already stored for the
	// same export entity instead of writing a new one.
	Existing bool `json:"-" db:"-"`
}

// CreateSnapshotRequest is the input for SnapshotRepository.Insert.
// SourceEntityID names the export a snapshot was downloaded from; at most one
// snapshot is stored per tenant, data type and entity.
type CreateSnapshotRequest struct {
	TenantID       string
	DataType       string
	RecordCount    int
	Records        json.RawMessage
	SourceEntityID string
}

// Validate validates the request fields.
func (r *CreateSnapshotRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return errors.New("tenant_id is required")
	}
	if strings.TrimSpace(r.DataType) == "" {
		return errors.New("data_type is required")
	}
	if r.RecordCount < 0 {
		return errors.New("record_count must be >= 0")
	}
	if len(r.Records) > 0 && !json.Valid(r.Records) {
		return errors.New("records must be valid JSON")
	}
	return nil
}
