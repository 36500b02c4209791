package core

import (
	"context"
	"time"

	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// This file holds the repository and collaborator contracts the service layer
// depends on. The data layer provides the implementations.

// CredentialRepository reads tenant marketplace credentials.
type CredentialRepository interface {
	// ListActive returns every active credential ordered by tenant id.
	ListActive(ctx context.Context) ([]*model.Credential, error)
	// GetActive returns the active credential for tenantID. A missing or
	// inactive tenant yields a NotFound AppError.
	GetActive(ctx context.Context, tenantID string) (*model.Credential, error)
	// MarkSynced records the completion time of a tenant pass.
	MarkSynced(ctx context.Context, tenantID string, at time.Time) error
}

// ExportJobRepository persists export jobs. Every mutating method only touches
// rows still in the pending state and reports whether a row changed.
type ExportJobRepository interface {
	Create(ctx context.Context, req *model.CreateExportJobRequest) (*model.ExportJob, error)
	GetByID(ctx context.Context, id string) (*model.ExportJob, error)
	// ListPending returns pending jobs ordered by started_at ascending.
	ListPending(ctx context.Context, limit int) ([]*model.ExportJob, error)
	HasPending(ctx context.Context, tenantID, dataType string) (bool, error)
	IncrementAttempts(ctx context.Context, id string) (bool, error)
	RecordError(ctx context.Context, id, message string) (bool, error)
	Complete(ctx context.Context, p CompleteExportJobParams) (bool, error)
	Fail(ctx context.Context, p FailExportJobParams) (bool, error)
}

// CompleteExportJobParams groups parameters for ExportJobRepository.Complete.
type CompleteExportJobParams struct {
	ID          string
	EntityID    string
	CompletedAt time.Time
}

// FailExportJobParams groups parameters for ExportJobRepository.Fail.
type FailExportJobParams struct {
	ID          string
	Reason      string
	CompletedAt time.Time
}

// SnapshotRepository stores dataset captures.
type SnapshotRepository interface {
	Insert(ctx context.Context, req *model.CreateSnapshotRequest) (*model.Snapshot, error)
	// Latest returns the newest snapshot for a tenant and data type, or a
	// NotFound AppError.
	Latest(ctx context.Context, tenantID, dataType string) (*model.Snapshot, error)
}

// AnalysisRepository stores analyzer output.
type AnalysisRepository interface {
	Insert(ctx context.Context, req *model.CreateAnalysisRequest) (*model.Analysis, error)
}

// Analyzer derives a score and findings from a batch of records. It must not
// retain the slice.
type Analyzer interface {
	Analyze(dataType string, records []map[string]any) model.AnalysisResult
}

// ReaperRepository defines the cleanup operations for finished sync data.
type ReaperRepository interface {
	// DeleteOldExportJobs deletes terminal jobs with the given status whose
	// completed_at is older than MaxAge, at most BatchSize per call.
	DeleteOldExportJobs(ctx context.Context, params DeleteOldExportJobsParams) (int64, error)
	// DeleteOldSnapshots deletes snapshots fetched before now-maxAge, at most
	// batchSize per call. Their analyses go with them.
	DeleteOldSnapshots(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// DeleteOldExportJobsParams groups parameters for DeleteOldExportJobs.
type DeleteOldExportJobsParams struct {
	Status    model.ExportJobStatus
	MaxAge    time.Duration
	BatchSize int
}
