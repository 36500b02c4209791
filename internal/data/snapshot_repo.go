package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

const snapshotColumns = `id, tenant_id, data_type, record_count, records, source_entity_id, fetched_at`

// SnapshotRepo stores append-only dataset captures.
type SnapshotRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	newID        func() string
}

// NewSnapshotRepo creates a SnapshotRepo using the system clock.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return NewSnapshotRepoWithTimeProvider(db, RealTimeProvider{})
}

// NewSnapshotRepoWithTimeProvider creates a SnapshotRepo with a custom clock.
func NewSnapshotRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SnapshotRepo {
	return &SnapshotRepo{DB: db, timeProvider: tp, newID: uuid.NewString}
}

// Insert appends a snapshot. A nil record payload is stored as an empty list.
// When SourceEntityID is set and a snapshot for that export is already stored,
// the stored one is returned with Existing set.
func (r *SnapshotRepo) Insert(ctx context.Context, req *model.CreateSnapshotRequest) (*model.Snapshot, error) {
	if req == nil {
		return nil, ErrRequestRequired
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid snapshot")
	}

	records := []byte(req.Records)
	if len(records) == 0 {
		records = []byte("[]")
	}
	tenantID := strings.TrimSpace(req.TenantID)
	entityID := nullString(strings.TrimSpace(req.SourceEntityID))

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO snapshots (id, tenant_id, data_type, record_count, records, source_entity_id, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, data_type, source_entity_id) WHERE source_entity_id IS NOT NULL DO NOTHING
		RETURNING `+snapshotColumns,
		r.newID(),
		tenantID,
		req.DataType,
		req.RecordCount,
		records,
		entityID,
		r.timeProvider.Now().UTC(),
	)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) && entityID.Valid {
		return r.bySourceEntity(ctx, tenantID, req.DataType, entityID.String)
	}
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", apperrors.MapDBError(err))
	}
	return s, nil
}

func (r *SnapshotRepo) bySourceEntity(ctx context.Context, tenantID, dataType, entityID string) (*model.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE tenant_id = $1 AND data_type = $2 AND source_entity_id = $3
	`, tenantID, dataType, entityID)
	s, err := scanSnapshot(row)
	if err != nil {
		return nil, fmt.Errorf("load snapshot for entity %s: %w", entityID, apperrors.MapDBError(err))
	}
	s.Existing = true
	return s, nil
}

// Latest returns the most recently fetched snapshot for tenantID and dataType.
func (r *SnapshotRepo) Latest(ctx context.Context, tenantID, dataType string) (*model.Snapshot, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrIDRequired
	}
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE tenant_id = $1 AND data_type = $2
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, tenantID, dataType)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("no %s snapshot for tenant %s", dataType, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", apperrors.MapDBError(err))
	}
	return s, nil
}

func scanSnapshot(s rowScanner) (*model.Snapshot, error) {
	var (
		snap     model.Snapshot
		records  []byte
		entityID sql.NullString
	)
	if err := s.Scan(&snap.ID, &snap.TenantID, &snap.DataType, &snap.RecordCount, &records, &entityID, &snap.FetchedAt); err != nil {
		return nil, err
	}
	snap.Records = records
	snap.SourceEntityID = entityID.String
	return &snap, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
