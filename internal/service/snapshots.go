package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// snapshotWriter persists a dataset capture and the analysis derived from it.
type snapshotWriter struct {
	snapshots core.SnapshotRepository
	analyses  core.AnalysisRepository
	analyzer  core.Analyzer
	logger    *slog.Logger
}

// write stores payload as a snapshot of records. A nil payload is encoded from
// records. Analysis failures are logged; the snapshot stays.
func (w snapshotWriter) write(
	ctx context.Context,
	tenantID, dataType string,
	records []map[string]any,
	payload json.RawMessage,
) (*model.Snapshot, error) {
	return w.writeFromEntity(ctx, tenantID, dataType, "", records, payload)
}

// writeFromEntity is write for a downloaded export. A repeated download of the
// same entity reuses the stored snapshot and is not analyzed again.
func (w snapshotWriter) writeFromEntity(
	ctx context.Context,
	tenantID, dataType, entityID string,
	records []map[string]any,
	payload json.RawMessage,
) (*model.Snapshot, error) {
	if w.snapshots == nil {
		return nil, fmt.Errorf("store %s snapshot: snapshot repository not configured", dataType)
	}
	if payload == nil {
		b, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("encode %s records: %w", dataType, err)
		}
		payload = b
	}

	snap, err := w.snapshots.Insert(ctx, &model.CreateSnapshotRequest{
		TenantID:       tenantID,
		DataType:       dataType,
		RecordCount:    len(records),
		Records:        payload,
		SourceEntityID: entityID,
	})
	if err != nil {
		return nil, fmt.Errorf("store %s snapshot: %w", dataType, err)
	}
	if snap.Existing {
		w.logger.InfoContext(ctx, "export already stored, skipping analysis",
			"snapshot_id", snap.ID, "tenant_id", tenantID, "entity_id", entityID)
		return snap, nil
	}

	if w.analyzer == nil || w.analyses == nil {
		return snap, nil
	}
	result := w.analyzer.Analyze(dataType, records)
	if _, err := w.analyses.Insert(ctx, &model.CreateAnalysisRequest{
		TenantID:   tenantID,
		SnapshotID: snap.ID,
		DataType:   dataType,
		Result:     result,
	}); err != nil {
		w.logger.WarnContext(ctx, "failed to store analysis",
			"snapshot_id", snap.ID, "tenant_id", tenantID, "data_type", dataType, "error", err)
	}
	return snap, nil
}

// objects keeps the JSON objects among items.
func objects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
