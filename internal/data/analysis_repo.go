package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

// scoreScale matches the NUMERIC(5, 2) column.
const scoreScale = 2

// AnalysisRepo stores analyzer output.
type AnalysisRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	newID        func() string
}

// NewAnalysisRepo creates an AnalysisRepo using the system clock.
func NewAnalysisRepo(db *sql.DB) *AnalysisRepo {
	return NewAnalysisRepoWithTimeProvider(db, RealTimeProvider{})
}

// NewAnalysisRepoWithTimeProvider creates an AnalysisRepo with a custom clock.
func NewAnalysisRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AnalysisRepo {
	return &AnalysisRepo{DB: db, timeProvider: tp, newID: uuid.NewString}
}

// Insert stores an analysis. The score is clamped to [0, 100] and rounded to
// two decimal places.
func (r *AnalysisRepo) Insert(ctx context.Context, req *model.CreateAnalysisRequest) (*model.Analysis, error) {
	if req == nil {
		return nil, ErrRequestRequired
	}
	if strings.TrimSpace(req.TenantID) == "" || strings.TrimSpace(req.SnapshotID) == "" {
		return nil, apperrors.Validation("tenant_id and snapshot_id are required")
	}

	findings, err := marshalStrings(req.Result.Findings)
	if err != nil {
		return nil, fmt.Errorf("encode findings: %w", err)
	}
	recs, err := marshalStrings(req.Result.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("encode recommendations: %w", err)
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO analyses (id, tenant_id, snapshot_id, data_type, score, findings, recommendations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, tenant_id, snapshot_id, data_type, score, findings, recommendations, created_at
	`,
		r.newID(),
		strings.TrimSpace(req.TenantID),
		req.SnapshotID,
		req.DataType,
		normalizeScore(req.Result.Score).String(),
		findings,
		recs,
		r.timeProvider.Now().UTC(),
	)

	var (
		a          model.Analysis
		score      decimal.Decimal
		rawFinds   []byte
		rawRecomms []byte
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.SnapshotID, &a.DataType, &score, &rawFinds, &rawRecomms, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert analysis: %w", apperrors.MapDBError(err))
	}
	a.Score = score.InexactFloat64()
	if err := json.Unmarshal(rawFinds, &a.Findings); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	if err := json.Unmarshal(rawRecomms, &a.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return &a, nil
}

func normalizeScore(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, -1) {
		return decimal.Zero
	}
	if math.IsInf(v, 1) {
		return decimal.NewFromInt(100)
	}
	d := decimal.NewFromFloat(v)
	switch {
	case d.LessThan(decimal.Zero):
		d = decimal.Zero
	case d.GreaterThan(decimal.NewFromInt(100)):
		d = decimal.NewFromInt(100)
	}
	return d.Round(scoreScale)
}

func marshalStrings(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}
