package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/mmk-bol-sync/internal/data/cryptoutil"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
)

const credentialColumns = `
  tenant_id,
  name,
  client_id,
  client_secret,
  advertising_client_id,
  advertising_client_secret,
  active,
  sync_interval_minutes,
  last_synced_at,
  created_at,
  updated_at
`

// CredentialRepo reads and maintains tenant credentials. Client secrets pass
// through a Sealer on the way in and out.
type CredentialRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	sealer       cryptoutil.Sealer
}

// NewCredentialRepo creates a CredentialRepo using the system clock that
// stores secrets unsealed.
func NewCredentialRepo(db *sql.DB) *CredentialRepo {
	return &CredentialRepo{DB: db, timeProvider: RealTimeProvider{}, sealer: cryptoutil.PlainSealer{}}
}

// NewCredentialRepoWithTimeProvider creates a CredentialRepo with a custom clock.
func NewCredentialRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *CredentialRepo {
	return &CredentialRepo{DB: db, timeProvider: tp, sealer: cryptoutil.PlainSealer{}}
}

// WithSealer returns r configured to seal secrets with s.
func (r *CredentialRepo) WithSealer(s cryptoutil.Sealer) *CredentialRepo {
	if s != nil {
		r.sealer = s
	}
	return r
}

// ListActive returns every active credential ordered by tenant id.
func (r *CredentialRepo) ListActive(ctx context.Context) ([]*model.Credential, error) {
	return r.list(ctx, `SELECT `+credentialColumns+` FROM tenant_credentials WHERE active ORDER BY tenant_id`)
}

// ListAll returns every credential, active or not, ordered by tenant id.
func (r *CredentialRepo) ListAll(ctx context.Context) ([]*model.Credential, error) {
	return r.list(ctx, `SELECT `+credentialColumns+` FROM tenant_credentials ORDER BY tenant_id`)
}

func (r *CredentialRepo) list(ctx context.Context, query string) ([]*model.Credential, error) {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	out := make([]*model.Credential, 0)
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		if err := r.openSecrets(c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

// GetActive returns the active credential for tenantID or a NotFound error.
func (r *CredentialRepo) GetActive(ctx context.Context, tenantID string) (*model.Credential, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrIDRequired
	}
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM tenant_credentials WHERE tenant_id = $1 AND active`, tenantID)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("tenant %s not found", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", apperrors.MapDBError(err))
	}
	if err := r.openSecrets(c); err != nil {
		return nil, err
	}
	return c, nil
}

// MarkSynced records the completion time of a tenant pass.
func (r *CredentialRepo) MarkSynced(ctx context.Context, tenantID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE tenant_credentials
		SET last_synced_at = $2, updated_at = $2
		WHERE tenant_id = $1
	`, tenantID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark synced: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("tenant %s not found", tenantID)
	}
	return nil
}

// Upsert inserts or replaces a tenant credential.
func (r *CredentialRepo) Upsert(ctx context.Context, c *model.Credential) (*model.Credential, error) {
	if c == nil {
		return nil, ErrRequestRequired
	}
	if err := c.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid credential")
	}

	secret, adsSecret, err := r.sealSecrets(c)
	if err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO tenant_credentials (
			tenant_id, name, client_id, client_secret, advertising_client_id,
			advertising_client_secret, active, sync_interval_minutes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (tenant_id) DO UPDATE SET
			name = EXCLUDED.name,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			advertising_client_id = EXCLUDED.advertising_client_id,
			advertising_client_secret = EXCLUDED.advertising_client_secret,
			active = EXCLUDED.active,
			sync_interval_minutes = EXCLUDED.sync_interval_minutes,
			updated_at = EXCLUDED.updated_at
		RETURNING `+credentialColumns,
		strings.TrimSpace(c.TenantID),
		strings.TrimSpace(c.Name),
		c.ClientID,
		secret,
		c.AdvertisingClientID,
		adsSecret,
		c.Active,
		c.SyncIntervalMinutes,
		now,
	)
	out, err := scanCredential(row)
	if err != nil {
		return nil, fmt.Errorf("upsert credential: %w", apperrors.MapDBError(err))
	}
	if err := r.openSecrets(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CredentialRepo) sealSecrets(c *model.Credential) (string, *string, error) {
	secret, err := r.sealer.Seal(c.ClientSecret)
	if err != nil {
		return "", nil, fmt.Errorf("seal client secret: %w", err)
	}
	if c.AdvertisingClientSecret == nil {
		return secret, nil, nil
	}
	ads, err := r.sealer.Seal(*c.AdvertisingClientSecret)
	if err != nil {
		return "", nil, fmt.Errorf("seal advertising secret: %w", err)
	}
	return secret, &ads, nil
}

func (r *CredentialRepo) openSecrets(c *model.Credential) error {
	secret, err := r.sealer.Open(c.ClientSecret)
	if err != nil {
		return fmt.Errorf("open client secret for tenant %s: %w", c.TenantID, err)
	}
	c.ClientSecret = secret
	if c.AdvertisingClientSecret != nil {
		ads, err := r.sealer.Open(*c.AdvertisingClientSecret)
		if err != nil {
			return fmt.Errorf("open advertising secret for tenant %s: %w", c.TenantID, err)
		}
		c.AdvertisingClientSecret = &ads
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(s rowScanner) (*model.Credential, error) {
	var (
		c          model.Credential
		adsID      sql.NullString
		adsSecret  sql.NullString
		lastSynced sql.NullTime
	)
	if err := s.Scan(
		&c.TenantID,
		&c.Name,
		&c.ClientID,
		&c.ClientSecret,
		&adsID,
		&adsSecret,
		&c.Active,
		&c.SyncIntervalMinutes,
		&lastSynced,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.AdvertisingClientID = nullableString(adsID)
	c.AdvertisingClientSecret = nullableString(adsSecret)
	c.LastSyncedAt = nullableTime(lastSynced)
	return &c, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}
