package testutil

import (
	"time"

	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// CredentialBuilder builds model.Credential fixtures.
type CredentialBuilder struct {
	c model.Credential
}

// NewCredential starts an active retailer-only credential for tenantID.
func NewCredential(tenantID string) *CredentialBuilder {
	return &CredentialBuilder{c: model.Credential{
		TenantID:            tenantID,
		Name:                "Tenant " + tenantID,
		ClientID:            tenantID + "-client",
		ClientSecret:        tenantID + "-secret",
		Active:              true,
		SyncIntervalMinutes: int(model.DefaultSyncInterval / time.Minute),
		CreatedAt:           TestTime(),
		UpdatedAt:           TestTime(),
	}}
}

// WithAdvertising adds advertising credentials.
func (b *CredentialBuilder) WithAdvertising(id, secret string) *CredentialBuilder {
	b.c.AdvertisingClientID = StringPtr(id)
	b.c.AdvertisingClientSecret = StringPtr(secret)
	return b
}

// Inactive marks the credential inactive.
func (b *CredentialBuilder) Inactive() *CredentialBuilder {
	b.c.Active = false
	return b
}

// LastSynced sets the last completed pass time.
func (b *CredentialBuilder) LastSynced(at time.Time) *CredentialBuilder {
	b.c.LastSyncedAt = TimePtr(at)
	return b
}

// Build returns a copy of the credential.
func (b *CredentialBuilder) Build() *model.Credential {
	c := b.c
	return &c
}

// ExportJobBuilder builds model.ExportJob fixtures.
type ExportJobBuilder struct {
	j model.ExportJob
}

// NewExportJob starts a pending offers job for tenantID.
func NewExportJob(id, tenantID string) *ExportJobBuilder {
	return &ExportJobBuilder{j: model.ExportJob{
		ID:              id,
		TenantID:        tenantID,
		DataType:        model.DataTypeOffers,
		ProcessStatusID: "ps-" + id,
		Status:          model.ExportJobStatusPending,
		StartedAt:       TestTime(),
	}}
}

// StartedAt sets the submission time.
func (b *ExportJobBuilder) StartedAt(t time.Time) *ExportJobBuilder {
	b.j.StartedAt = t
	return b
}

// Attempts sets the attempt counter.
func (b *ExportJobBuilder) Attempts(n int) *ExportJobBuilder {
	b.j.Attempts = n
	return b
}

// ProcessStatusID sets the upstream process id.
func (b *ExportJobBuilder) ProcessStatusID(id string) *ExportJobBuilder {
	b.j.ProcessStatusID = id
	return b
}

// Build returns a copy of the job.
func (b *ExportJobBuilder) Build() *model.ExportJob {
	j := b.j
	return &j
}
