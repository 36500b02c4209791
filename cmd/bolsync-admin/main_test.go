package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-bol-sync/internal/domain/model"
	"github.com/target/mmk-bol-sync/internal/service"
)

type recordingTrigger struct {
	runAll    []service.RunOptions
	runTenant []string
	sweeps    int
}

func (r *recordingTrigger) RunAll(_ context.Context, opts service.RunOptions) (*model.RunReport, error) {
	r.runAll = append(r.runAll, opts)
	return model.NewRunReport("all", time.Time{}), nil
}

func (r *recordingTrigger) RunTenant(_ context.Context, tenantID string) (*model.RunReport, error) {
	r.runTenant = append(r.runTenant, tenantID)
	return model.NewRunReport("tenant", time.Time{}), nil
}

func (r *recordingTrigger) Sweep(context.Context) (*model.RunReport, error) {
	r.sweeps++
	return model.NewRunReport("sweep", time.Time{}), nil
}

func sampleReport() *model.RunReport {
	r := model.NewRunReport("run-1", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	r.Add(model.ReportEntry{Kind: model.EntryKindTenant, ID: "acme", Status: model.EntryStatusOK})
	r.Add(model.ReportEntry{Kind: model.EntryKindTenant, ID: "globex", Status: model.EntryStatusError, Detail: "token: unauthorized"})
	r.Add(model.ReportEntry{Kind: model.EntryKindJob, ID: "job-7", Status: model.EntryStatusPending})
	return r
}

func TestCommandTree(t *testing.T) {
	want := map[string][]string{
		"migrate": {"versions"},
		"sync":    {"run", "sweep"},
		"tenants": {"list", "upsert", "reseal"},
		"reap":    {},
	}
	for parent, children := range want {
		cmd, _, err := rootCmd.Find([]string{parent})
		require.NoError(t, err, parent)
		assert.Equal(t, parent, cmd.Name())
		for _, child := range children {
			sub, _, err := rootCmd.Find([]string{parent, child})
			require.NoError(t, err, child)
			assert.Equal(t, child, sub.Name())
		}
	}

	run, _, err := rootCmd.Find([]string{"sync", "run"})
	require.NoError(t, err)
	for _, flag := range []string{"force", "tenant", "skip-sweep"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("timeout"))
}

func TestRunSync_Dispatch(t *testing.T) {
	trigger := &recordingTrigger{}

	report, err := runSync(context.Background(), trigger, syncRequest{Force: true, SkipSweep: true})
	require.NoError(t, err)
	assert.Equal(t, "all", report.RunID)
	assert.Equal(t, []service.RunOptions{{Force: true, SkipSweep: true}}, trigger.runAll)

	report, err = runSync(context.Background(), trigger, syncRequest{Tenant: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "tenant", report.RunID)
	assert.Equal(t, []string{"acme"}, trigger.runTenant)
	assert.Len(t, trigger.runAll, 1)
}

func TestPrintReport_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), false))

	out := buf.String()
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "globex")
	assert.Contains(t, out, "token: unauthorized")
	assert.Contains(t, out, "run run-1: error=1 ok=1 pending=1\n")
}

func TestPrintReport_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, model.NewRunReport("idle", time.Time{}), false))
	assert.Contains(t, buf.String(), "run idle: nothing to do\n")
}

func TestPrintReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), true))

	var decoded struct {
		RunID   string              `json:"run_id"`
		Entries []model.ReportEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Entries, 3)
	assert.Equal(t, model.EntryStatusError, decoded.Entries[1].Status)
}

func TestPrintTenants(t *testing.T) {
	synced := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	adID, adSecret := "ad-id", "ad-secret"
	creds := []*model.Credential{
		{TenantID: "acme", Name: "Acme", ClientID: "c", ClientSecret: "s", Active: true, LastSyncedAt: &synced},
		{
			TenantID: "globex", Name: "Globex", ClientID: "c", ClientSecret: "s",
			AdvertisingClientID: &adID, AdvertisingClientSecret: &adSecret, SyncIntervalMinutes: 15,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printTenants(&buf, creds, false))
	out := buf.String()
	assert.Contains(t, out, "2026-03-01T08:30:00Z")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "1h0m0s")
	assert.Contains(t, out, "15m0s")

	buf.Reset()
	require.NoError(t, printTenants(&buf, creds, true))
	assert.NotContains(t, buf.String(), "ad-secret")
	assert.NotContains(t, buf.String(), `"client_secret"`)

	buf.Reset()
	require.NoError(t, printTenants(&buf, nil, true))
	assert.Equal(t, "[]\n", buf.String())
}

func TestFinishRun(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := finishRun(cmd, nil, service.ErrRunInProgress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds the lock")
	assert.Empty(t, buf.String())

	runErr := errors.New("list tenants: boom")
	err = finishRun(cmd, sampleReport(), runErr)
	require.ErrorIs(t, err, runErr)
	assert.Contains(t, buf.String(), "run run-1:")
}

func TestPrintVersions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printVersions(&buf, "applied", nil))
	assert.Equal(t, "no migrations applied\n", buf.String())

	buf.Reset()
	require.NoError(t, printVersions(&buf, "embedded", []string{"0001_init"}))
	assert.Equal(t, "embedded\t0001_init\n", buf.String())
}

type fakeCredentialStore struct {
	creds    []*model.Credential
	failFor  string
	upserted []string
}

func (f *fakeCredentialStore) ListAll(context.Context) ([]*model.Credential, error) {
	return f.creds, nil
}

func (f *fakeCredentialStore) Upsert(_ context.Context, c *model.Credential) (*model.Credential, error) {
	if c.TenantID == f.failFor {
		return nil, errors.New("constraint violation")
	}
	f.upserted = append(f.upserted, c.TenantID)
	return c, nil
}

func TestResealAll(t *testing.T) {
	store := &fakeCredentialStore{
		creds: []*model.Credential{
			{TenantID: "acme"}, {TenantID: "broken"}, {TenantID: "globex"},
		},
		failFor: "broken",
	}

	n, err := resealAll(context.Background(), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reseal broken")
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"acme", "globex"}, store.upserted)
}

func TestCredentialFromFlags(t *testing.T) {
	saved := upsertFlags
	t.Cleanup(func() { upsertFlags = saved })

	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	upsertFlags.clientID = "client-1"
	upsertFlags.name = "Acme"
	upsertFlags.intervalMinutes = 15

	_, err := credentialFromFlags("acme", getenv)
	require.Error(t, err, "missing secret")

	env[clientSecretEnv] = " s3cret "
	cred, err := credentialFromFlags("acme", getenv)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cred.ClientSecret)
	assert.True(t, cred.Active)
	assert.Equal(t, 15, cred.SyncIntervalMinutes)
	assert.False(t, cred.HasAdvertising())

	upsertFlags.advertisingClientID = "ads-client"
	_, err = credentialFromFlags("acme", getenv)
	require.Error(t, err, "advertising id without secret")

	env[advertisingClientSecretEnv] = "ads-secret"
	upsertFlags.inactive = true
	cred, err = credentialFromFlags("acme", getenv)
	require.NoError(t, err)
	assert.True(t, cred.HasAdvertising())
	assert.False(t, cred.Active)
}
