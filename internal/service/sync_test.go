package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-bol-sync/internal/bol"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	apperrors "github.com/target/mmk-bol-sync/internal/errors"
	"github.com/target/mmk-bol-sync/internal/mocks"
	"github.com/target/mmk-bol-sync/internal/testutil"
)

type syncFixture struct {
	svc       *SyncService
	doer      *fakeDoer
	tokens    *fakeTokens
	creds     *mocks.MockCredentialRepository
	jobs      *mocks.MockExportJobRepository
	snapshots *mocks.MockSnapshotRepository
	analyses  *mocks.MockAnalysisRepository
	outcomes  *recordedOutcomes

	mu     sync.Mutex
	stored map[string][]*model.CreateSnapshotRequest
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &syncFixture{
		doer:      newFakeDoer(),
		tokens:    &fakeTokens{},
		creds:     mocks.NewMockCredentialRepository(ctrl),
		jobs:      mocks.NewMockExportJobRepository(ctrl),
		snapshots: mocks.NewMockSnapshotRepository(ctrl),
		analyses:  mocks.NewMockAnalysisRepository(ctrl),
		outcomes:  &recordedOutcomes{},
		stored:    make(map[string][]*model.CreateSnapshotRequest),
	}

	now := func() time.Time { return exportNow }
	exports, err := NewExportService(ExportServiceOptions{
		Client: f.doer,
		Tokens: f.tokens,
		Repos: ExportRepos{
			Credentials: f.creds,
			Jobs:        f.jobs,
			Snapshots:   f.snapshots,
			Analyses:    f.analyses,
		},
		Now: now,
	})
	require.NoError(t, err)

	svc, err := NewSyncService(SyncServiceOptions{
		Client:   f.doer,
		Tokens:   f.tokens,
		Repos:    SyncRepos{Credentials: f.creds, Snapshots: f.snapshots, Analyses: f.analyses},
		Analyzer: NewContentQualityAnalyzer(),
		Exports:  exports,
		Now:      now,
		Metrics:  f.outcomes,
	})
	require.NoError(t, err)
	f.svc = svc

	f.snapshots.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateSnapshotRequest) (*model.Snapshot, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.stored[req.TenantID] = append(f.stored[req.TenantID], req)
			return &model.Snapshot{ID: "snap-" + req.DataType, TenantID: req.TenantID, DataType: req.DataType}, nil
		}).AnyTimes()
	f.analyses.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(&model.Analysis{ID: "a"}, nil).AnyTimes()
	return f
}

func (f *syncFixture) snapshotFor(tenantID, dataType string) *model.CreateSnapshotRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.stored[tenantID] {
		if req.DataType == dataType {
			return req
		}
	}
	return nil
}

func (f *syncFixture) scriptRetailer() {
	f.doer.on(http.MethodGet, "/orders", okJSON(map[string]any{
		"orders": []any{
			map[string]any{"orderId": "A1", "orderPlacedDateTime": "2026-03-09T10:00:00+01:00"},
			map[string]any{"orderId": "A2", "orderPlacedDateTime": ""},
		},
	}))
	f.doer.on(http.MethodGet, "/returns", okJSON(map[string]any{}))
	f.doer.on(http.MethodPost, "/offers/export", okJSON(map[string]any{"processStatusId": "ps-new"}))

	f.doer.on(http.MethodGet, "/products/871/offers", okJSON(map[string]any{
		"offers": []any{
			map[string]any{"offerId": "x", "price": 19.99},
			map[string]any{"offerId": "y", "price": 21.49},
			map[string]any{"offerId": "z", "price": 20.0},
		},
	}))
	f.doer.on(http.MethodGet, "/products/871/ratings", okJSON(map[string]any{
		"ratings": []any{
			map[string]any{"rating": 5.0, "count": 3.0},
			map[string]any{"rating": 4.0, "count": 1.0},
		},
	}))
	f.doer.on(http.MethodGet, "/products/872/offers", status(http.StatusInternalServerError))
	f.doer.on(http.MethodGet, "/products/872/ratings", okJSON(map[string]any{"ratings": []any{}}))

	f.doer.on(http.MethodGet, "/insights/product-ranks", okJSON(map[string]any{
		"ranks": []any{
			map[string]any{"rank": 7.0, "impressions": 100.0},
			map[string]any{"rank": 3.0, "impressions": 40.0},
		},
	}))
	f.doer.on(http.MethodGet, "/content/catalog-products/871", okJSON(map[string]any{
		"attributes": []any{
			map[string]any{"id": "Title", "values": []any{map[string]any{"value": "Desk lamp"}}},
			map[string]any{"id": "Description", "values": []any{map[string]any{"value": "LED"}}},
		},
	}))
	f.doer.on(http.MethodGet, "/content/catalog-products/872", status(http.StatusNotFound))
	f.doer.on(http.MethodGet, "/insights/sales-forecast", okJSON(map[string]any{
		"total":   map[string]any{"minimum": 4.0, "maximum": 9.0},
		"periods": []any{map[string]any{}, map[string]any{}, map[string]any{}, map[string]any{}},
	}))
	f.doer.on(http.MethodPost, "/campaign-management/campaigns/list", okJSON(map[string]any{
		"campaigns": []any{map[string]any{"campaignId": "c1", "name": "Spring"}},
	}))
}

func offersSnapshot(tenantID string) *model.Snapshot {
	return &model.Snapshot{
		ID:       "offers-1",
		TenantID: tenantID,
		DataType: model.DataTypeOffers,
		Records:  []byte(`[{"offerId":"o1","ean":"871"},{"offerId":"o2","ean":"872"},{"offerId":"o3","ean":"871"},{"offerId":"o4","ean":""}]`),
	}
}

func TestSyncRun_TenantIsolation(t *testing.T) {
	f := newSyncFixture(t)
	f.scriptRetailer()

	failing := testutil.NewCredential("tenant-a").Build()
	healthy := testutil.NewCredential("tenant-b").WithAdvertising("ads-b", "ads-secret").Build()
	notDue := testutil.NewCredential("tenant-c").LastSynced(exportNow.Add(-10 * time.Minute)).Build()
	f.tokens.fail = map[string]error{
		"tenant-a-client": &bol.AuthError{Audience: bol.AudienceRetailer, StatusCode: http.StatusUnauthorized},
	}

	f.creds.EXPECT().ListActive(gomock.Any()).Return([]*model.Credential{failing, healthy, notDue}, nil)
	f.jobs.EXPECT().HasPending(gomock.Any(), "tenant-b", model.DataTypeOffers).Return(false, nil)
	f.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateExportJobRequest) (*model.ExportJob, error) {
			assert.Equal(t, "ps-new", req.ProcessStatusID)
			return &model.ExportJob{ID: "job-new", TenantID: req.TenantID}, nil
		})
	f.snapshots.EXPECT().Latest(gomock.Any(), "tenant-b", model.DataTypeOffers).Return(offersSnapshot("tenant-b"), nil)
	f.creds.EXPECT().MarkSynced(gomock.Any(), "tenant-b", exportNow).Return(nil)
	f.jobs.EXPECT().ListPending(gomock.Any(), gomock.Any()).Return([]*model.ExportJob{}, nil)

	report, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, report.FinishedAt)

	a, ok := report.Find(model.EntryKindTenant, "tenant-a")
	require.True(t, ok)
	assert.Equal(t, model.EntryStatusError, a.Status)
	assert.Contains(t, a.Detail, "retailer token")

	b, ok := report.Find(model.EntryKindTenant, "tenant-b")
	require.True(t, ok)
	assert.Equal(t, model.EntryStatusOK, b.Status)
	assert.Contains(t, b.Detail, "orders=2")
	assert.Contains(t, b.Detail, "offers export submitted")

	c, ok := report.Find(model.EntryKindTenant, "tenant-c")
	require.True(t, ok)
	assert.Equal(t, model.EntryStatusSkipped, c.Status)

	assert.Empty(t, f.stored["tenant-a"])
	assert.Equal(t, []string{"error", "ok", "skipped"}, f.outcomes.tenants)
	assert.Equal(t, []string{"success"}, f.outcomes.runs)

	for _, tok := range f.doer.tokens {
		assert.NotContains(t, tok, "tenant-a")
	}
}

func TestSyncRun_TenantPassContents(t *testing.T) {
	f := newSyncFixture(t)
	f.scriptRetailer()
	cred := testutil.NewCredential("tenant-b").WithAdvertising("ads-b", "ads-secret").Build()

	f.creds.EXPECT().ListActive(gomock.Any()).Return([]*model.Credential{cred}, nil)
	f.jobs.EXPECT().HasPending(gomock.Any(), "tenant-b", model.DataTypeOffers).Return(true, nil)
	f.snapshots.EXPECT().Latest(gomock.Any(), "tenant-b", model.DataTypeOffers).Return(offersSnapshot("tenant-b"), nil)
	f.creds.EXPECT().MarkSynced(gomock.Any(), "tenant-b", exportNow).Return(nil)

	report, err := f.svc.Run(context.Background(), RunOptions{SkipSweep: true})
	require.NoError(t, err)
	entry, _ := report.Find(model.EntryKindTenant, "tenant-b")
	assert.Equal(t, model.EntryStatusOK, entry.Status)
	assert.NotContains(t, entry.Detail, "offers export submitted")

	orders := f.snapshotFor("tenant-b", model.DataTypeOrders)
	require.NotNil(t, orders)
	assert.Equal(t, 2, orders.RecordCount)

	returns := f.snapshotFor("tenant-b", model.DataTypeReturns)
	require.NotNil(t, returns)
	assert.Equal(t, 0, returns.RecordCount)
	assert.JSONEq(t, `[]`, string(returns.Records))

	competitors := f.snapshotFor("tenant-b", model.DataTypeCompetitors)
	require.NotNil(t, competitors)
	assert.Equal(t, 1, competitors.RecordCount, "failing EAN is omitted")
	assert.JSONEq(t, `[{
		"ean": "871",
		"offerCount": 3,
		"lowestPrice": "19.99",
		"highestPrice": "21.49",
		"averagePrice": "20.49",
		"ratingCount": 4,
		"averageRating": "4.75"
	}]`, string(competitors.Records))

	ranks := f.snapshotFor("tenant-b", model.DataTypeRanks)
	require.NotNil(t, ranks)
	assert.Equal(t, 2, ranks.RecordCount)
	assert.Contains(t, string(ranks.Records), `"bestRank":3`)

	catalog := f.snapshotFor("tenant-b", model.DataTypeCatalog)
	require.NotNil(t, catalog)
	assert.Equal(t, 1, catalog.RecordCount)
	assert.Contains(t, string(catalog.Records), `"title":"Desk lamp"`)

	forecast := f.snapshotFor("tenant-b", model.DataTypeForecast)
	require.NotNil(t, forecast)
	assert.Equal(t, 2, forecast.RecordCount)
	assert.Contains(t, string(forecast.Records), `"periods":4`)

	campaigns := f.snapshotFor("tenant-b", model.DataTypeCampaigns)
	require.NotNil(t, campaigns)
	assert.Equal(t, 1, campaigns.RecordCount)
	assert.Contains(t, f.tokens.calls, "advertising:ads-b")
	assert.Equal(t, "advertising:ads-b", f.doer.tokens[len(f.doer.tokens)-1])
}

func TestSyncRun_PanicIsContainedToTenant(t *testing.T) {
	f := newSyncFixture(t)
	f.doer.on(http.MethodGet, "/orders",
		doResult{panicWith: "nil map write"},
		okJSON(map[string]any{"orders": []any{}}),
	)
	f.doer.on(http.MethodGet, "/returns", okJSON(map[string]any{}))

	first := testutil.NewCredential("tenant-a").Build()
	second := testutil.NewCredential("tenant-b").Build()

	f.creds.EXPECT().ListActive(gomock.Any()).Return([]*model.Credential{first, second}, nil)
	f.jobs.EXPECT().HasPending(gomock.Any(), "tenant-b", model.DataTypeOffers).Return(true, nil)
	f.snapshots.EXPECT().Latest(gomock.Any(), "tenant-b", model.DataTypeOffers).Return(nil, apperrors.NotFound("none"))
	f.creds.EXPECT().MarkSynced(gomock.Any(), "tenant-b", exportNow).Return(nil)
	f.jobs.EXPECT().ListPending(gomock.Any(), gomock.Any()).Return(nil, nil)

	report, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	a, _ := report.Find(model.EntryKindTenant, "tenant-a")
	assert.Equal(t, model.EntryStatusError, a.Status)
	assert.Equal(t, "panic: nil map write", a.Detail)

	b, _ := report.Find(model.EntryKindTenant, "tenant-b")
	assert.Equal(t, model.EntryStatusOK, b.Status)
}

func TestSyncRun_ForceIgnoresInterval(t *testing.T) {
	f := newSyncFixture(t)
	f.doer.on(http.MethodGet, "/orders", okJSON(map[string]any{}))
	f.doer.on(http.MethodGet, "/returns", okJSON(map[string]any{}))
	cred := testutil.NewCredential("tenant-c").LastSynced(exportNow.Add(-time.Minute)).Build()

	f.creds.EXPECT().ListActive(gomock.Any()).Return([]*model.Credential{cred}, nil)
	f.jobs.EXPECT().HasPending(gomock.Any(), "tenant-c", model.DataTypeOffers).Return(true, nil)
	f.snapshots.EXPECT().Latest(gomock.Any(), "tenant-c", model.DataTypeOffers).Return(nil, apperrors.NotFound("none"))
	f.creds.EXPECT().MarkSynced(gomock.Any(), "tenant-c", exportNow).Return(nil)

	report, err := f.svc.Run(context.Background(), RunOptions{Force: true, SkipSweep: true})
	require.NoError(t, err)
	entry, _ := report.Find(model.EntryKindTenant, "tenant-c")
	assert.Equal(t, model.EntryStatusOK, entry.Status)
}

func TestSyncRun_AppendsSweepEntries(t *testing.T) {
	f := newSyncFixture(t)
	expired := pendingJob("old-job", 30*time.Hour, 0)

	f.creds.EXPECT().ListActive(gomock.Any()).Return([]*model.Credential{}, nil)
	f.jobs.EXPECT().ListPending(gomock.Any(), gomock.Any()).Return([]*model.ExportJob{expired}, nil)
	f.jobs.EXPECT().Fail(gomock.Any(), gomock.Any()).Return(true, nil)

	report, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	entry, ok := report.Find(model.EntryKindJob, "old-job")
	require.True(t, ok)
	assert.Equal(t, model.EntryStatusFailed, entry.Status)
}

func TestSyncRun_SweepListFailureIsReported(t *testing.T) {
	f := newSyncFixture(t)

	f.creds.EXPECT().ListActive(gomock.Any()).Return([]*model.Credential{}, nil)
	f.jobs.EXPECT().ListPending(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	report, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	entry, ok := report.Find(model.EntryKindJob, SweepEntryID)
	require.True(t, ok)
	assert.Equal(t, model.EntryStatusError, entry.Status)
	assert.Contains(t, entry.Detail, "connection refused")
	assert.Equal(t, 1, report.Counts()[model.EntryStatusError])
}

func TestSyncRun_ListFailureIsTheOnlyRunError(t *testing.T) {
	f := newSyncFixture(t)
	f.creds.EXPECT().ListActive(gomock.Any()).Return(nil, errors.New("connection refused"))

	report, err := f.svc.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, []string{"error"}, f.outcomes.runs)
}

func TestSyncRunTenant_NotFound(t *testing.T) {
	f := newSyncFixture(t)
	f.creds.EXPECT().GetActive(gomock.Any(), "ghost").Return(nil, apperrors.NotFound("tenant ghost not found"))

	_, err := f.svc.RunTenant(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestThrottle_WaitsBetweenItemsAndHonoursCancel(t *testing.T) {
	th := &throttle{delay: time.Hour}
	require.NoError(t, th.wait(context.Background()), "first item is not delayed")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := th.wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSummarizeCompetition_NoOffers(t *testing.T) {
	rec, err := summarizeCompetition("871", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rec["offerCount"])
	assert.Nil(t, rec["lowestPrice"])
	assert.Nil(t, rec["averageRating"])
}
