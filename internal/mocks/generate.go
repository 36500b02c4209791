// Package mocks provides gomock implementations of the core repository and
// coordination interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockExportJobRepository(ctrl)
//	jobs.EXPECT().ListPending(gomock.Any(), gomock.Any()).Return(nil, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_repository_mock.go github.com/target/mmk-bol-sync/internal/core CredentialRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=export_job_repository_mock.go github.com/target/mmk-bol-sync/internal/core ExportJobRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=snapshot_repository_mock.go github.com/target/mmk-bol-sync/internal/core SnapshotRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=analysis_repository_mock.go github.com/target/mmk-bol-sync/internal/core AnalysisRepository

// Coordination and cleanup ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/mmk-bol-sync/internal/core CacheRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=run_locker_mock.go github.com/target/mmk-bol-sync/internal/core RunLocker
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/mmk-bol-sync/internal/core ReaperRepository
