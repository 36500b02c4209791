// Mock of core.ReaperRepository in mockgen's layout. Running go generate
// ./internal/mocks replaces it with mockgen output.

package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	core "github.com/target/mmk-bol-sync/internal/core"
	gomock "go.uber.org/mock/gomock"
)

// MockReaperRepository is a mock of ReaperRepository interface.
type MockReaperRepository struct {
	ctrl     *gomock.Controller
	recorder *MockReaperRepositoryMockRecorder
	isgomock struct{}
}

// MockReaperRepositoryMockRecorder is the mock recorder for MockReaperRepository.
type MockReaperRepositoryMockRecorder struct {
	mock *MockReaperRepository
}

// NewMockReaperRepository creates a new mock instance.
func NewMockReaperRepository(ctrl *gomock.Controller) *MockReaperRepository {
	mock := &MockReaperRepository{ctrl: ctrl}
	mock.recorder = &MockReaperRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReaperRepository) EXPECT() *MockReaperRepositoryMockRecorder {
	return m.recorder
}

// DeleteOldExportJobs mocks base method.
func (m *MockReaperRepository) DeleteOldExportJobs(ctx context.Context, params core.DeleteOldExportJobsParams) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteOldExportJobs", ctx, params)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// DeleteOldExportJobs indicates an expected call of DeleteOldExportJobs.
func (mr *MockReaperRepositoryMockRecorder) DeleteOldExportJobs(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteOldExportJobs", reflect.TypeOf((*MockReaperRepository)(nil).DeleteOldExportJobs), ctx, params)
}

// DeleteOldSnapshots mocks base method.
func (m *MockReaperRepository) DeleteOldSnapshots(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteOldSnapshots", ctx, maxAge, batchSize)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// DeleteOldSnapshots indicates an expected call of DeleteOldSnapshots.
func (mr *MockReaperRepositoryMockRecorder) DeleteOldSnapshots(ctx, maxAge, batchSize any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteOldSnapshots", reflect.TypeOf((*MockReaperRepository)(nil).DeleteOldSnapshots), ctx, maxAge, batchSize)
}
